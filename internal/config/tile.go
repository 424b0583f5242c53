package config

import (
	"fmt"
	"os"

	"github.com/berfenger/switch2mqtt/internal/core/switchtile"
	"github.com/berfenger/switch2mqtt/pkg/registers"

	"gopkg.in/yaml.v3"
)

// TileDefinition is the declarative document describing a switch tile.
type TileDefinition struct {
	Title      string             `yaml:"title" json:"title"`
	SubTitle   string             `yaml:"subTitle" json:"subTitle"`
	Dataseries []SeriesDefinition `yaml:"dataseries" json:"dataseries"`
}

type SeriesDefinition struct {
	Label        string               `yaml:"label" json:"label"`
	Value        *string              `yaml:"value,omitempty" json:"value,omitempty"`
	StateMap     *switchtile.StateMap `yaml:"stateMap,omitempty" json:"stateMap,omitempty"`
	ActionApp    string               `yaml:"actionApp,omitempty" json:"actionApp,omitempty"`
	ActionDevice string               `yaml:"actionDevice,omitempty" json:"actionDevice,omitempty"`
	ActionTopic  string               `yaml:"actionTopic,omitempty" json:"actionTopic,omitempty"`
	Styling      map[string]any       `yaml:"styling,omitempty" json:"styling,omitempty"`
	Source       *SeriesSource        `yaml:"source,omitempty" json:"source,omitempty"`
}

type SeriesSource struct {
	MQTT   *MQTTSource               `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
	Modbus *registers.RegisterSource `yaml:"modbus,omitempty" json:"modbus,omitempty"`
}

type MQTTSource struct {
	Topic    string `yaml:"topic" json:"topic"`
	JSONPath string `yaml:"jsonPath,omitempty" json:"jsonPath,omitempty"`
}

func LoadTileDefinition(path string) (*TileDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tile definition: %w", err)
	}
	return ParseTileDefinition(data)
}

func ParseTileDefinition(data []byte) (*TileDefinition, error) {
	var def TileDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse tile definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

func (def *TileDefinition) Validate() error {
	for i, ds := range def.Dataseries {
		if ds.Source == nil {
			continue
		}
		if ds.Source.MQTT != nil && ds.Source.Modbus != nil {
			return fmt.Errorf("dataseries[%d]: only one source allowed", i)
		}
		if ds.Source.MQTT != nil && ds.Source.MQTT.Topic == "" {
			return fmt.Errorf("dataseries[%d]: mqtt source topic is required", i)
		}
		if ds.Source.Modbus != nil {
			if err := ds.Source.Modbus.Validate(); err != nil {
				return fmt.Errorf("dataseries[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// SeriesInputs converts the definition to normalizer input using the given current
// values, one per series. A missing value falls back to the static value.
func (def *TileDefinition) SeriesInputs(values []*string) []switchtile.SeriesInput {
	inputs := make([]switchtile.SeriesInput, len(def.Dataseries))
	for i, ds := range def.Dataseries {
		var value *string
		if i < len(values) {
			value = values[i]
		}
		inputs[i] = ds.SeriesInput(value)
	}
	return inputs
}

func (ds SeriesDefinition) SeriesInput(value *string) switchtile.SeriesInput {
	if value == nil {
		value = ds.Value
	}
	return switchtile.SeriesInput{
		Label:        ds.Label,
		Value:        value,
		StateMap:     ds.StateMap,
		ActionApp:    ds.ActionApp,
		ActionDevice: ds.ActionDevice,
		ActionTopic:  ds.ActionTopic,
		Styling:      ds.Styling,
	}
}

func (def *TileDefinition) MQTTSourceTopics() map[string][]int {
	topics := map[string][]int{}
	for i, ds := range def.Dataseries {
		if ds.Source != nil && ds.Source.MQTT != nil {
			topics[ds.Source.MQTT.Topic] = append(topics[ds.Source.MQTT.Topic], i)
		}
	}
	return topics
}

// ModbusSources maps the index of every Modbus sourced series to its register.
func (def *TileDefinition) ModbusSources() map[int]registers.RegisterSource {
	sources := map[int]registers.RegisterSource{}
	for i, ds := range def.Dataseries {
		if ds.Source != nil && ds.Source.Modbus != nil {
			sources[i] = *ds.Source.Modbus
		}
	}
	return sources
}

// SameSource reports whether both series read their value from the same place.
func (ds SeriesDefinition) SameSource(other SeriesDefinition) bool {
	a, b := ds.Source, other.Source
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return sameRef(a.MQTT, b.MQTT) && sameRef(a.Modbus, b.Modbus)
}

func sameRef[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (def *TileDefinition) HasModbusSources() bool {
	for _, ds := range def.Dataseries {
		if ds.Source != nil && ds.Source.Modbus != nil {
			return true
		}
	}
	return false
}
