package config

import (
	"testing"

	"github.com/berfenger/switch2mqtt/internal/core/switchtile"
	"github.com/berfenger/switch2mqtt/pkg/registers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tileYAML = `
title: Garden
subTitle: Pumps and valves
dataseries:
  - label: Pump
    stateMap:
      on: ">0"
      off: "<=0"
    actionApp: irrigation
    actionDevice: pump-1
    actionTopic: garden/pump/set
    styling:
      color: "#00ff00"
    source:
      mqtt:
        topic: garden/pump/power
        jsonPath: apower
  - label: Valve
    stateMap:
      on: open
      off: closed
    source:
      modbus:
        unitId: 1
        address: 100
        registerType: holding
        format: int16
        scale: 0.1
  - label: Static
    value: "on"
    stateMap:
      on: "on"
`

func TestParseTileDefinition(t *testing.T) {

	require := require.New(t)

	def, err := ParseTileDefinition([]byte(tileYAML))
	require.NoError(err)

	require.Equal("Garden", def.Title)
	require.Equal("Pumps and valves", def.SubTitle)
	require.Len(def.Dataseries, 3)

	pump := def.Dataseries[0]
	require.Equal(">0", *pump.StateMap.On)
	require.Equal("<=0", *pump.StateMap.Off)
	require.Equal("garden/pump/set", pump.ActionTopic)
	require.Equal("#00ff00", pump.Styling["color"])
	require.Equal("apower", pump.Source.MQTT.JSONPath)

	valve := def.Dataseries[1]
	require.Equal(registers.RegisterSource{
		UnitId:       1,
		Address:      100,
		RegisterType: registers.REGISTER_TYPE_HOLDING,
		Format:       registers.FORMAT_INT16,
		Scale:        0.1,
	}, *valve.Source.Modbus)

	require.True(def.HasModbusSources())
	require.Equal(map[string][]int{"garden/pump/power": {0}}, def.MQTTSourceTopics())
	require.Equal(map[int]registers.RegisterSource{1: *valve.Source.Modbus}, def.ModbusSources())
}

func TestSameSource(t *testing.T) {

	assert := assert.New(t)

	def, err := ParseTileDefinition([]byte(tileYAML))
	assert.NoError(err)
	other, err := ParseTileDefinition([]byte(tileYAML))
	assert.NoError(err)
	pump, valve, static := def.Dataseries[0], def.Dataseries[1], def.Dataseries[2]

	assert.True(pump.SameSource(other.Dataseries[0]), "same topic and path")
	assert.True(valve.SameSource(other.Dataseries[1]), "same register")
	assert.True(static.SameSource(other.Dataseries[2]), "neither has a source")
	assert.False(pump.SameSource(valve))
	assert.False(static.SameSource(pump))

	moved := other.Dataseries[1]
	moved.Source = &SeriesSource{Modbus: &registers.RegisterSource{UnitId: 1, Address: 101, RegisterType: registers.REGISTER_TYPE_HOLDING}}
	assert.False(valve.SameSource(moved))

	repath := other.Dataseries[0]
	repath.Source = &SeriesSource{MQTT: &MQTTSource{Topic: "garden/pump/power", JSONPath: "power"}}
	assert.False(pump.SameSource(repath))
}

func TestParseTileDefinitionInvalid(t *testing.T) {

	assert := assert.New(t)

	_, err := ParseTileDefinition([]byte("dataseries: {"))
	assert.Error(err)

	_, err = ParseTileDefinition([]byte(`
dataseries:
  - label: A
    source:
      mqtt: { topic: a }
      modbus: { address: 1, registerType: holding }
`))
	assert.ErrorContains(err, "only one source")

	_, err = ParseTileDefinition([]byte(`
dataseries:
  - label: A
    source:
      mqtt: { jsonPath: x }
`))
	assert.ErrorContains(err, "topic is required")

	_, err = ParseTileDefinition([]byte(`
dataseries:
  - label: A
    source:
      modbus: { address: 1, registerType: eeprom }
`))
	assert.ErrorContains(err, "dataseries[0]")
}

func TestSeriesInputs(t *testing.T) {

	assert := assert.New(t)

	def, err := ParseTileDefinition([]byte(tileYAML))
	assert.NoError(err)

	live := "12"
	inputs := def.SeriesInputs([]*string{&live})
	assert.Len(inputs, 3)
	assert.Equal("12", *inputs[0].Value)
	assert.Nil(inputs[1].Value)
	assert.Equal("on", *inputs[2].Value, "static value used when no live value")

	set := switchtile.Normalize(inputs)
	pump, _ := set.Get("Pump")
	assert.Equal(switchtile.StateOn, pump.Selected)
	valve, _ := set.Get("Valve")
	assert.Equal(switchtile.StateUnknown, valve.Selected)
	static, _ := set.Get("Static")
	assert.Equal(switchtile.StateOn, static.Selected)
}

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("Switch2MQTT")
	assert.NoError(err)
	assert.Equal("switch2mqtt", topic)

	_, err = CheckMQTTTopic("switch/2")
	assert.Error(err)
	_, err = CheckMQTTTopic("")
	assert.Error(err)
}

func TestConfigCheck(t *testing.T) {

	assert := assert.New(t)

	valid := func() Config {
		return Config{
			MQTT: MQTTConfig{
				BaseTopic:        "Tiles",
				HADiscoveryTopic: "homeassistant",
			},
			Modbus:   ModbusConfig{PollIntervalMillis: 5000},
			Refresh:  RefreshConfig{IntervalMillis: 60000},
			TileFile: "tile.yaml",
		}
	}

	cfg := valid()
	assert.NoError(cfg.Check())
	assert.Equal("tiles", cfg.MQTT.BaseTopic)

	cfg = valid()
	cfg.Refresh.IntervalMillis = 0
	assert.NoError(cfg.Check(), "refresh disabled")

	cfg = valid()
	cfg.Refresh.IntervalMillis = 10
	assert.Error(cfg.Check())

	cfg = valid()
	cfg.Modbus.PollIntervalMillis = 100
	assert.Error(cfg.Check())

	cfg = valid()
	cfg.MQTT.HADiscoveryTopic = "home/assistant"
	assert.Error(cfg.Check())

	cfg = valid()
	cfg.TileFile = ""
	assert.Error(cfg.Check())
}
