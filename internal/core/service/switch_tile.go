package service

import (
	"errors"
	"fmt"

	"github.com/berfenger/switch2mqtt/internal/config"
	"github.com/berfenger/switch2mqtt/internal/core/domain"
	"github.com/berfenger/switch2mqtt/internal/core/port"
	"github.com/berfenger/switch2mqtt/internal/core/switchtile"
	"github.com/berfenger/switch2mqtt/internal/metrics"

	"go.uber.org/zap"
)

var (
	ErrUnknownSeries = errors.New("unknown series")
	ErrUnknownSwitch = errors.New("unknown switch")
)

// DefaultSwitchTile keeps the tile definition and the latest series values and
// rebuilds the normalized series on every change. It is not safe for concurrent use;
// the tile actor owns it.
type DefaultSwitchTile struct {
	definition *config.TileDefinition
	values     []*string
	series     *switchtile.SeriesSet
	switchIds  map[string]string
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

func NewSwitchTile(def *config.TileDefinition, logger *zap.Logger, m *metrics.Metrics) *DefaultSwitchTile {
	if def == nil {
		def = &config.TileDefinition{}
	}
	tile := &DefaultSwitchTile{
		definition: def,
		values:     make([]*string, len(def.Dataseries)),
		Logger:     logger,
		Metrics:    m,
	}
	tile.Recompute()
	return tile
}

func (t *DefaultSwitchTile) Title() string {
	return t.definition.Title
}

func (t *DefaultSwitchTile) SubTitle() string {
	return t.definition.SubTitle
}

func (t *DefaultSwitchTile) Definition() *config.TileDefinition {
	return t.definition
}

// SetDefinition replaces the tile definition. A value moves with its series to the
// new position when a series with the same label and source still exists.
func (t *DefaultSwitchTile) SetDefinition(def *config.TileDefinition) []domain.StateChange {
	if def == nil {
		def = &config.TileDefinition{}
	}
	values := make([]*string, len(def.Dataseries))
	taken := make([]bool, len(t.definition.Dataseries))
	for i, ds := range def.Dataseries {
		for j, old := range t.definition.Dataseries {
			if !taken[j] && old.Label == ds.Label && old.SameSource(ds) {
				values[i] = t.values[j]
				taken[j] = true
				break
			}
		}
	}
	t.definition = def
	t.values = values
	return t.Recompute()
}

func (t *DefaultSwitchTile) SetValue(index int, value *string) ([]domain.StateChange, error) {
	if index < 0 || index >= len(t.values) {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownSeries, index)
	}
	t.values[index] = value
	return t.Recompute(), nil
}

// Recompute normalizes the current inputs and reports the switches whose state
// changed or that did not exist before.
func (t *DefaultSwitchTile) Recompute() []domain.StateChange {
	previous := t.series
	t.series = switchtile.Normalize(t.definition.SeriesInputs(t.values))

	t.switchIds = make(map[string]string, t.series.Len())
	var changes []domain.StateChange
	for _, ns := range t.series.Entries() {
		t.switchIds[domain.SwitchId(ns.Label)] = ns.Label
		old, ok := previous.Get(ns.Label)
		if !ok {
			changes = append(changes, domain.StateChange{Series: ns, New: true})
		} else if old.Selected != ns.Selected {
			changes = append(changes, domain.StateChange{Series: ns, Previous: old.Selected})
		}
	}
	t.Metrics.ObserveSeries(t.series)
	if t.Logger != nil {
		t.Logger.Debug("switch tile recomputed", zap.Int("series", t.series.Len()), zap.Int("changes", len(changes)))
	}
	return changes
}

func (t *DefaultSwitchTile) Series() *switchtile.SeriesSet {
	return t.series
}

func (t *DefaultSwitchTile) LabelForSwitchId(id string) (string, bool) {
	label, ok := t.switchIds[id]
	return label, ok
}

func (t *DefaultSwitchTile) Toggle(label string, selected bool) (*domain.ActionPayload, error) {
	ns, ok := t.series.Get(label)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSwitch, label)
	}
	payload := domain.NewActionPayload(ns, selected)
	if t.Logger != nil {
		t.Logger.Info("switch toggled", zap.String("label", label), zap.Bool("selected", selected))
	}
	return &payload, nil
}

// ensure interface compliance
var _ port.SwitchTile = (*DefaultSwitchTile)(nil)
