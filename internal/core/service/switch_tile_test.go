package service

import (
	"testing"

	"github.com/berfenger/switch2mqtt/internal/config"
	"github.com/berfenger/switch2mqtt/internal/core/domain"
	"github.com/berfenger/switch2mqtt/internal/core/switchtile"
	"github.com/berfenger/switch2mqtt/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func str(s string) *string {
	return &s
}

func testDefinition() *config.TileDefinition {
	return &config.TileDefinition{
		Title:    "Garden",
		SubTitle: "Pumps",
		Dataseries: []config.SeriesDefinition{
			{
				Label:        "Pump",
				StateMap:     &switchtile.StateMap{On: str(">0")},
				ActionApp:    "irrigation",
				ActionDevice: "pump-1",
				ActionTopic:  "garden/pump/set",
			},
			{
				Label:    "Valve",
				StateMap: &switchtile.StateMap{On: str("open"), Off: str("closed")},
			},
			{
				Label:    "Pump",
				StateMap: &switchtile.StateMap{Off: str(">=10")},
			},
		},
	}
}

func TestNewSwitchTile(t *testing.T) {

	require := require.New(t)

	tile := NewSwitchTile(testDefinition(), zap.NewNop(), nil)

	require.Equal("Garden", tile.Title())
	require.Equal("Pumps", tile.SubTitle())
	require.Equal([]string{"Pump", "Valve", "Pump-2"}, tile.Series().Keys())
	for _, ns := range tile.Series().Entries() {
		require.Equal(switchtile.StateUnknown, ns.Selected, "no values yet")
	}
}

func TestSetValueReportsChanges(t *testing.T) {

	require := require.New(t)

	tile := NewSwitchTile(testDefinition(), zap.NewNop(), nil)

	changes, err := tile.SetValue(0, str("3"))
	require.NoError(err)
	require.Len(changes, 1)
	require.Equal("Pump", changes[0].Series.Label)
	require.Equal(switchtile.StateOn, changes[0].Series.Selected)
	require.Equal(switchtile.StateUnknown, changes[0].Previous)

	// same state again, nothing changes
	changes, err = tile.SetValue(0, str("4"))
	require.NoError(err)
	require.Empty(changes)

	changes, err = tile.SetValue(2, str("9"))
	require.NoError(err)
	require.Len(changes, 1)
	require.Equal("Pump-2", changes[0].Series.Label)
	require.Equal(switchtile.StateOn, changes[0].Series.Selected)

	changes, err = tile.SetValue(1, nil)
	require.NoError(err)
	require.Empty(changes)
}

func TestSetValueUnknownIndex(t *testing.T) {

	require := require.New(t)

	tile := NewSwitchTile(testDefinition(), nil, nil)

	_, err := tile.SetValue(3, str("1"))
	require.ErrorIs(err, ErrUnknownSeries)
	_, err = tile.SetValue(-1, str("1"))
	require.ErrorIs(err, ErrUnknownSeries)
}

func TestSetDefinitionKeepsValues(t *testing.T) {

	require := require.New(t)

	tile := NewSwitchTile(testDefinition(), zap.NewNop(), nil)
	_, err := tile.SetValue(0, str("3"))
	require.NoError(err)
	_, err = tile.SetValue(1, str("open"))
	require.NoError(err)

	def := testDefinition()
	def.Dataseries[1].Label = "Gate"
	def.Dataseries = append(def.Dataseries, config.SeriesDefinition{Label: "Light"})

	changes := tile.SetDefinition(def)

	pump, _ := tile.Series().Get("Pump")
	require.Equal(switchtile.StateOn, pump.Selected, "value kept for unchanged series")
	gate, _ := tile.Series().Get("Gate")
	require.Equal(switchtile.StateUnknown, gate.Selected, "value dropped for renamed series")

	var added []string
	for _, c := range changes {
		if c.New {
			added = append(added, c.Series.Label)
		}
	}
	require.ElementsMatch([]string{"Gate", "Light"}, added)
}

func TestSetDefinitionMovesValuesWithSeries(t *testing.T) {

	require := require.New(t)

	tile := NewSwitchTile(testDefinition(), zap.NewNop(), nil)
	_, err := tile.SetValue(1, str("open"))
	require.NoError(err)
	_, err = tile.SetValue(2, str("12"))
	require.NoError(err)

	// a series without value is inserted before the valve
	old := testDefinition()
	def := &config.TileDefinition{
		Dataseries: []config.SeriesDefinition{
			old.Dataseries[0],
			{Label: "Heater", StateMap: &switchtile.StateMap{On: str("open")}},
			old.Dataseries[1],
			old.Dataseries[2],
		},
	}
	tile.SetDefinition(def)

	heater, _ := tile.Series().Get("Heater")
	require.Equal(switchtile.StateUnknown, heater.Selected)
	valve, _ := tile.Series().Get("Valve")
	require.Equal(switchtile.StateOn, valve.Selected)
	pump3, _ := tile.Series().Get("Pump-3")
	require.Equal(switchtile.StateOff, pump3.Selected, "duplicate label keeps its own value")

	// the same label read from another source starts unknown
	moved := *def
	moved.Dataseries = append([]config.SeriesDefinition(nil), def.Dataseries...)
	moved.Dataseries[2].Source = &config.SeriesSource{MQTT: &config.MQTTSource{Topic: "garden/valve"}}
	tile.SetDefinition(&moved)

	valve, _ = tile.Series().Get("Valve")
	require.Equal(switchtile.StateUnknown, valve.Selected)
}

func TestToggle(t *testing.T) {

	require := require.New(t)

	tile := NewSwitchTile(testDefinition(), zap.NewNop(), nil)

	payload, err := tile.Toggle("Pump", true)
	require.NoError(err)
	require.Equal(domain.ActionPayload{
		Args:         true,
		ActionApp:    "irrigation",
		ActionDevice: "pump-1",
		ActionTopic:  "garden/pump/set",
		Label:        "Pump",
	}, *payload)

	payload, err = tile.Toggle("Pump-2", false)
	require.NoError(err)
	require.Equal("Pump-2", payload.Label)
	require.False(payload.Args)

	_, err = tile.Toggle("Nope", true)
	require.ErrorIs(err, ErrUnknownSwitch)
}

func TestLabelForSwitchId(t *testing.T) {

	assert := assert.New(t)

	tile := NewSwitchTile(testDefinition(), nil, nil)

	label, ok := tile.LabelForSwitchId(domain.SwitchId("Pump-2"))
	assert.True(ok)
	assert.Equal("Pump-2", label)

	_, ok = tile.LabelForSwitchId("missing")
	assert.False(ok)
}

func TestNilDefinition(t *testing.T) {

	assert := assert.New(t)

	tile := NewSwitchTile(nil, nil, nil)
	assert.Equal(0, tile.Series().Len())
	assert.Empty(tile.SetDefinition(nil))
}

func TestRecomputeMetrics(t *testing.T) {

	assert := assert.New(t)

	m := metrics.NewMetrics()
	tile := NewSwitchTile(testDefinition(), nil, m)

	assert.Equal(3.0, testutil.ToFloat64(m.Series))
	assert.Equal(3.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("unknown")))

	_, err := tile.SetValue(1, str("closed"))
	assert.NoError(err)
	assert.Equal(1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("off")))
}
