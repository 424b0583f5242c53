package util

import (
	"github.com/berfenger/switch2mqtt/internal/config"
	"github.com/berfenger/switch2mqtt/internal/core/switchtile"
	"github.com/berfenger/switch2mqtt/pkg/registers"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "switch2mqtt",
			HADiscoveryTopic: "homeassistant",
		},
		Modbus: config.ModbusConfig{
			Host:               "-.-.-.-",
			Port:               502,
			TimeoutMillis:      1000,
			PollIntervalMillis: 500,
		},
		Refresh: config.RefreshConfig{
			IntervalMillis: 0,
		},
		Port: 8080,
		Tile: LoadTestTile(),
	}
}

// LoadTestTile describes three switches: an MQTT sourced pump, a Modbus sourced valve
// and a light driven only by its static value.
func LoadTestTile() *config.TileDefinition {
	return &config.TileDefinition{
		Title:    "Garden",
		SubTitle: "Irrigation",
		Dataseries: []config.SeriesDefinition{
			{
				Label:        "Pump",
				StateMap:     &switchtile.StateMap{On: str(">0"), Off: str("<=0")},
				ActionApp:    "irrigation",
				ActionDevice: "pump-1",
				ActionTopic:  "garden/pump/set",
				Source: &config.SeriesSource{
					MQTT: &config.MQTTSource{Topic: "garden/pump/power", JSONPath: "apower"},
				},
			},
			{
				Label:       "Valve",
				StateMap:    &switchtile.StateMap{On: str("1"), Off: str("0")},
				ActionTopic: "garden/valve/set",
				Source: &config.SeriesSource{
					Modbus: &registers.RegisterSource{
						UnitId:       1,
						Address:      100,
						RegisterType: registers.REGISTER_TYPE_COIL,
					},
				},
			},
			{
				Label:    "Light",
				Value:    str("on"),
				StateMap: &switchtile.StateMap{On: str("on"), Off: str("off")},
			},
		},
	}
}

func str(s string) *string {
	return &s
}
