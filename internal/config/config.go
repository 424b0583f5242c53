package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	MQTT     MQTTConfig    `mapstructure:"mqtt"`
	Modbus   ModbusConfig  `mapstructure:"modbus"`
	Refresh  RefreshConfig `mapstructure:"refresh"`
	TileFile string        `mapstructure:"tile_file"`
	Port     uint          `mapstructure:"port"`
	HttpLog  bool          `mapstructure:"http_log"`

	Tile *TileDefinition `mapstructure:"-"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type ModbusConfig struct {
	Host               string
	Port               uint
	TimeoutMillis      uint32 `mapstructure:"timeout_millis"`
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
}

type RefreshConfig struct {
	IntervalMillis uint32 `mapstructure:"interval_millis"`
}

func (cfg *Config) Check() error {
	// check and fix base topic
	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if cfg.Refresh.IntervalMillis > 0 && cfg.Refresh.IntervalMillis < 1000 {
		return errors.New("config param refresh.interval_millis should be >= 1000 or 0 to disable")
	}
	if cfg.Modbus.PollIntervalMillis < 500 {
		return errors.New("config param modbus.poll_interval_millis should be >= 500")
	}
	if cfg.Tile == nil && cfg.TileFile == "" {
		return errors.New("config param tile_file is required")
	}
	return nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
