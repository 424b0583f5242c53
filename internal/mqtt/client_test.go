package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/berfenger/switch2mqtt/internal/config"
	"github.com/berfenger/switch2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitchCommandParse(t *testing.T) {

	assert := assert.New(t)

	r := switchCommandExtractor("loremTopic")

	cmd, err := parseSwitchCommand(r, "loremTopic/switch/my_device/command", []byte("on"))
	assert.NoError(err)
	assert.Equal("my_device", cmd.SwitchId, "switch id extract")
	assert.True(cmd.Selected)

	cmd, err = parseSwitchCommand(r, "loremTopic/switch/my_device/command", []byte(" OFF\n"))
	assert.NoError(err)
	assert.False(cmd.Selected)
	assert.Equal("off", cmd.Payload)
}

func TestSwitchCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	r := switchCommandExtractor("loremTopic")

	_, err := parseSwitchCommand(r, "loremTopic/switch/my_device/state", []byte("on"))
	assert.ErrorIs(err, ErrInvalidCommand, "state topic")

	_, err = parseSwitchCommand(r, "other/loremTopic/switch/my_device/command", []byte("on"))
	assert.ErrorIs(err, ErrInvalidCommand, "foreign prefix")

	_, err = parseSwitchCommand(r, "loremTopic/switch/my_device/command", []byte("toggle"))
	assert.ErrorIs(err, ErrInvalidCommand, "bad payload")
}

func TestExtractValue(t *testing.T) {

	assert := assert.New(t)

	tests := []struct {
		name     string
		payload  string
		path     string
		expected *string
	}{
		{"raw", "12.5", "", ptr("12.5")},
		{"raw json", `{"a":1}`, "", ptr(`{"a":1}`)},
		{"number", `{"apower":12.5}`, "apower", ptr("12.5")},
		{"string", `{"state":"open"}`, "state", ptr("open")},
		{"nested", `{"switch":{"output":true}}`, "switch.output", ptr("true")},
		{"array", `{"list":[1,2,3]}`, "list.1", ptr("2")},
		{"missing", `{"apower":12.5}`, "voltage", nil},
		{"null", `{"apower":null}`, "apower", nil},
		{"not json", "12.5 W", "apower", nil},
	}

	for _, tt := range tests {
		got := ExtractValue([]byte(tt.payload), tt.path)
		if tt.expected == nil {
			assert.Nil(got, tt.name)
		} else if assert.NotNil(got, tt.name) {
			assert.Equal(*tt.expected, *got, tt.name)
		}
	}
}

func TestSwitchDiscoveryMessage(t *testing.T) {

	require := require.New(t)

	cfg := &config.Config{MQTT: config.MQTTConfig{
		Host:             "localhost",
		Port:             1883,
		BaseTopic:        "switch2mqtt",
		HADiscoveryTopic: "homeassistant",
	}}
	client := CreateMQTTClient(cfg, OptsFromConfig(cfg), nil, nil)

	dev := domain.TileDevice("switch2mqtt", "Garden")
	sw := domain.GenericSwitch{
		Device:      dev,
		Id:          "pump_abcdef",
		Name:        "Pump",
		UniqueId:    "uid_pump",
		DeviceClass: domain.DEVICE_CLASS_SWITCH,
	}

	msg := GenericSwitchToHADiscoveryMessage(client, sw)
	require.Equal("switch2mqtt/switch/pump_abcdef/state", msg.StateTopic)
	require.Equal("switch2mqtt/switch/pump_abcdef/command", msg.CommandTopic)
	require.Equal("switch2mqtt/switch/pump_abcdef/attributes", msg.JSONAttributesTopic)
	require.Equal("switch2mqtt/bridge/state", msg.AvTopic)
	require.Equal([]string{dev.Id}, msg.Device.Id)

	require.Equal("homeassistant/switch/"+dev.Id+"/pump_abcdef/config", HADiscoverySwitchTopic(client.DiscoveryTopic(), sw))

	raw, err := json.Marshal(msg)
	require.NoError(err)
	var decoded map[string]any
	require.NoError(json.Unmarshal(raw, &decoded))
	require.Equal("on", decoded["payload_on"])
	require.Equal("mqtt", decoded["platform"])
}

func ptr(s string) *string {
	return &s
}
