package mqtt

import (
	"fmt"

	"github.com/berfenger/switch2mqtt/internal/core/domain"
)

type HADiscoveryConfig struct {
	Device              HADiscoveryDevice `json:"device"`
	StateTopic          string            `json:"state_topic"`
	CommandTopic        string            `json:"command_topic,omitempty"`
	JSONAttributesTopic string            `json:"json_attributes_topic,omitempty"`
	DeviceClass         string            `json:"device_class,omitempty"`
	AvTopic             string            `json:"availability_topic,omitempty"`
	Name                string            `json:"name"`
	UniqueId            string            `json:"unique_id"`
	Platform            string            `json:"platform"`
	PayloadOn           string            `json:"payload_on,omitempty"`
	PayloadOff          string            `json:"payload_off,omitempty"`
	StateOn             string            `json:"state_on,omitempty"`
	StateOff            string            `json:"state_off,omitempty"`
	Icon                string            `json:"icon,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

func HADiscoverySwitchTopic(discoveryTopic string, sw domain.GenericSwitch) string {
	return fmt.Sprintf("%s/switch/%s/%s/config", discoveryTopic, sw.Device.Id, sw.Id)
}

func GenericSwitchToHADiscoveryMessage(client *MQTTClient, sw domain.GenericSwitch) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:              device(sw.Device),
		StateTopic:          client.SwitchStateTopic(sw.Id),
		CommandTopic:        client.SwitchCommandTopic(sw.Id),
		JSONAttributesTopic: client.SwitchAttributesTopic(sw.Id),
		DeviceClass:         sw.DeviceClass,
		AvTopic:             client.BridgeStateTopic(),
		Name:                sw.Name,
		UniqueId:            sw.UniqueId,
		Icon:                sw.Icon,
		Platform:            "mqtt",
		PayloadOn:           MQTT_PAYLOAD_ON,
		PayloadOff:          MQTT_PAYLOAD_OFF,
		StateOn:             MQTT_PAYLOAD_ON,
		StateOff:            MQTT_PAYLOAD_OFF,
	}
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}
