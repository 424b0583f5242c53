package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/berfenger/switch2mqtt/internal/core/switchtile"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SWITCH_ID_BRIDGE_STATE = "bridge"
	DEVICE_CLASS_SWITCH    = "switch"
	DEVICE_CLASS_OUTLET    = "outlet"
)

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSwitch struct {
	Device      Device
	Id          string
	Name        string
	UniqueId    string
	Icon        string
	DeviceClass string
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("switch2mqtt_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "switch2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("switch2mqtt %s", md5HashShort(baseTopic)),
	}
}

func TileDevice(baseTopic, title string) Device {
	name := title
	if name == "" {
		name = "Switch tile"
	}
	return Device{
		Id:           fmt.Sprintf("switch2mqtt_tile_%s", md5HashShort(baseTopic+"/"+title)),
		Manufacturer: "ACasal",
		Model:        "Switch tile",
		Version:      versioninfo.Short(),
		Name:         name,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

// TileSwitches lists one switch per normalized series. Only the first switch carries
// the full device description.
func TileSwitches(tileDevice Device, series []switchtile.NormalizedSeries) []GenericSwitch {

	var switches []GenericSwitch

	for i, ns := range series {
		device := tileDevice
		if i > 0 {
			device = IdDevice(tileDevice)
		}
		id := SwitchId(ns.Label)
		name := ns.Label
		if name == "" {
			name = "Switch"
		}
		switches = append(switches, GenericSwitch{
			Device:      device,
			Id:          id,
			Name:        name,
			UniqueId:    uniqueId(tileDevice.Id, id),
			Icon:        "mdi:toggle-switch",
			DeviceClass: DEVICE_CLASS_SWITCH,
		})
	}

	return switches
}

var switchIdInvalid = regexp.MustCompile("[^a-z0-9_]+")

// SwitchId derives an MQTT safe id from a series label. A short hash of the label is
// appended so labels that only differ in punctuation stay apart.
func SwitchId(label string) string {
	slug := strings.Trim(switchIdInvalid.ReplaceAllString(strings.ToLower(label), "_"), "_")
	if slug == "" {
		slug = "switch"
	}
	return fmt.Sprintf("%s_%s", slug, md5HashShort(label)[:6])
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}
