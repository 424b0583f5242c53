package domain

import (
	"github.com/berfenger/switch2mqtt/internal/core/switchtile"
)

// ActionPayload is emitted when a user toggles a switch.
type ActionPayload struct {
	Args         bool   `json:"args"`
	ActionApp    string `json:"actionApp"`
	ActionDevice string `json:"actionDevice"`
	ActionTopic  string `json:"actionTopic"`
	Label        string `json:"label"`
}

func NewActionPayload(ns switchtile.NormalizedSeries, selected bool) ActionPayload {
	return ActionPayload{
		Args:         selected,
		ActionApp:    ns.ActionApp,
		ActionDevice: ns.ActionDevice,
		ActionTopic:  ns.ActionTopic,
		Label:        ns.Label,
	}
}

// StateChange reports a switch whose evaluated state differs from the previous pass.
type StateChange struct {
	Series   switchtile.NormalizedSeries
	Previous switchtile.State
	New      bool
}

func (c StateChange) Event() SwitchStateUpdateEvent {
	selected, known := c.Series.Selected.Bool()
	return SwitchStateUpdateEvent{
		SwitchUpdateEventMixIn: SwitchUpdateEventMixIn{
			Id: SwitchId(c.Series.Label),
		},
		Label:      c.Series.Label,
		Value:      selected,
		Known:      known,
		Attributes: SwitchAttributes(c.Series),
	}
}

func SwitchAttributes(ns switchtile.NormalizedSeries) map[string]any {
	attrs := map[string]any{
		"label":    ns.Label,
		"selected": ns.Selected,
	}
	if ns.ActionApp != "" {
		attrs["action_app"] = ns.ActionApp
	}
	if ns.ActionDevice != "" {
		attrs["action_device"] = ns.ActionDevice
	}
	if ns.ActionTopic != "" {
		attrs["action_topic"] = ns.ActionTopic
	}
	if ns.Styling != nil {
		attrs["styling"] = ns.Styling
	}
	return attrs
}
