package domain

import "fmt"

type SwitchUpdateEventMixIn struct {
	Id string
}

type SwitchUpdateEvent interface {
	SwitchUpdateEvent() string
	SwitchId() string
}

func (e SwitchUpdateEventMixIn) SwitchUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SwitchUpdateEventMixIn) SwitchId() string {
	return e.Id
}

// SwitchStateUpdateEvent carries the evaluated state of one tile switch.
// Known is false when the state could not be decided.
type SwitchStateUpdateEvent struct {
	SwitchUpdateEventMixIn
	Label      string
	Value      bool
	Known      bool
	Attributes map[string]any
}

type BridgeStateUpdateEvent struct {
	SwitchUpdateEventMixIn
	Value bool
}

// ActionSubmitEvent is published on the event stream for every emitted action.
type ActionSubmitEvent struct {
	Payload ActionPayload
}
