package domain

import (
	"github.com/berfenger/switch2mqtt/internal/config"
	"github.com/berfenger/switch2mqtt/internal/core/switchtile"
	"github.com/berfenger/switch2mqtt/pkg/registers"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MODBUS       = "modbus"
	ACTOR_ID_POLLER       = "poller"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_TILE         = "tile"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// INITIAL_TILE_GENERATION numbers the tile definition loaded at startup. Every accepted
// reload increments it.
const INITIAL_TILE_GENERATION = 1

// Tile

type GetTileRequest struct {
	ActorRequestMixIn
}

type GetTileResponse struct {
	ActorResponseMixIn
	Title    string
	SubTitle string
	Series   []switchtile.NormalizedSeries
}

type SetTileDefinitionRequest struct {
	ActorRequestMixIn
	Definition *config.TileDefinition
	Generation int
}

type SetTileDefinitionResponse struct {
	ActorResponseMixIn
	Changes []StateChange
}

// UpdateSeriesValueRequest sets the value of the series at Index. Sources stamp the
// definition generation the index was computed for; zero addresses the current one.
type UpdateSeriesValueRequest struct {
	ActorRequestMixIn
	Index      int
	Value      *string
	Source     string
	Generation int
}

type UpdateSeriesValueResponse struct {
	ActorResponseMixIn
	Changes []StateChange
}

// ToggleSwitchRequest addresses a switch by label, or by its MQTT switch id when the
// label is empty.
type ToggleSwitchRequest struct {
	ActorRequestMixIn
	Label    string
	SwitchId string
	Selected bool
}

type ToggleSwitchResponse struct {
	ActorResponseMixIn
	Payload *ActionPayload
}

type RefreshRequest struct {
	ActorRequestMixIn
}

// TileSourcesChanged tells the value sources which series they now feed.
type TileSourcesChanged struct {
	Definition *config.TileDefinition
	Generation int
}

// Modbus

type ReadRegisterRequest struct {
	ActorRequestMixIn
	Index      int
	Generation int
	Source     registers.RegisterSource
}

type ReadRegisterResponse struct {
	ActorResponseMixIn
	Index      int
	Generation int
	Value      string
}

// MQTT

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSwitchUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SwitchStateUpdateEvent
}

type PublishSwitchUpdateResponse struct {
	ActorResponseMixIn
}

type PublishActionRequest struct {
	ActorRequestMixIn
	Payload ActionPayload
}

type PublishActionResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Switches []GenericSwitch
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
