package port

import (
	"github.com/berfenger/switch2mqtt/internal/config"
	"github.com/berfenger/switch2mqtt/internal/core/domain"
	"github.com/berfenger/switch2mqtt/internal/core/switchtile"
)

type SwitchTile interface {
	Title() string
	SubTitle() string
	Definition() *config.TileDefinition
	SetDefinition(def *config.TileDefinition) []domain.StateChange
	SetValue(index int, value *string) ([]domain.StateChange, error)
	Recompute() []domain.StateChange
	Series() *switchtile.SeriesSet
	LabelForSwitchId(id string) (string, bool)
	Toggle(label string, selected bool) (*domain.ActionPayload, error)
}
