package actor

import (
	"errors"
	"fmt"

	"github.com/berfenger/switch2mqtt/internal/config"
	"github.com/berfenger/switch2mqtt/internal/core/domain"
	"github.com/berfenger/switch2mqtt/internal/core/port"
	"github.com/berfenger/switch2mqtt/internal/core/service"
	"github.com/berfenger/switch2mqtt/internal/metrics"
	"github.com/berfenger/switch2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

var ErrStaleSeriesIndex = errors.New("series index refers to a replaced tile definition")

// TileActor owns the switch tile. Every value update, definition change and toggle is
// serialized through its mailbox.
type TileActor struct {
	config      *config.Config
	tile        port.SwitchTile
	generation  int
	mqttActor   *actor.PID
	eventStream *eventstream.EventStream
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewTileActor(config *config.Config, mqttActor *actor.PID, eventStream *eventstream.EventStream, m *metrics.Metrics, logger *zap.Logger) *TileActor {
	tileLogger := actorutil.ActorLogger(domain.ACTOR_ID_TILE, logger)
	return &TileActor{
		config:      config,
		tile:        service.NewSwitchTile(config.Tile, tileLogger, m),
		generation:  domain.INITIAL_TILE_GENERATION,
		mqttActor:   mqttActor,
		eventStream: eventStream,
		metrics:     m,
		logger:      tileLogger,
	}
}

func (state *TileActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("tile@default started", zap.Int("series", state.tile.Series().Len()))
		state.publishAll(ctx)
	case domain.ActorHealthRequest:
		state.logger.Debug("tile@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_TILE,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetTileRequest:
		state.logger.Debug("tile@default GetTileRequest")
		state.respond(ctx, msg, domain.GetTileResponse{
			Title:    state.tile.Title(),
			SubTitle: state.tile.SubTitle(),
			Series:   state.tile.Series().Sorted(),
		})
	case domain.SetTileDefinitionRequest:
		if msg.Definition == nil {
			state.respond(ctx, msg, domain.SetTileDefinitionResponse{ActorResponseMixIn: domain.ErrorResponse(errors.New("tile definition is required"))})
			return
		}
		state.logger.Info("tile@default SetTileDefinitionRequest", zap.Int("series", len(msg.Definition.Dataseries)))
		if err := msg.Definition.Validate(); err != nil {
			state.respond(ctx, msg, domain.SetTileDefinitionResponse{ActorResponseMixIn: domain.ErrorResponse(err)})
			return
		}
		changes := state.tile.SetDefinition(msg.Definition)
		if msg.Generation != 0 {
			state.generation = msg.Generation
		}
		state.publishChanges(ctx, changes)
		state.respond(ctx, msg, domain.SetTileDefinitionResponse{Changes: changes})
	case domain.UpdateSeriesValueRequest:
		state.logger.Debug("tile@default UpdateSeriesValueRequest", zap.Int("index", msg.Index), zap.String("source", msg.Source), zap.Stringp("value", msg.Value))
		if msg.Generation != 0 && msg.Generation != state.generation {
			state.logger.Debug("tile@default stale value update dropped", zap.Int("index", msg.Index), zap.Int("generation", msg.Generation))
			state.respond(ctx, msg, domain.UpdateSeriesValueResponse{ActorResponseMixIn: domain.ErrorResponse(ErrStaleSeriesIndex)})
			return
		}
		state.metrics.ObserveValueUpdate(msg.Source)
		changes, err := state.tile.SetValue(msg.Index, msg.Value)
		if err != nil {
			state.logger.Warn("tile@default value update rejected", zap.Int("index", msg.Index), zap.Error(err))
			state.respond(ctx, msg, domain.UpdateSeriesValueResponse{ActorResponseMixIn: domain.ErrorResponse(err)})
			return
		}
		state.publishChanges(ctx, changes)
		state.respond(ctx, msg, domain.UpdateSeriesValueResponse{Changes: changes})
	case domain.ToggleSwitchRequest:
		state.logger.Debug("tile@default ToggleSwitchRequest", zap.String("label", msg.Label), zap.String("switch", msg.SwitchId), zap.Bool("selected", msg.Selected))
		payload, err := state.toggle(msg)
		state.metrics.ObserveAction(err)
		if err != nil {
			state.logger.Warn("tile@default toggle rejected", zap.Error(err))
			state.respond(ctx, msg, domain.ToggleSwitchResponse{ActorResponseMixIn: domain.ErrorResponse(err)})
			return
		}
		if state.mqttActor != nil {
			ctx.Send(state.mqttActor, domain.PublishActionRequest{Payload: *payload})
		}
		if state.eventStream != nil {
			state.eventStream.Publish(domain.ActionSubmitEvent{Payload: *payload})
		}
		state.respond(ctx, msg, domain.ToggleSwitchResponse{Payload: payload})
	case domain.RefreshRequest:
		state.logger.Debug("tile@default RefreshRequest")
		state.publishAll(ctx)
	default:
		state.logger.Debug("tile@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *TileActor) toggle(msg domain.ToggleSwitchRequest) (*domain.ActionPayload, error) {
	label := msg.Label
	if label == "" && msg.SwitchId != "" {
		var ok bool
		label, ok = state.tile.LabelForSwitchId(msg.SwitchId)
		if !ok {
			return nil, fmt.Errorf("%w: switch id %q", service.ErrUnknownSwitch, msg.SwitchId)
		}
	}
	return state.tile.Toggle(label, msg.Selected)
}

func (state *TileActor) publishChanges(ctx actor.Context, changes []domain.StateChange) {
	if state.mqttActor == nil {
		return
	}
	for _, change := range changes {
		ctx.Send(state.mqttActor, domain.PublishSwitchUpdateRequest{
			Retain: true,
			Event:  change.Event(),
		})
	}
}

func (state *TileActor) publishAll(ctx actor.Context) {
	var changes []domain.StateChange
	for _, ns := range state.tile.Series().Entries() {
		changes = append(changes, domain.StateChange{Series: ns, Previous: ns.Selected})
	}
	state.publishChanges(ctx, changes)
}

// respond answers requests made with RequestFuture or carrying a reply-to reference.
// Fire-and-forget messages get no answer.
func (state *TileActor) respond(ctx actor.Context, req domain.ActorRequest, resp domain.ActorResponse) {
	if req.ReplyTo() == nil && ctx.Sender() == nil {
		return
	}
	actorutil.ForRequest(req).Respond(ctx, resp)
}

// IsUnknownSwitch reports whether a tile response failed because the switch does not exist.
func IsUnknownSwitch(resp domain.ActorResponse) bool {
	return resp != nil && errors.Is(resp.GetResponseError(), service.ErrUnknownSwitch)
}

// IsUnknownSeries reports whether a tile response failed because the series index does not exist.
func IsUnknownSeries(resp domain.ActorResponse) bool {
	return resp != nil && errors.Is(resp.GetResponseError(), service.ErrUnknownSeries)
}
