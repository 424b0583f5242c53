package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/switch2mqtt/internal/config"
	"github.com/berfenger/switch2mqtt/internal/core/domain"
	"github.com/berfenger/switch2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type tileDefinitionChanged struct{}

type HADiscoveryActor struct {
	config    *config.Config
	behavior  actor.Behavior
	stash     *actorutil.Stash
	mqttActor *actor.PID
	tileActor *actor.PID

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, tileActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		mqttActor: mqttActor,
		tileActor: tileActor,
		behavior:  actor.NewBehavior(),
		stash:     &actorutil.Stash{},
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// MQTT must be connected before anything gets published
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 15*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			panic(errors.New("MQTT Actor is not healthy"))
		}
		state.requestTile(ctx)
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingTileReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetTileResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@tile: GetTileResponse", zap.Int("series", len(msg.Series)))

		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Switches: DiscoverySwitches(state.config.MQTT.BaseTopic, msg),
		})
		state.behavior.Become(state.DoneReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("hadiscovery@tile: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// DoneReceive republishes the discovery configuration when the tile definition changes.
func (state *HADiscoveryActor) DoneReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case tileDefinitionChanged:
		state.logger.Debug("hadiscovery@done: tile definition changed")
		state.requestTile(ctx)
	default:
		state.logger.Debug("hadiscovery@done: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) requestTile(ctx actor.Context) {
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.tileActor, domain.GetTileRequest{}, 2*time.Second), func(err error) any {
		return domain.GetTileResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
		}
	})
	state.behavior.Become(state.WaitingTileReceive)
}

// DiscoverySwitches lists the bridge-attached switch of every tile series.
func DiscoverySwitches(baseTopic string, tile domain.GetTileResponse) []domain.GenericSwitch {
	bridgeDevice := domain.BridgeDevice(baseTopic)
	tileDevice := domain.TileDevice(baseTopic, tile.Title)
	tileDevice.ViaDevice = bridgeDevice.Id
	return domain.TileSwitches(tileDevice, tile.Series)
}
