package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/switch2mqtt/internal/config"
	"github.com/berfenger/switch2mqtt/internal/core/domain"
	"github.com/berfenger/switch2mqtt/internal/util/actorutil"
	"github.com/berfenger/switch2mqtt/pkg/registers"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const SOURCE_MODBUS = "modbus"

// PollerActor reads every Modbus sourced series on a fixed interval and forwards the
// values that changed to the tile actor.
type PollerActor struct {
	interval    time.Duration
	timeout     time.Duration
	sources     map[int]registers.RegisterSource
	generation  int
	last        map[int]*string
	modbusActor *actor.PID
	tileActor   *actor.PID
	scheduler   *scheduler.TimerScheduler
	cancelTick  scheduler.CancelFunc
	logger      *zap.Logger
}

type pollTick struct{}

func NewPollerActor(config *config.Config, modbusActor *actor.PID, tileActor *actor.PID, logger *zap.Logger) *PollerActor {
	sources := map[int]registers.RegisterSource{}
	if config.Tile != nil {
		sources = config.Tile.ModbusSources()
	}
	return &PollerActor{
		interval:    time.Duration(config.Modbus.PollIntervalMillis) * time.Millisecond,
		timeout:     time.Duration(config.Modbus.TimeoutMillis)*time.Millisecond + time.Second,
		sources:     sources,
		generation:  domain.INITIAL_TILE_GENERATION,
		last:        map[int]*string{},
		modbusActor: modbusActor,
		tileActor:   tileActor,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_POLLER, logger),
	}
}

func (state *PollerActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@default started", zap.Int("sources", len(state.sources)))
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		ctx.Send(ctx.Self(), pollTick{})
	case *actor.Stopping:
		if state.cancelTick != nil {
			state.cancelTick()
		}
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: true,
			State:   "idle",
		})
	case domain.TileSourcesChanged:
		state.sources = map[int]registers.RegisterSource{}
		if msg.Definition != nil {
			state.sources = msg.Definition.ModbusSources()
		}
		state.generation = msg.Generation
		state.last = map[int]*string{}
		state.logger.Info("poller@default sources changed", zap.Int("sources", len(state.sources)), zap.Int("generation", msg.Generation))
	case pollTick:
		state.logger.Debug("poller@default tick")
		generation := state.generation
		for index, src := range state.sources {
			actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.ReadRegisterRequest{
				Index:      index,
				Generation: generation,
				Source:     src,
			}, state.timeout), func(err error) any {
				return domain.ReadRegisterResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
					Index:              index,
					Generation:         generation,
				}
			})
		}
		state.cancelTick = state.scheduler.RequestOnce(state.interval, ctx.Self(), pollTick{})
	case domain.ReadRegisterResponse:
		if msg.Generation != state.generation {
			// read for a replaced definition
			return
		}
		var value *string
		if msg.HasResponseError() {
			// unreadable register, the series becomes unknown
			state.logger.Warn("poller@default read failed", zap.Int("index", msg.Index), zap.Error(msg.GetResponseError()))
		} else {
			v := msg.Value
			value = &v
		}
		if sameValue(state.last[msg.Index], value) {
			return
		}
		state.last[msg.Index] = value
		ctx.Send(state.tileActor, domain.UpdateSeriesValueRequest{
			Index:      msg.Index,
			Value:      value,
			Source:     SOURCE_MODBUS,
			Generation: msg.Generation,
		})
	default:
		state.logger.Debug("poller@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
