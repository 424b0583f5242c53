package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/switch2mqtt/internal/core/domain"
	"github.com/berfenger/switch2mqtt/internal/util/actorutil"
	"github.com/berfenger/switch2mqtt/pkg/registers"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)


type ModbusActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	reader   registers.RegisterReader
	timeout  time.Duration
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewModbusActor(reader registers.RegisterReader, timeout time.Duration, logger *zap.Logger) *ModbusActor {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	act := &ModbusActor{
		reader:   reader,
		timeout:  timeout,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MODBUS, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ModbusActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ModbusActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("modbus@starting started")
		if err := state.reader.Open(); err != nil {
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("modbus@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("modbus@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MODBUS,
			Healthy: true,
			State:   "idle",
		})
	case domain.ReadRegisterRequest:
		state.logger.Debug("modbus@default: ReadRegisterRequest", zap.Int("index", msg.Index), zap.Uint16("address", msg.Source.Address))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		index := msg.Index
		generation := msg.Generation
		src := msg.Source

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.ReadRegisterResponse, error) {
			value, err := state.reader.Read(src)
			if err != nil {
				return nil, err
			}
			return &domain.ReadRegisterResponse{Index: index, Generation: generation, Value: value}, nil
		}), mapTaskResult[domain.ReadRegisterResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ReadRegisterResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
					Index:              index,
					Generation:         generation,
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case *actor.Stopping:
		state.close()
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("modbus@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ModbusActor) WaitingModbus(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("modbus@WaitingModbus backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("modbus@WaitingModbus stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) close() {
	if state.reader == nil {
		return
	}
	if err := state.reader.Close(); err != nil {
		state.logger.Warn("modbus: close failed", zap.Error(err))
	}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
