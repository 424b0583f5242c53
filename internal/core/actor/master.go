package actor

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	adactor "github.com/berfenger/switch2mqtt/internal/adapter/actor"
	"github.com/berfenger/switch2mqtt/internal/config"
	"github.com/berfenger/switch2mqtt/internal/core/domain"
	"github.com/berfenger/switch2mqtt/internal/metrics"
	. "github.com/berfenger/switch2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type ModbusActorProvider func() *adactor.ModbusActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck  healthCheckResult
	current             atomic.Pointer[tileSnapshot]
	eventStream         *eventstream.EventStream
	metrics             *metrics.Metrics
	modbusActor         *actor.PID
	pollerActor         *actor.PID
	mqttActor           *actor.PID
	tileActor           *actor.PID
	haDiscoveryActor    *actor.PID
	modbusActorProvider ModbusActorProvider
	mqttActorProvider   MQTTActorProvider
	logger              *zap.Logger
}

// tileSnapshot is the accepted tile definition. Children restarted by their supervisor
// are built from it, outside the master's goroutine.
type tileSnapshot struct {
	definition *config.TileDefinition
	generation int
}

type healthCheckResult struct {
	expected       map[string]bool
	healthy        map[string]bool
	checksReceived int
	respondTo      *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, modbusActorProvider ModbusActorProvider, mqttActorProvider MQTTActorProvider,
	eventStream *eventstream.EventStream, m *metrics.Metrics, logger *zap.Logger) *MasterOfPuppetsActor {
	if eventStream == nil {
		eventStream = &eventstream.EventStream{}
	}
	act := &MasterOfPuppetsActor{
		config:              config,
		behavior:            actor.NewBehavior(),
		stash:               &Stash{},
		logger:              ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:         eventStream,
		metrics:             m,
		modbusActorProvider: modbusActorProvider,
		mqttActorProvider:   mqttActorProvider,
	}
	act.current.Store(&tileSnapshot{definition: config.Tile, generation: domain.INITIAL_TILE_GENERATION})
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start Tile child
		tileActorPID, err := state.startTileActor(ctx)
		if err != nil {
			panic(err)
		}
		state.tileActor = tileActorPID

		// Modbus and its poller only run when some series reads a register
		if state.needsModbus() {
			modbusActorPID, err := state.startModbusActor(ctx)
			if err != nil {
				panic(err)
			}
			state.modbusActor = modbusActorPID

			pollerActorPID, err := state.startPollerActor(ctx)
			if err != nil {
				panic(err)
			}
			state.pollerActor = pollerActorPID
		}

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			haDiscPID, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
			state.haDiscoveryActor = haDiscPID
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck = newHealthCheck(state.healthTargets())
		state.currentHealthCheck.respondTo = ctx.Sender()
		for id, pid := range state.healthTargets() {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to the tile
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err == nil && cmd != nil {
				ctx.Send(state.tileActor, cmd)
			}
		}
	case domain.SetTileDefinitionRequest:
		state.logger.Debug("master@default SetTileDefinitionRequest")
		if msg.Definition == nil || msg.Definition.Validate() != nil {
			// the tile answers with the reason
			ctx.Forward(state.tileActor)
			return
		}
		state.reloadTile(ctx, msg)
	case domain.UpdateSeriesValueRequest, domain.GetTileRequest, domain.ToggleSwitchRequest, domain.RefreshRequest:
		ctx.Forward(state.tileActor)
	case *actor.Terminated:
		// if some actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_MODBUS) {
			state.logger.Error("master@default modbus error")
			panic(errors.New("modbus terminated"))
		}
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.record(msg)
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// reloadTile hands a valid definition to the tile and moves the value sources to
// the new series positions under a new generation.
func (state *MasterOfPuppetsActor) reloadTile(ctx actor.Context, msg domain.SetTileDefinitionRequest) {
	snap := &tileSnapshot{definition: msg.Definition, generation: state.current.Load().generation + 1}
	state.current.Store(snap)
	state.logger.Info("master@default tile reload", zap.Int("series", len(snap.definition.Dataseries)), zap.Int("generation", snap.generation))

	msg.Generation = snap.generation
	ctx.RequestWithCustomSender(state.tileActor, msg, ctx.Sender())

	sourcesChanged := domain.TileSourcesChanged{Definition: snap.definition, Generation: snap.generation}
	ctx.Send(state.mqttActor, sourcesChanged)
	if state.pollerActor != nil {
		ctx.Send(state.pollerActor, sourcesChanged)
	} else if state.needsModbus() {
		modbusActorPID, err := state.startModbusActor(ctx)
		if err != nil {
			state.logger.Error("master@default could not start modbus", zap.Error(err))
		} else {
			state.modbusActor = modbusActorPID
			if state.pollerActor, err = state.startPollerActor(ctx); err != nil {
				state.logger.Error("master@default could not start poller", zap.Error(err))
			}
		}
	}

	if state.haDiscoveryActor != nil {
		ctx.Send(state.haDiscoveryActor, tileDefinitionChanged{})
	}
}

// tileConfig returns the configuration with the current tile definition.
func (state *MasterOfPuppetsActor) tileConfig() (*config.Config, int) {
	snap := state.current.Load()
	cfg := state.config
	cfg.Tile = snap.definition
	return &cfg, snap.generation
}

func (state *MasterOfPuppetsActor) needsModbus() bool {
	def := state.current.Load().definition
	return def != nil && def.HasModbusSources() && state.modbusActorProvider != nil
}

func (state *MasterOfPuppetsActor) healthTargets() map[string]*actor.PID {
	targets := map[string]*actor.PID{
		domain.ACTOR_ID_MQTT: state.mqttActor,
		domain.ACTOR_ID_TILE: state.tileActor,
	}
	if state.modbusActor != nil {
		targets[domain.ACTOR_ID_MODBUS] = state.modbusActor
	}
	return targets
}

func (state *MasterOfPuppetsActor) startModbusActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	modbusProps := actor.PropsFromProducer(func() actor.Actor {
		return state.modbusActorProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(modbusProps, domain.ACTOR_ID_MODBUS)
}

func (state *MasterOfPuppetsActor) startPollerActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		cfg, generation := state.tileConfig()
		poller := NewPollerActor(cfg, state.modbusActor, state.tileActor, state.logger)
		poller.generation = generation
		return poller
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(pollerProps, domain.ACTOR_ID_POLLER)
}

func (state *MasterOfPuppetsActor) startTileActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	tileProps := actor.PropsFromProducer(func() actor.Actor {
		cfg, generation := state.tileConfig()
		tile := NewTileActor(cfg, state.mqttActor, state.eventStream, state.metrics, state.logger)
		tile.generation = generation
		return tile
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(tileProps, domain.ACTOR_ID_TILE)
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.tileActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		snap := state.current.Load()
		return state.mqttActorProvider(state.eventStream).UseTileDefinition(snap.definition, snap.generation)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

func newHealthCheck(targets map[string]*actor.PID) healthCheckResult {
	expected := make(map[string]bool, len(targets))
	for id := range targets {
		expected[id] = true
	}
	return healthCheckResult{
		expected: expected,
		healthy:  map[string]bool{},
	}
}

func (state *healthCheckResult) record(resp domain.ActorHealthResponse) {
	if !state.expected[resp.Id] {
		return
	}
	state.checksReceived++
	state.healthy[resp.Id] = resp.Healthy
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= len(state.expected)
}

func (state *healthCheckResult) allHealthy() bool {
	for id := range state.expected {
		if !state.healthy[id] {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
