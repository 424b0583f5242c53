package actor

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/berfenger/switch2mqtt/internal/config"
	"github.com/berfenger/switch2mqtt/internal/core/domain"
	"github.com/berfenger/switch2mqtt/internal/mqtt"
	"github.com/berfenger/switch2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	// MQTT_PAYLOAD_UNKNOWN resets a Home Assistant switch to the unknown state.
	MQTT_PAYLOAD_UNKNOWN = "None"
	SOURCE_MQTT          = "mqtt"
)

type MQTTActor struct {
	config      *config.Config
	behavior    actor.Behavior
	stash       *actorutil.Stash
	client      *mqtt.MQTTClient
	sources     map[string][]sourceSeries
	generation  int
	eventStream *eventstream.EventStream
	logger      *zap.Logger
}

type sourceSeries struct {
	index    int
	jsonPath string
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo  *actor.PID
	Error    error
	response func(error) any
}

type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

// SourceMessage is a message received on a series source topic.
type SourceMessage struct {
	Topic   string
	Payload []byte
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

func NewMQTTActor(config *config.Config, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:     config,
		behavior:   actor.NewBehavior(),
		stash:      &actorutil.Stash{},
		sources:    seriesSources(config.Tile),
		generation: domain.INITIAL_TILE_GENERATION,
		logger:     actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

// UseTileDefinition sets the series fed by MQTT sources before the actor starts.
func (state *MQTTActor) UseTileDefinition(def *config.TileDefinition, generation int) *MQTTActor {
	state.sources = seriesSources(def)
	state.generation = generation
	return state
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		// create MQTT client
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		// subscribe to switch commands, then to series sources
		state.client.SubscribeToCommandTopic(func(c pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseMQTTCommand(m)
			if err == nil && cmd != nil {
				ctx.Send(ctx.Self(), ParsedCommand{Command: cmd})
			}
		}, func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
				return
			}
			state.client.SubscribeMultiple(state.sourceTopics(), 0, sourceHandler(ctx), func(err error) {
				if err != nil {
					ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
				} else {
					ctx.Send(ctx.Self(), MQTTSubscribed{})
				}
			}, 1*time.Second)
		}, 1*time.Second)
	case MQTTSubscribed:
		// init completed, transition to default state
		state.logger.Debug("mqtt@starting subscribed", zap.Int("sources", len(state.sources)))
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case ParsedCommand:
		// route command to parent
		state.logger.Debug("mqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case SourceMessage:
		state.routeSourceMessage(ctx, msg)
	case domain.TileSourcesChanged:
		state.changeSources(ctx, msg)
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.String("topic", msg.Topic))
		state.publish(ctx, rawMessage{topic: msg.Topic, message: msg.Payload, retain: msg.Retain},
			actorutil.ForRequest(msg).ReplyTo(ctx), func(err error) any {
				return domain.PublishMessageResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
			})
	case domain.PublishSwitchUpdateRequest:
		state.logger.Debug("mqtt@default PublishSwitchUpdateRequest", zap.String("switch", msg.Event.Id))
		state.publishSwitchUpdate(ctx, msg)
	case domain.PublishActionRequest:
		state.logger.Debug("mqtt@default PublishActionRequest", zap.String("label", msg.Payload.Label))
		state.publishAction(ctx, msg)
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishHADiscovery", zap.Int("switches", len(msg.Switches)))
		err := state.PublishHomeAssistantDiscovery(msg.Switches)
		if err != nil {
			state.logger.Error("mqtt@default PublishHADiscovery error", zap.Error(err))
		}
		if msg.ReplyToRef != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{ActorResponseMixIn: domain.ErrorResponse(err)})
		}
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) PublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil && msg.response != nil {
			ctx.Send(msg.ReplyTo, msg.response(msg.Error))
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		state.logger.Error("mqtt@publishing connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)), zap.Int("stashed", state.stash.Len()+1))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) publish(ctx actor.Context, msg rawMessage, replyTo *actor.PID, response func(error) any) {
	state.logger.Sugar().Debugf("mqtt@publish: message publish %s => %s", msg.topic, msg.message)
	state.client.Publish(msg.topic, msg.message, 1, msg.retain, func(err error) {
		ctx.Send(ctx.Self(), publishResult{ReplyTo: replyTo, Error: err, response: response})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.PublishResultReceive)
}

func (state *MQTTActor) publishSwitchUpdate(ctx actor.Context, req domain.PublishSwitchUpdateRequest) {
	if attrs := state.attributesMessage(req.Event); attrs != nil {
		state.client.Publish(attrs.topic, attrs.message, 0, true, func(err error) {
			if err != nil {
				state.logger.Warn("mqtt@publish attributes failed", zap.String("topic", attrs.topic), zap.Error(err))
			}
		}, 1*time.Second)
	}
	msg := state.event2MQTTMessage(req.Event)
	if msg == nil {
		return
	}
	msg.retain = msg.retain || req.Retain
	var replyTo *actor.PID
	if req.ReplyToRef != nil {
		replyTo = (*actor.PID)(req.ReplyToRef)
	}
	state.publish(ctx, *msg, replyTo, func(err error) any {
		return domain.PublishSwitchUpdateResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
	})
}

func (state *MQTTActor) publishAction(ctx actor.Context, req domain.PublishActionRequest) {
	replyTo := actorutil.ForRequest(req).ReplyTo(ctx)
	respond := func(err error) any {
		return domain.PublishActionResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
	}
	msg, err := actionMessage(req.Payload)
	if err != nil || msg == nil {
		if replyTo != nil {
			ctx.Send(replyTo, respond(err))
		}
		return
	}
	state.publish(ctx, *msg, replyTo, respond)
}

func (state *MQTTActor) routeSourceMessage(ctx actor.Context, msg SourceMessage) {
	for _, src := range state.sources[msg.Topic] {
		value := mqtt.ExtractValue(msg.Payload, src.jsonPath)
		state.logger.Debug("mqtt@default source value", zap.String("topic", msg.Topic), zap.Int("index", src.index), zap.Stringp("value", value))
		ctx.Send(ctx.Parent(), domain.UpdateSeriesValueRequest{
			Index:      src.index,
			Value:      value,
			Source:     SOURCE_MQTT,
			Generation: state.generation,
		})
	}
}

// changeSources points the source topics at the series of a new tile definition.
// Topics no longer used are dropped. Every topic still used is subscribed again so its
// retained value is delivered for the new series.
func (state *MQTTActor) changeSources(ctx actor.Context, msg domain.TileSourcesChanged) {
	sources := seriesSources(msg.Definition)
	removed, subscribe := sourceTopicChanges(state.sources, sources)
	state.sources = sources
	state.generation = msg.Generation
	state.logger.Info("mqtt@default sources changed", zap.Strings("removed", removed), zap.Strings("subscribed", subscribe), zap.Int("generation", msg.Generation))
	if state.client == nil {
		return
	}
	state.client.Unsubscribe(removed, func(err error) {
		if err != nil {
			state.logger.Warn("mqtt@default unsubscribe failed", zap.Strings("topics", removed), zap.Error(err))
		}
	}, 1*time.Second)
	state.client.SubscribeMultiple(subscribe, 0, sourceHandler(ctx), func(err error) {
		if err != nil {
			ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
		}
	}, 1*time.Second)
}

// sourceTopicChanges returns the topics only the old sources use and every topic the
// new sources use, both sorted.
func sourceTopicChanges(prev, next map[string][]sourceSeries) (removed []string, subscribe []string) {
	for topic := range prev {
		if _, ok := next[topic]; !ok {
			removed = append(removed, topic)
		}
	}
	for topic := range next {
		subscribe = append(subscribe, topic)
	}
	slices.Sort(removed)
	slices.Sort(subscribe)
	return removed, subscribe
}

func sourceHandler(ctx actor.Context) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, m pahomqtt.Message) {
		ctx.Send(ctx.Self(), SourceMessage{Topic: m.Topic(), Payload: m.Payload()})
	}
}

func (state *MQTTActor) event2MQTTMessage(event any) *rawMessage {
	switch msg := event.(type) {
	case domain.SwitchStateUpdateEvent:
		return &rawMessage{
			topic:   state.client.SwitchStateTopic(msg.Id),
			message: switchStatePayload(msg.Value, msg.Known),
			retain:  true,
		}
	case domain.BridgeStateUpdateEvent:
		var stringMessage string
		if msg.Value {
			stringMessage = mqtt.MQTT_PAYLOAD_ONLINE
		} else {
			stringMessage = mqtt.MQTT_PAYLOAD_OFFLINE
		}
		return &rawMessage{
			topic:   state.client.BridgeStateTopic(),
			message: stringMessage,
			retain:  true,
		}
	default:
		return nil
	}
}

func (state *MQTTActor) attributesMessage(event domain.SwitchStateUpdateEvent) *rawMessage {
	if event.Attributes == nil {
		return nil
	}
	payload, err := json.Marshal(event.Attributes)
	if err != nil {
		state.logger.Warn("mqtt@publish could not encode attributes", zap.String("switch", event.Id), zap.Error(err))
		return nil
	}
	return &rawMessage{
		topic:   state.client.SwitchAttributesTopic(event.Id),
		message: string(payload),
		retain:  true,
	}
}

// actionMessage encodes an action for its action topic. Actions without a topic are
// not published.
func actionMessage(payload domain.ActionPayload) (*rawMessage, error) {
	if payload.ActionTopic == "" {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &rawMessage{
		topic:   payload.ActionTopic,
		message: string(data),
	}, nil
}

func (state *MQTTActor) PublishHomeAssistantDiscovery(switches []domain.GenericSwitch) error {
	for i := range switches {
		msg := mqtt.GenericSwitchToHADiscoveryMessage(state.client, switches[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := mqtt.HADiscoverySwitchTopic(state.client.DiscoveryTopic(), switches[i])
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	return nil
}

func (state *MQTTActor) sourceTopics() []string {
	topics := make([]string, 0, len(state.sources))
	for topic := range state.sources {
		topics = append(topics, topic)
	}
	return topics
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	if state.client != nil {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

func seriesSources(def *config.TileDefinition) map[string][]sourceSeries {
	sources := map[string][]sourceSeries{}
	if def == nil {
		return sources
	}
	for topic, indexes := range def.MQTTSourceTopics() {
		for _, i := range indexes {
			sources[topic] = append(sources[topic], sourceSeries{
				index:    i,
				jsonPath: def.Dataseries[i].Source.MQTT.JSONPath,
			})
		}
	}
	return sources
}

func switchStatePayload(value, known bool) string {
	if !known {
		return MQTT_PAYLOAD_UNKNOWN
	}
	if value {
		return mqtt.MQTT_PAYLOAD_ON
	}
	return mqtt.MQTT_PAYLOAD_OFF
}

// NewTestMQTTActor builds an MQTT actor that never connects. Every publish request it
// receives is published on the given event stream, when not nil.
func NewTestMQTTActor(config *config.Config, es *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		sources:     seriesSources(config.Tile),
		generation:  domain.INITIAL_TILE_GENERATION,
		eventStream: es,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@dummy ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case ParsedCommand:
		ctx.Send(ctx.Parent(), msg)
	case SourceMessage:
		state.routeSourceMessage(ctx, msg)
	case domain.TileSourcesChanged:
		state.sources = seriesSources(msg.Definition)
		state.generation = msg.Generation
		state.record(msg)
	case domain.PublishSwitchUpdateRequest:
		state.record(msg)
		if msg.ReplyToRef != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishSwitchUpdateResponse{})
		}
	case domain.PublishActionRequest:
		state.record(msg)
		if ctx.Sender() != nil || msg.ReplyToRef != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishActionResponse{})
		}
	case domain.PublishMessageRequest:
		state.record(msg)
		if ctx.Sender() != nil || msg.ReplyToRef != nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.PublishMessageResponse{})
		}
	case domain.PublishDiscoveryRequest:
		state.record(msg)
	}
}

func (state *MQTTActor) record(msg any) {
	if state.eventStream != nil {
		state.eventStream.Publish(msg)
	}
}
