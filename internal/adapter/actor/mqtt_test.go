package actor

import (
	"testing"
	"time"

	"github.com/berfenger/switch2mqtt/internal/config"
	"github.com/berfenger/switch2mqtt/internal/core/domain"
	"github.com/berfenger/switch2mqtt/internal/util"
	"github.com/berfenger/switch2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// parentRecorder spawns the actor under test as a child and records what the child
// sends to its parent.
type parentRecorder struct {
	child    func() actor.Actor
	childPID *actor.PID
	received chan any
}

func (p *parentRecorder) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		p.childPID = ctx.Spawn(actor.PropsFromProducer(p.child))
	case SourceMessage, domain.TileSourcesChanged:
		ctx.Send(p.childPID, msg)
	case domain.UpdateSeriesValueRequest:
		p.received <- msg
	}
}

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	context := as.Root

	es := eventstream.EventStream{}
	published := make(chan any, 8)
	es.Subscribe(func(evt any) {
		published <- evt
	})

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)
	defer context.Stop(pid)

	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy)

	result, err = context.RequestFuture(pid, domain.PublishActionRequest{
		Payload: domain.ActionPayload{Args: true, Label: "Pump", ActionTopic: "garden/pump/set"},
	}, 2*time.Second).Result()
	require.NoError(t, err)
	_, ok = result.(domain.PublishActionResponse)
	assert.True(t, ok)

	select {
	case evt := <-published:
		req, ok := evt.(domain.PublishActionRequest)
		assert.True(t, ok)
		assert.Equal(t, "Pump", req.Payload.Label)
	case <-time.After(2 * time.Second):
		t.Fatal("action not recorded")
	}
}

func TestMQTTActorRoutesSourceValues(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	recorder := &parentRecorder{
		child: func() actor.Actor {
			return NewTestMQTTActor(&cfg, nil, logger)
		},
		received: make(chan any, 4),
	}
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return recorder }))
	defer as.Root.Stop(pid)

	as.Root.Send(pid, SourceMessage{Topic: "garden/pump/power", Payload: []byte(`{"apower":12.5}`)})

	select {
	case msg := <-recorder.received:
		req := msg.(domain.UpdateSeriesValueRequest)
		assert.Equal(t, 0, req.Index)
		assert.Equal(t, SOURCE_MQTT, req.Source)
		assert.Equal(t, domain.INITIAL_TILE_GENERATION, req.Generation)
		if assert.NotNil(t, req.Value) {
			assert.Equal(t, "12.5", *req.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no value routed")
	}
}

func TestMQTTActorRoutesSourceValuesAfterReload(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	recorder := &parentRecorder{
		child: func() actor.Actor {
			return NewTestMQTTActor(&cfg, nil, logger)
		},
		received: make(chan any, 4),
	}
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return recorder }))
	defer as.Root.Stop(pid)

	def := util.LoadTestTile()
	def.Dataseries = append([]config.SeriesDefinition{{Label: "Heater"}}, def.Dataseries...)
	as.Root.Send(pid, domain.TileSourcesChanged{Definition: def, Generation: 2})
	as.Root.Send(pid, SourceMessage{Topic: "garden/pump/power", Payload: []byte(`{"apower":0}`)})

	select {
	case msg := <-recorder.received:
		req := msg.(domain.UpdateSeriesValueRequest)
		assert.Equal(t, 1, req.Index, "pump moved behind the heater")
		assert.Equal(t, 2, req.Generation)
		if assert.NotNil(t, req.Value) {
			assert.Equal(t, "0", *req.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no value routed")
	}
}

func TestSourceTopicChanges(t *testing.T) {

	assert := assert.New(t)

	prev := map[string][]sourceSeries{
		"garden/pump/power": {{index: 0}},
		"garden/heater":     {{index: 1}},
	}
	next := map[string][]sourceSeries{
		"garden/pump/power": {{index: 2}},
		"garden/light":      {{index: 0}},
	}
	removed, subscribe := sourceTopicChanges(prev, next)
	assert.Equal([]string{"garden/heater"}, removed)
	assert.Equal([]string{"garden/light", "garden/pump/power"}, subscribe)

	removed, subscribe = sourceTopicChanges(next, map[string][]sourceSeries{})
	assert.Equal([]string{"garden/light", "garden/pump/power"}, removed)
	assert.Empty(subscribe)
}

func TestUseTileDefinition(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	act := NewTestMQTTActor(&cfg, nil, zap.NewNop())
	assert.Len(act.sources, 1)

	act.UseTileDefinition(nil, 3)
	assert.Empty(act.sources)
	assert.Equal(3, act.generation)
}

func TestActionMessage(t *testing.T) {

	assert := assert.New(t)

	msg, err := actionMessage(domain.ActionPayload{Label: "Pump"})
	assert.NoError(err)
	assert.Nil(msg, "no topic, nothing to publish")

	msg, err = actionMessage(domain.ActionPayload{
		Args:         false,
		ActionApp:    "irrigation",
		ActionDevice: "pump-1",
		ActionTopic:  "garden/pump/set",
		Label:        "Pump",
	})
	assert.NoError(err)
	assert.Equal("garden/pump/set", msg.topic)
	assert.JSONEq(`{"args":false,"actionApp":"irrigation","actionDevice":"pump-1","actionTopic":"garden/pump/set","label":"Pump"}`, msg.message)
	assert.False(msg.retain)
}

func TestSwitchStatePayload(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("on", switchStatePayload(true, true))
	assert.Equal("off", switchStatePayload(false, true))
	assert.Equal(MQTT_PAYLOAD_UNKNOWN, switchStatePayload(true, false))
}
