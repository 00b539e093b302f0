package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Deliver(_ context.Context, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) Close() error { return nil }

func (c *captureSink) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func newTestEmitter(sink Sink) (*Emitter, *time.Time) {
	e := NewEmitter(sink, "sess-1", nil)
	clock := time.Now()
	e.now = func() time.Time { return clock }
	return e, &clock
}

func TestEmitCooldownSuppressesNonCritical(t *testing.T) {
	sink := &captureSink{}
	e, clock := newTestEmitter(sink)
	ctx := context.Background()

	assert.True(t, e.Emit(ctx, EventIteration, nil))
	assert.False(t, e.Emit(ctx, EventIteration, nil))

	*clock = clock.Add(DefaultCooldown)
	assert.True(t, e.Emit(ctx, EventIteration, nil))

	emitted, suppressed := e.Stats()
	assert.Equal(t, 2, emitted)
	assert.Equal(t, 1, suppressed)
	assert.Len(t, sink.all(), 2)
}

func TestEmitCriticalBypassesCooldown(t *testing.T) {
	sink := &captureSink{}
	e, _ := newTestEmitter(sink)
	ctx := context.Background()

	for range 5 {
		assert.True(t, e.Emit(ctx, EventHandoff, nil))
	}
	assert.Len(t, sink.all(), 5)
}

func TestEmitCooldownIsPerType(t *testing.T) {
	sink := &captureSink{}
	e, _ := newTestEmitter(sink)
	ctx := context.Background()

	assert.True(t, e.Emit(ctx, EventIteration, nil))
	assert.True(t, e.Emit(ctx, EventIdle, nil))
	assert.False(t, e.Emit(ctx, EventIteration, nil))
	assert.False(t, e.Emit(ctx, EventIdle, nil))
}

func TestEmitCarriesSessionAndFields(t *testing.T) {
	sink := &captureSink{}
	e, _ := newTestEmitter(sink)

	e.Emit(context.Background(), EventPhaseTransition, map[string]any{"from": "analysis", "to": "planning"})

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "sess-1", events[0].SessionID)
	assert.Equal(t, "planning", events[0].Fields["to"])
	assert.NotEmpty(t, events[0].ID)
}

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}
	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func TestNATSSinkPublishes(t *testing.T) {
	server := startTestNATSServer(t)

	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	received := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("crewd.events.>", received)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	sink, err := ConnectNATS(server.ClientURL(), nil)
	require.NoError(t, err)
	defer sink.Close()

	e := NewEmitter(sink, "sess-nats", nil)
	require.True(t, e.Emit(context.Background(), EventHandoff, map[string]any{"work_item_id": "w1"}))
	require.NoError(t, sink.conn.Flush())

	select {
	case msg := <-received:
		assert.Equal(t, "crewd.events.handoff", msg.Subject)
		var ev Event
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.Equal(t, EventHandoff, ev.Type)
		assert.Equal(t, "sess-nats", ev.SessionID)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}
