// Package monitor emits coordination events to external observers.
package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/crewd/internal/logging"
)

// EventType names one observable coordination event.
type EventType string

const (
	EventTaskAssignment  EventType = "task_assignment"
	EventProgressUpdate  EventType = "progress_update"
	EventQualityCheck    EventType = "quality_check"
	EventHandoff         EventType = "handoff"
	EventPhaseTransition EventType = "phase_transition"
	EventIteration       EventType = "iteration"
	EventAgentError      EventType = "agent_error"
	EventIdle            EventType = "idle"
	EventShutdown        EventType = "shutdown"
)

// DefaultCooldown suppresses repeats of a non-critical event type.
const DefaultCooldown = 10 * time.Second

// critical events bypass the cooldown entirely, losing one would hide
// a state change an observer cannot reconstruct.
var critical = map[EventType]bool{
	EventTaskAssignment:  true,
	EventProgressUpdate:  true,
	EventQualityCheck:    true,
	EventHandoff:         true,
	EventPhaseTransition: true,
}

// Event is one emitted coordination event.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink receives emitted events. Delivery is fire-and-forget, a slow or
// failing sink must never stall the coordination loop.
type Sink interface {
	Deliver(ctx context.Context, ev Event)
	Close() error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Deliver(context.Context, Event) {}
func (NopSink) Close() error                   { return nil }

// Emitter rate-limits events per type and fans them out to a sink.
type Emitter struct {
	mu        sync.Mutex
	sink      Sink
	log       *logging.Logger
	cooldown  time.Duration
	lastByTyp map[EventType]time.Time
	sessionID string
	now       func() time.Time

	emitted    int
	suppressed int
}

// NewEmitter builds an emitter for one session. A nil sink discards.
func NewEmitter(sink Sink, sessionID string, log *logging.Logger) *Emitter {
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Emitter{
		sink:      sink,
		log:       log.Named("monitor"),
		cooldown:  DefaultCooldown,
		lastByTyp: make(map[EventType]time.Time),
		sessionID: sessionID,
		now:       time.Now,
	}
}

// Emit sends one event unless the per-type cooldown suppresses it.
// Critical types are always delivered. Reports whether it was sent.
func (e *Emitter) Emit(ctx context.Context, typ EventType, fields map[string]any) bool {
	e.mu.Lock()
	now := e.now()
	if !critical[typ] {
		if last, ok := e.lastByTyp[typ]; ok && now.Sub(last) < e.cooldown {
			e.suppressed++
			e.mu.Unlock()
			return false
		}
	}
	e.lastByTyp[typ] = now
	e.emitted++
	e.mu.Unlock()

	ev := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		SessionID: e.sessionID,
		Fields:    fields,
		Timestamp: now.UTC(),
	}
	e.sink.Deliver(ctx, ev)
	return true
}

// Stats reports emitted and suppressed totals.
func (e *Emitter) Stats() (emitted, suppressed int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emitted, e.suppressed
}

// Close flushes the sink.
func (e *Emitter) Close() error { return e.sink.Close() }

// encode is shared by the transports.
func encode(ev Event) ([]byte, error) { return json.Marshal(ev) }
