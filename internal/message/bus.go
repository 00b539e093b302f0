package message

import (
	"sync"

	"github.com/fyrsmithlabs/crewd/internal/store"
)

// Bus is an ordered, role-addressed in-process queue with an append-only
// history. The Coordinator is the only router: agents never talk to each
// other directly.
type Bus struct {
	mu      sync.Mutex
	pending []Message
	history []Message
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Publish appends a message to the queue and the history.
func (b *Bus) Publish(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, msg)
	b.history = append(b.history, msg)
}

// Next pops the oldest pending message addressed to the given role.
func (b *Bus) Next(to store.Role) (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, msg := range b.pending {
		if msg.To == to {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			return msg, true
		}
	}
	return Message{}, false
}

// Pending returns the number of undelivered messages.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// History returns a copy of every message ever published, in order.
func (b *Bus) History() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.history))
	copy(out, b.history)
	return out
}

// CountByType tallies the history by message type.
func (b *Bus) CountByType() map[Type]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[Type]int)
	for _, msg := range b.history {
		counts[msg.Type]++
	}
	return counts
}

// Clear drops pending messages but keeps the history; a shutdown report
// still needs the full exchange.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}
