// Package roles implements the Manager and Worker agents that drive the
// generative backend on behalf of the coordinator.
package roles

import (
	"sort"
	"sync"
	"time"

	"github.com/fyrsmithlabs/crewd/internal/store"
)

// Status is the lifecycle state of one agent.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPlanning  Status = "planning"
	StatusExecuting Status = "executing"
	StatusReviewing Status = "reviewing"
	StatusError     Status = "error"
	StatusOffline   Status = "offline"
)

// DefaultErrorCooldown is how long an agent stays in error before it
// reports idle again.
const DefaultErrorCooldown = 30 * time.Second

// Counters tracks per-agent work totals.
type Counters struct {
	TasksCompleted  int `json:"tasks_completed"`
	TasksFailed     int `json:"tasks_failed"`
	ReviewsApproved int `json:"reviews_approved"`
	ReviewsRejected int `json:"reviews_rejected"`
	Errors          int `json:"errors"`
}

// State is the mutable status record of one agent. Only the owning
// agent writes it; everyone else reads snapshots.
type State struct {
	mu        sync.Mutex
	role      store.Role
	model     string
	status    Status
	current   map[string]struct{}
	counters  Counters
	erroredAt time.Time
	cooldown  time.Duration
	now       func() time.Time
}

// StateSnapshot is a read-only copy for reporting surfaces.
type StateSnapshot struct {
	Role             store.Role `json:"role"`
	Model            string     `json:"model,omitempty"`
	Status           Status     `json:"status"`
	CurrentWorkItems []string   `json:"current_work_items,omitempty"`
	Counters         Counters   `json:"counters"`
}

// NewState builds an idle agent state.
func NewState(role store.Role, model string) *State {
	return &State{
		role:     role,
		model:    model,
		status:   StatusIdle,
		current:  make(map[string]struct{}),
		cooldown: DefaultErrorCooldown,
		now:      time.Now,
	}
}

// Status reports the current status. An errored agent heals back to
// idle once the cooldown elapses, so a transient failure never parks
// the agent permanently.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusError && s.now().Sub(s.erroredAt) >= s.cooldown {
		s.status = StatusIdle
	}
	return s.status
}

// SetStatus moves the agent to a non-error status. Offline is sticky,
// a torn-down agent never comes back.
func (s *State) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusOffline {
		return
	}
	s.status = st
}

// RecordError flips the agent to error and starts the cooldown clock.
func (s *State) RecordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusOffline {
		return
	}
	s.status = StatusError
	s.erroredAt = s.now()
	s.counters.Errors++
}

// BeginWork registers an item the agent is operating on.
func (s *State) BeginWork(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[itemID] = struct{}{}
}

// EndWork drops an item and bumps the matching counter.
func (s *State) EndWork(itemID string, succeeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.current, itemID)
	if succeeded {
		s.counters.TasksCompleted++
	} else {
		s.counters.TasksFailed++
	}
}

// RecordReview bumps the review counters.
func (s *State) RecordReview(approved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if approved {
		s.counters.ReviewsApproved++
	} else {
		s.counters.ReviewsRejected++
	}
}

// Offline marks the agent torn down.
func (s *State) Offline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusOffline
}

// Snapshot returns a copy safe to hand to reporting surfaces.
func (s *State) Snapshot() StateSnapshot {
	st := s.Status()
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]string, 0, len(s.current))
	for id := range s.current {
		items = append(items, id)
	}
	sort.Strings(items)
	return StateSnapshot{
		Role:             s.role,
		Model:            s.model,
		Status:           st,
		CurrentWorkItems: items,
		Counters:         s.counters,
	}
}
