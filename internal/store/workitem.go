// Package store owns the work-item records and the handoff queue.
//
// All mutation goes through the Store's transactional operations so the
// engine's invariants are enforced at one boundary: an item has at most one
// outstanding handoff, the queue and the item set always agree on membership,
// and a completed item never regresses except through an explicit
// reassignment. Callers outside this package only ever see snapshots.
package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the finite lifecycle state of a work item.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
	StatusFailed     Status = "failed"
)

// Role identifies which agent a work item is assigned to.
type Role string

const (
	RoleManager Role = "manager"
	RoleWorker  Role = "worker"
	RoleNone    Role = ""
)

// WorkItem is a discrete, independently assignable unit of task decomposition.
type WorkItem struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	AcceptanceCriteria []string  `json:"acceptance_criteria"`
	Priority           int       `json:"priority"`         // 1 (highest) to 5
	EstimatedEffort    float64   `json:"estimated_effort"` // hours
	Dependencies       []string  `json:"dependencies"`
	AssignedTo         Role      `json:"assigned_to"`
	Status             Status    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewWorkItem creates a planned work item with a fresh ID.
func NewWorkItem(title, description string) WorkItem {
	now := time.Now()
	return WorkItem{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Priority:    3,
		Status:      StatusPlanned,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy so callers cannot alias the store's state.
func (w WorkItem) Clone() WorkItem {
	c := w
	if w.AcceptanceCriteria != nil {
		c.AcceptanceCriteria = make([]string, len(w.AcceptanceCriteria))
		copy(c.AcceptanceCriteria, w.AcceptanceCriteria)
	}
	if w.Dependencies != nil {
		c.Dependencies = make([]string, len(w.Dependencies))
		copy(c.Dependencies, w.Dependencies)
	}
	return c
}

// Terminal reports whether the status is an end state of the lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// validTransitions describes the forward status machine. The completed state
// has no outgoing edges here; only Reassign may leave it.
var validTransitions = map[Status][]Status{
	StatusPlanned:    {StatusAssigned, StatusBlocked},
	StatusAssigned:   {StatusInProgress, StatusBlocked, StatusFailed, StatusPlanned},
	StatusInProgress: {StatusCompleted, StatusBlocked, StatusFailed},
	StatusBlocked:    {StatusAssigned, StatusPlanned, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransition checks whether moving from -> to follows the status machine.
func CanTransition(from, to Status) error {
	if from == to {
		return nil
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("invalid work item transition: %s -> %s", from, to)
}
