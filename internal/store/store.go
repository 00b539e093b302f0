package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound indicates the work item does not exist in the store.
	ErrNotFound = errors.New("work item not found")

	// ErrAlreadyQueued indicates the item already has an outstanding handoff.
	ErrAlreadyQueued = errors.New("work item already queued for handoff")
)

// Store holds the work items and the handoff queue under one lock.
// The Coordinator is the sole owner; agents only ever receive snapshots.
type Store struct {
	mu       sync.Mutex
	items    map[string]WorkItem
	handoffs []string // FIFO of item IDs awaiting handoff
}

// New creates an empty store.
func New() *Store {
	return &Store{
		items: make(map[string]WorkItem),
	}
}

// Put inserts or replaces a work item.
func (s *Store) Put(item WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.UpdatedAt = time.Now()
	s.items[item.ID] = item.Clone()
}

// Get returns a snapshot of the item, if present.
func (s *Store) Get(id string) (WorkItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return WorkItem{}, false
	}
	return item.Clone(), true
}

// List returns snapshots of all items ordered by priority then creation time.
func (s *Store) List() []WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WorkItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ByStatus returns snapshots of items in the given status.
func (s *Store) ByStatus(status Status) []WorkItem {
	var out []WorkItem
	for _, item := range s.List() {
		if item.Status == status {
			out = append(out, item)
		}
	}
	return out
}

// MarkStatus transitions an item, enforcing the status machine. A completed
// item never regresses through this path; use Reassign for the explicit
// validation-failure escape hatch.
func (s *Store) MarkStatus(id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := CanTransition(item.Status, status); err != nil {
		return err
	}
	item.Status = status
	item.UpdatedAt = time.Now()
	s.items[id] = item
	return nil
}

// Assign sets the assignee and moves the item to assigned.
func (s *Store) Assign(id string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := CanTransition(item.Status, StatusAssigned); err != nil {
		return err
	}
	item.AssignedTo = role
	item.Status = StatusAssigned
	item.UpdatedAt = time.Now()
	s.items[id] = item
	return nil
}

// Reassign flips the assignee and resets the item to planned. This is the
// only operation allowed to move an item out of completed; it backs the
// validation_failure recovery strategy.
func (s *Store) Reassign(id string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	item.AssignedTo = role
	item.Status = StatusPlanned
	item.UpdatedAt = time.Now()
	s.items[id] = item
	return nil
}

// EnqueueHandoff queues an item for Worker handoff. The item must exist and
// must not already be queued.
func (s *Store) EnqueueHandoff(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for _, queued := range s.handoffs {
		if queued == id {
			return fmt.Errorf("%w: %s", ErrAlreadyQueued, id)
		}
	}
	s.handoffs = append(s.handoffs, id)
	return nil
}

// TakeNextHandoff pops the oldest queued handoff and returns a snapshot of
// its item. Queue entries whose item vanished are dropped silently so the
// queue and the item set cannot disagree.
func (s *Store) TakeNextHandoff() (WorkItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.handoffs) > 0 {
		id := s.handoffs[0]
		s.handoffs = s.handoffs[1:]
		if item, ok := s.items[id]; ok {
			return item.Clone(), true
		}
	}
	return WorkItem{}, false
}

// PendingHandoffs returns the number of queued handoffs.
func (s *Store) PendingHandoffs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handoffs)
}

// Counts summarizes the store by status.
type Counts struct {
	Total      int
	Completed  int
	Failed     int
	Blocked    int
	InProgress int
	Planned    int
	Assigned   int
}

// Count returns aggregate counts by status.
func (s *Store) Count() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c Counts
	c.Total = len(s.items)
	for _, item := range s.items {
		switch item.Status {
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		case StatusBlocked:
			c.Blocked++
		case StatusInProgress:
			c.InProgress++
		case StatusPlanned:
			c.Planned++
		case StatusAssigned:
			c.Assigned++
		}
	}
	return c
}

// Clear removes all items and queued handoffs. Used by shutdown.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]WorkItem)
	s.handoffs = nil
}
