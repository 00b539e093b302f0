package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkItem_Defaults(t *testing.T) {
	item := NewWorkItem("Implement parser", "build the parser")
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, StatusPlanned, item.Status)
	assert.Equal(t, 3, item.Priority)
	assert.Equal(t, RoleNone, item.AssignedTo)
}

func TestCanTransition_Lifecycle(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPlanned, StatusAssigned, true},
		{StatusAssigned, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusBlocked, true},
		{StatusBlocked, StatusAssigned, true},
		{StatusCompleted, StatusPlanned, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusFailed, StatusCompleted, false},
		{StatusPlanned, StatusCompleted, false},
		{StatusCompleted, StatusCompleted, true}, // no-op
	}
	for _, tt := range tests {
		err := CanTransition(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.Error(t, err, "%s -> %s", tt.from, tt.to)
		}
	}
}

func TestStore_MarkStatus_NoCompletedRegression(t *testing.T) {
	s := New()
	item := NewWorkItem("task", "desc")
	s.Put(item)

	require.NoError(t, s.Assign(item.ID, RoleWorker))
	require.NoError(t, s.MarkStatus(item.ID, StatusInProgress))
	require.NoError(t, s.MarkStatus(item.ID, StatusCompleted))

	err := s.MarkStatus(item.ID, StatusInProgress)
	require.Error(t, err)

	got, ok := s.Get(item.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestStore_Reassign_EscapesCompleted(t *testing.T) {
	s := New()
	item := NewWorkItem("task", "desc")
	s.Put(item)
	require.NoError(t, s.Assign(item.ID, RoleWorker))
	require.NoError(t, s.MarkStatus(item.ID, StatusInProgress))
	require.NoError(t, s.MarkStatus(item.ID, StatusCompleted))

	// validation_failure path: flip assignee, reset to planned.
	require.NoError(t, s.Reassign(item.ID, RoleManager))

	got, _ := s.Get(item.ID)
	assert.Equal(t, StatusPlanned, got.Status)
	assert.Equal(t, RoleManager, got.AssignedTo)
}

func TestStore_HandoffQueue_FIFO(t *testing.T) {
	s := New()
	a := NewWorkItem("a", "")
	b := NewWorkItem("b", "")
	s.Put(a)
	s.Put(b)

	require.NoError(t, s.EnqueueHandoff(a.ID))
	require.NoError(t, s.EnqueueHandoff(b.ID))
	assert.Equal(t, 2, s.PendingHandoffs())

	first, ok := s.TakeNextHandoff()
	require.True(t, ok)
	assert.Equal(t, a.ID, first.ID)

	second, ok := s.TakeNextHandoff()
	require.True(t, ok)
	assert.Equal(t, b.ID, second.ID)

	_, ok = s.TakeNextHandoff()
	assert.False(t, ok)
}

func TestStore_EnqueueHandoff_Invariants(t *testing.T) {
	s := New()
	item := NewWorkItem("a", "")
	s.Put(item)

	assert.ErrorIs(t, s.EnqueueHandoff("missing"), ErrNotFound)

	require.NoError(t, s.EnqueueHandoff(item.ID))
	assert.ErrorIs(t, s.EnqueueHandoff(item.ID), ErrAlreadyQueued)
}

func TestStore_GetReturnsSnapshot(t *testing.T) {
	s := New()
	item := NewWorkItem("a", "")
	item.AcceptanceCriteria = []string{"criterion"}
	s.Put(item)

	got, _ := s.Get(item.ID)
	got.AcceptanceCriteria[0] = "mutated"
	got.Title = "mutated"

	again, _ := s.Get(item.ID)
	assert.Equal(t, "criterion", again.AcceptanceCriteria[0])
	assert.Equal(t, "a", again.Title)
}

func TestStore_Count(t *testing.T) {
	s := New()
	a := NewWorkItem("a", "")
	b := NewWorkItem("b", "")
	s.Put(a)
	s.Put(b)
	require.NoError(t, s.Assign(a.ID, RoleWorker))
	require.NoError(t, s.MarkStatus(a.ID, StatusInProgress))
	require.NoError(t, s.MarkStatus(a.ID, StatusCompleted))

	c := s.Count()
	assert.Equal(t, 2, c.Total)
	assert.Equal(t, 1, c.Completed)
	assert.Equal(t, 1, c.Planned)
}

func TestStore_Clear(t *testing.T) {
	s := New()
	item := NewWorkItem("a", "")
	s.Put(item)
	require.NoError(t, s.EnqueueHandoff(item.ID))

	s.Clear()
	assert.Equal(t, 0, s.Count().Total)
	assert.Equal(t, 0, s.PendingHandoffs())
}

func TestTaskAssignment_RoundTripPreservesFields(t *testing.T) {
	item := NewWorkItem("Implement Core Functionality", "core work")
	item.AcceptanceCriteria = []string{"compiles", "covered by tests"}
	item.Priority = 2

	assignment := NewTaskAssignment(item, "repo context", []string{"editor"}, []string{"no deletions"}, []string{"code_review"})

	back := assignment.Item()
	assert.Equal(t, item.ID, back.ID)
	assert.Equal(t, item.AcceptanceCriteria, back.AcceptanceCriteria)
	assert.Equal(t, 2, back.Priority)
}

func TestTaskAssignment_Immutable(t *testing.T) {
	item := NewWorkItem("a", "")
	item.AcceptanceCriteria = []string{"one"}
	assignment := NewTaskAssignment(item, "ctx", []string{"tool"}, nil, nil)

	hints := assignment.ToolHints()
	hints[0] = "mutated"
	assert.Equal(t, []string{"tool"}, assignment.ToolHints())

	got := assignment.Item()
	got.AcceptanceCriteria[0] = "mutated"
	assert.Equal(t, []string{"one"}, assignment.Item().AcceptanceCriteria)
}

func TestStore_List_PriorityOrder(t *testing.T) {
	s := New()
	low := NewWorkItem("low", "")
	low.Priority = 5
	high := NewWorkItem("high", "")
	high.Priority = 1
	s.Put(low)
	s.Put(high)

	items := s.List()
	require.Len(t, items, 2)
	assert.Equal(t, "high", items[0].Title)
}
