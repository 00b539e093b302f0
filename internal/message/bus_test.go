package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/crewd/internal/store"
)

func TestNew_DerivesTypeFromPayload(t *testing.T) {
	msg := New(store.RoleWorker, store.RoleManager, TaskCompletedPayload{WorkItemID: "item-1"})
	assert.Equal(t, TypeTaskCompleted, msg.Type)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestBus_OrderedDeliveryPerRole(t *testing.T) {
	bus := NewBus()
	bus.Publish(New(store.RoleManager, store.RoleWorker, TaskAssignmentPayload{}))
	bus.Publish(New(store.RoleWorker, store.RoleManager, TaskCompletedPayload{WorkItemID: "a"}))
	bus.Publish(New(store.RoleWorker, store.RoleManager, TaskCompletedPayload{WorkItemID: "b"}))

	first, ok := bus.Next(store.RoleManager)
	require.True(t, ok)
	payload, ok := first.Payload.(TaskCompletedPayload)
	require.True(t, ok)
	assert.Equal(t, "a", payload.WorkItemID)

	second, ok := bus.Next(store.RoleManager)
	require.True(t, ok)
	assert.Equal(t, "b", second.Payload.(TaskCompletedPayload).WorkItemID)

	_, ok = bus.Next(store.RoleManager)
	assert.False(t, ok)

	// Worker's message is still pending.
	assert.Equal(t, 1, bus.Pending())
}

func TestBus_HistoryIsAppendOnly(t *testing.T) {
	bus := NewBus()
	bus.Publish(New(store.RoleManager, store.RoleWorker, TaskAssignmentPayload{}))
	_, ok := bus.Next(store.RoleWorker)
	require.True(t, ok)

	// Delivery does not erase history.
	assert.Len(t, bus.History(), 1)

	bus.Clear()
	assert.Len(t, bus.History(), 1)
	assert.Equal(t, 0, bus.Pending())
}

func TestBus_CountByType(t *testing.T) {
	bus := NewBus()
	bus.Publish(New(store.RoleManager, store.RoleWorker, TaskAssignmentPayload{}))
	bus.Publish(New(store.RoleManager, store.RoleWorker, TaskAssignmentPayload{}))
	bus.Publish(New(store.RoleWorker, store.RoleManager, TaskFailedPayload{WorkItemID: "x", ExitCode: 1}))

	counts := bus.CountByType()
	assert.Equal(t, 2, counts[TypeTaskAssignment])
	assert.Equal(t, 1, counts[TypeTaskFailed])
}

func TestMessage_WithCorrelation(t *testing.T) {
	original := New(store.RoleManager, store.RoleWorker, TaskAssignmentPayload{})
	reply := New(store.RoleWorker, store.RoleManager, TaskCompletedPayload{}).WithCorrelation(original.ID)
	assert.Equal(t, original.ID, reply.CorrelationID)
}

func TestPayload_TypeSwitchCoversUnion(t *testing.T) {
	payloads := []Payload{
		TaskAssignmentPayload{},
		TaskCompletedPayload{},
		TaskFailedPayload{},
		QualityCheckPayload{},
		ProgressUpdatePayload{},
		CourseCorrectionPayload{},
		AgentErrorPayload{},
	}
	for _, p := range payloads {
		switch p.(type) {
		case TaskAssignmentPayload, TaskCompletedPayload, TaskFailedPayload,
			QualityCheckPayload, ProgressUpdatePayload, CourseCorrectionPayload,
			AgentErrorPayload:
		default:
			t.Fatalf("payload %T not covered by dispatch", p)
		}
		assert.NotEmpty(t, p.MessageType())
	}
}
