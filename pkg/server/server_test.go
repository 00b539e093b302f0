package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/crewd/internal/coordinator"
	"github.com/fyrsmithlabs/crewd/internal/message"
	"github.com/fyrsmithlabs/crewd/internal/roles"
	"github.com/fyrsmithlabs/crewd/internal/session"
	"github.com/fyrsmithlabs/crewd/internal/store"
)

type fakeObserver struct{}

func (fakeObserver) ExecutionContext() coordinator.ExecutionContext {
	return coordinator.ExecutionContext{SessionID: "sess-1", Request: "build it", StartedAt: time.Now()}
}

func (fakeObserver) WorkflowState() coordinator.WorkflowState {
	return coordinator.WorkflowState{Phase: coordinator.PhaseExecution, TotalWorkItems: 2, CompletedWorkItems: 1, OverallProgress: 0.5}
}

func (fakeObserver) CommunicationHistory() []message.Message {
	return []message.Message{
		message.New(store.RoleManager, store.RoleWorker, message.TaskAssignmentPayload{}),
	}
}

func (fakeObserver) HandoffMetrics() coordinator.HandoffMetrics {
	return coordinator.HandoffMetrics{HandoffsInitiated: 2, TasksExecuted: 2}
}

func (fakeObserver) ValidateHandoffExecution() session.HandoffReport {
	return session.HandoffReport{HandoffsOccurred: true, WorkerExecuted: true}
}

func (fakeObserver) AgentStates() []roles.StateSnapshot {
	return []roles.StateSnapshot{
		{Role: store.RoleManager, Status: roles.StatusIdle},
		{Role: store.RoleWorker, Status: roles.StatusExecuting},
	}
}

func doRequest(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	s := New("127.0.0.1:0", fakeObserver{})
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "crewd", body.Service)
}

func TestState(t *testing.T) {
	rec := doRequest(t, "/v1/state")
	require.Equal(t, http.StatusOK, rec.Code)

	var body StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, coordinator.PhaseExecution, body.Workflow.Phase)
	assert.Equal(t, 2, body.Handoffs.HandoffsInitiated)
	require.Len(t, body.Agents, 2)
	assert.Equal(t, roles.StatusExecuting, body.Agents[1].Status)
}

func TestHistory(t *testing.T) {
	rec := doRequest(t, "/v1/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []session.MessageRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, message.TypeTaskAssignment, body[0].Type)
}

func TestHandoffs(t *testing.T) {
	rec := doRequest(t, "/v1/handoffs")
	require.Equal(t, http.StatusOK, rec.Code)

	var body session.HandoffReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.HandoffsOccurred)
	assert.False(t, body.ManagerReviewed)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := doRequest(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
