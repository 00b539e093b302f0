// Package message defines the inter-role message protocol and the in-process
// bus that carries it. Payloads form a tagged union keyed by message type:
// one concrete shape per type, so dispatch on a received message is a type
// switch the compiler can check.
package message

import (
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/crewd/internal/store"
)

// Type identifies the payload shape of a message.
type Type string

const (
	TypeTaskAssignment   Type = "task_assignment"
	TypeTaskCompleted    Type = "task_completed"
	TypeTaskFailed       Type = "task_failed"
	TypeQualityCheck     Type = "quality_check"
	TypeProgressUpdate   Type = "progress_update"
	TypeCourseCorrection Type = "course_correction"
	TypeAgentError       Type = "agent_error"
)

// Payload is the tagged-union interface; exactly one concrete struct
// implements it per Type.
type Payload interface {
	MessageType() Type
}

// TaskAssignmentPayload hands a work item to the Worker.
type TaskAssignmentPayload struct {
	Assignment store.TaskAssignment
}

func (TaskAssignmentPayload) MessageType() Type { return TypeTaskAssignment }

// TaskCompletedPayload reports a finished execution back to the Manager.
type TaskCompletedPayload struct {
	WorkItemID string
	Summary    string
	Output     string
	Files      []string
	Tools      []string
}

func (TaskCompletedPayload) MessageType() Type { return TypeTaskCompleted }

// TaskFailedPayload reports an execution failure.
type TaskFailedPayload struct {
	WorkItemID string
	Reason     string
	ExitCode   int
}

func (TaskFailedPayload) MessageType() Type { return TypeTaskFailed }

// QualityCheckPayload carries a review verdict to the Worker.
type QualityCheckPayload struct {
	GateID          string
	WorkItemID      string
	Passed          bool
	Score           float64
	Feedback        []string
	Recommendations []string
}

func (QualityCheckPayload) MessageType() Type { return TypeQualityCheck }

// ProgressUpdatePayload carries a cached progress report.
type ProgressUpdatePayload struct {
	WorkItemID string
	Completed  []string
	NextSteps  []string
	Blockers   []string
	Confidence float64
}

func (ProgressUpdatePayload) MessageType() Type { return TypeProgressUpdate }

// CourseCorrectionPayload carries advisory suggestions from the Manager.
type CourseCorrectionPayload struct {
	Suggestions []string
}

func (CourseCorrectionPayload) MessageType() Type { return TypeCourseCorrection }

// AgentErrorPayload surfaces a classified agent failure.
type AgentErrorPayload struct {
	ErrorID    string
	Role       store.Role
	WorkItemID string
	ErrorType  string
	Message    string
	Strategy   string
}

func (AgentErrorPayload) MessageType() Type { return TypeAgentError }

// Message is one entry in the role-addressed, append-only exchange.
type Message struct {
	ID            string
	From          store.Role
	To            store.Role
	Type          Type
	Payload       Payload
	Timestamp     time.Time
	CorrelationID string
}

// New builds a message, deriving Type from the payload.
func New(from, to store.Role, payload Payload) Message {
	return Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Type:      payload.MessageType(),
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// WithCorrelation returns a copy correlated to another message.
func (m Message) WithCorrelation(id string) Message {
	m.CorrelationID = id
	return m
}
