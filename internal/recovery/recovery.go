// Package recovery classifies agent failures and picks a recovery strategy.
package recovery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/crewd/internal/store"
)

// ErrorType classifies an agent failure for strategy selection.
type ErrorType string

const (
	ErrorTimeout       ErrorType = "timeout"
	ErrorToolFailure   ErrorType = "tool_failure"
	ErrorCommunication ErrorType = "communication_error"
	ErrorValidation    ErrorType = "validation_failure"
	ErrorUnknown       ErrorType = "unknown"
)

// Action is what the coordinator should do about a failure.
type Action string

const (
	ActionRetry    Action = "retry"
	ActionReassign Action = "reassign"
	ActionSkip     Action = "skip"
	ActionEscalate Action = "escalate"
)

// Strategy describes how to recover from one class of failure.
type Strategy struct {
	Action     Action
	MaxRetries int
	Backoff    time.Duration
	// SwapRole reassigns the work to the other agent when retries are
	// exhausted instead of escalating.
	SwapRole bool
}

// strategies maps each error class to its recovery plan. Timeouts get
// the most patience because backend invocations are slow by nature;
// validation failures go straight to reassignment since retrying the
// same agent reproduces the same output.
var strategies = map[ErrorType]Strategy{
	ErrorTimeout:       {Action: ActionRetry, MaxRetries: 3, Backoff: 5 * time.Second, SwapRole: true},
	ErrorToolFailure:   {Action: ActionRetry, MaxRetries: 2, Backoff: 2 * time.Second},
	ErrorCommunication: {Action: ActionRetry, MaxRetries: 3, Backoff: 1 * time.Second},
	ErrorValidation:    {Action: ActionReassign, MaxRetries: 1},
	ErrorUnknown:       {Action: ActionEscalate},
}

// StrategyFor returns the recovery plan for an error class.
func StrategyFor(t ErrorType) Strategy {
	if s, ok := strategies[t]; ok {
		return s
	}
	return strategies[ErrorUnknown]
}

// Classify maps an error to its recovery class by message inspection.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline exceeded"):
		return ErrorTimeout
	case strings.Contains(msg, "tool") || strings.Contains(msg, "exec") ||
		strings.Contains(msg, "command"):
		return ErrorToolFailure
	case strings.Contains(msg, "connection") || strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof") || strings.Contains(msg, "unreachable"):
		return ErrorCommunication
	case strings.Contains(msg, "validation") || strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "malformed") || strings.Contains(msg, "parse"):
		return ErrorValidation
	default:
		return ErrorUnknown
	}
}

// AgentError records one failure for the session history.
type AgentError struct {
	ID         string     `json:"id"`
	Role       store.Role `json:"role"`
	WorkItemID string     `json:"work_item_id,omitempty"`
	Type       ErrorType  `json:"type"`
	Message    string     `json:"message"`
	Action     Action     `json:"action"`
	Attempt    int        `json:"attempt"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewAgentError records a failure together with the chosen strategy.
func NewAgentError(role store.Role, workItemID string, err error, attempt int) AgentError {
	t := Classify(err)
	return AgentError{
		ID:         uuid.NewString(),
		Role:       role,
		WorkItemID: workItemID,
		Type:       t,
		Message:    err.Error(),
		Action:     StrategyFor(t).Action,
		Attempt:    attempt,
		OccurredAt: time.Now().UTC(),
	}
}

// BackoffFor grows the base delay linearly with the attempt number,
// so repeated failures slow the loop down instead of hammering the
// backend. Attempt numbering starts at 1.
func BackoffFor(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(attempt)
}

// Wait sleeps for the computed backoff or until the context ends.
func Wait(ctx context.Context, base time.Duration, attempt int) error {
	d := BackoffFor(base, attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
