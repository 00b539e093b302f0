package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 8)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		fields = append(fields, zap.String("session.id", sessionID))
	}

	if role := RoleFromContext(ctx); role != "" {
		fields = append(fields, zap.String("agent.role", role))
	}

	if itemID := WorkItemIDFromContext(ctx); itemID != "" {
		fields = append(fields, zap.String("work_item.id", itemID))
	}

	if iter, ok := IterationFromContext(ctx); ok {
		fields = append(fields, zap.Int("iteration", iter))
	}

	return fields
}

// Context key types
type sessionCtxKey struct{}
type roleCtxKey struct{}
type workItemCtxKey struct{}
type iterationCtxKey struct{}

const maxIDLen = 128

// idPattern allows alphanumeric, hyphen, underscore.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateID validates a session or work-item ID.
func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%s contains invalid UTF-8", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", name)
	}
	return nil
}

// SessionIDFromContext extracts session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sessionCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithSessionID adds session ID to context.
// Panics if sessionID is empty or contains invalid characters.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if err := validateID(sessionID, "sessionID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// RoleFromContext extracts the agent role from context.
func RoleFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(roleCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRole adds the agent role to context.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleCtxKey{}, role)
}

// WorkItemIDFromContext extracts the work-item ID from context.
func WorkItemIDFromContext(ctx context.Context) string {
	if w, ok := ctx.Value(workItemCtxKey{}).(string); ok {
		return w
	}
	return ""
}

// WithWorkItemID adds the work-item ID to context.
// Panics if itemID is empty or contains invalid characters.
func WithWorkItemID(ctx context.Context, itemID string) context.Context {
	if err := validateID(itemID, "workItemID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, workItemCtxKey{}, itemID)
}

// IterationFromContext extracts the coordination iteration from context.
func IterationFromContext(ctx context.Context) (int, bool) {
	if i, ok := ctx.Value(iterationCtxKey{}).(int); ok {
		return i, true
	}
	return 0, false
}

// WithIteration adds the coordination iteration to context.
func WithIteration(ctx context.Context, iteration int) context.Context {
	return context.WithValue(ctx, iterationCtxKey{}, iteration)
}

// loggerCtxKey is the context key for Logger.
type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}
