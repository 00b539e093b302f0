package roles

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/backend"
	"github.com/fyrsmithlabs/crewd/internal/logging"
	"github.com/fyrsmithlabs/crewd/internal/message"
	"github.com/fyrsmithlabs/crewd/internal/recovery"
	"github.com/fyrsmithlabs/crewd/internal/store"
)

// baseAgent carries the plumbing both roles share: the backend handle,
// the message bus, the status record, and failure bookkeeping.
type baseAgent struct {
	role    store.Role
	invoker backend.Invoker
	opts    backend.Options
	bus     *message.Bus
	state   *State
	log     *logging.Logger
}

func newBaseAgent(role store.Role, invoker backend.Invoker, bus *message.Bus, log *logging.Logger, opts backend.Options) baseAgent {
	if log == nil {
		log = logging.Nop()
	}
	return baseAgent{
		role:    role,
		invoker: invoker,
		opts:    opts,
		bus:     bus,
		state:   NewState(role, opts.Model),
		log:     log.Named(string(role)),
	}
}

// State exposes the agent's status record.
func (a *baseAgent) State() *State { return a.state }

// Teardown takes the agent offline. Idempotent.
func (a *baseAgent) Teardown(ctx context.Context) {
	a.state.Offline()
	a.log.Debug(ctx, "agent torn down")
}

// invoke runs one backend call for this agent. Failures are handled
// locally: classified, recorded on the agent state, surfaced as an
// agent_error message, and returned typed so the caller can apply a
// recovery strategy. They never panic upward.
func (a *baseAgent) invoke(ctx context.Context, prompt, workItemID string) (backend.Result, error) {
	ctx = logging.WithRole(ctx, string(a.role))
	if workItemID != "" {
		ctx = logging.WithWorkItemID(ctx, workItemID)
	}

	res, err := a.invoker.Invoke(ctx, prompt, a.opts)
	if err != nil {
		rec := recovery.NewAgentError(a.role, workItemID, err, 1)
		a.state.RecordError()
		a.publish(otherRole(a.role), message.AgentErrorPayload{
			ErrorID:    rec.ID,
			Role:       rec.Role,
			WorkItemID: rec.WorkItemID,
			ErrorType:  string(rec.Type),
			Message:    rec.Message,
			Strategy:   string(rec.Action),
		})
		a.log.Error(ctx, "backend invocation failed",
			zap.String("error_type", string(rec.Type)),
			zap.String("strategy", string(rec.Action)),
			zap.Error(err))
		return res, fmt.Errorf("%s backend call: %w", a.role, err)
	}

	a.log.Trace(ctx, "backend invocation succeeded",
		zap.Int("exit_code", res.ExitCode),
		zap.Int("output_bytes", len(res.Text)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (a *baseAgent) publish(to store.Role, payload message.Payload) {
	a.bus.Publish(message.New(a.role, to, payload))
}

func otherRole(r store.Role) store.Role {
	if r == store.RoleManager {
		return store.RoleWorker
	}
	return store.RoleManager
}

// promptSection renders one labeled block of a prompt, skipping empty
// content so prompts stay compact.
func promptSection(b *strings.Builder, label string, lines ...string) {
	kept := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return
	}
	b.WriteString(label)
	b.WriteString(":\n")
	for _, l := range kept {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func bulletList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, "- "+it)
	}
	return out
}
