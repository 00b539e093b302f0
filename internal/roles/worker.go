package roles

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/backend"
	"github.com/fyrsmithlabs/crewd/internal/interpret"
	"github.com/fyrsmithlabs/crewd/internal/logging"
	"github.com/fyrsmithlabs/crewd/internal/message"
	"github.com/fyrsmithlabs/crewd/internal/store"
)

// ExecutionResult is the Worker's typed report on one assignment.
type ExecutionResult struct {
	WorkItemID string
	Success    bool
	ExitCode   int
	Output     interpret.Output
	Raw        string
}

// Worker executes assignments against the backend and reports typed
// results. It keeps a per-item progress cache the coordinator can poll
// without spending a backend call.
type Worker struct {
	baseAgent

	mu       sync.Mutex
	progress map[string]interpret.Progress
}

// NewWorker builds the executing agent.
func NewWorker(invoker backend.Invoker, bus *message.Bus, log *logging.Logger, opts backend.Options) *Worker {
	return &Worker{
		baseAgent: newBaseAgent(store.RoleWorker, invoker, bus, log, opts),
		progress:  make(map[string]interpret.Progress),
	}
}

// ExecuteTask runs one assignment. Success means the backend exited
// zero and the text does not signal failure; merely discussing error
// handling is not a failure. The outcome is reported on the bus and
// returned typed, the store transition itself is the coordinator's job.
func (w *Worker) ExecuteTask(ctx context.Context, assignment store.TaskAssignment) (ExecutionResult, error) {
	item := assignment.Item()
	w.state.SetStatus(StatusExecuting)
	w.state.BeginWork(item.ID)
	defer w.state.SetStatus(StatusIdle)

	res, err := w.invoke(ctx, w.executionPrompt(assignment), item.ID)
	if err != nil {
		w.state.EndWork(item.ID, false)
		return ExecutionResult{WorkItemID: item.ID}, err
	}

	out := interpret.Parse(res.Text)
	result := ExecutionResult{
		WorkItemID: item.ID,
		Success:    res.ExitCode == 0 && !interpret.IndicatesFailure(res.Text),
		ExitCode:   res.ExitCode,
		Output:     out,
		Raw:        res.Text,
	}
	w.state.EndWork(item.ID, result.Success)
	w.cacheProgress(item.ID, interpret.ParseProgress(res.Text))

	if result.Success {
		w.publish(store.RoleManager, message.TaskCompletedPayload{
			WorkItemID: item.ID,
			Summary:    summarize(out.Result),
			Output:     out.Result,
			Files:      out.Files,
			Tools:      out.Tools,
		})
	} else {
		reason := out.Err
		if reason == "" {
			reason = summarize(out.Result)
		}
		w.publish(store.RoleManager, message.TaskFailedPayload{
			WorkItemID: item.ID,
			Reason:     reason,
			ExitCode:   res.ExitCode,
		})
	}
	w.log.Info(ctx, "execution finished",
		zap.String("work_item_id", item.ID),
		zap.Bool("success", result.Success),
		zap.Int("exit_code", res.ExitCode))
	return result, nil
}

// GetProgress returns the cached progress report for an item. Items
// never executed report an empty update with neutral confidence.
func (w *Worker) GetProgress(workItemID string) interpret.Progress {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.progress[workItemID]; ok {
		return p
	}
	return interpret.Progress{Confidence: 0.5}
}

// HandleQualityCheck reacts to a review verdict. A rejection lowers
// confidence and records the feedback as blockers; when the review
// carries recommendations the Worker spends one extra backend call
// attempting fixes and partially restores confidence. The fix attempt
// is not independently verified.
func (w *Worker) HandleQualityCheck(ctx context.Context, check message.QualityCheckPayload) error {
	if check.Passed {
		return nil
	}
	ctx = logging.WithWorkItemID(ctx, check.WorkItemID)

	w.mu.Lock()
	p := w.progress[check.WorkItemID]
	p.Confidence = clampUnit(p.Confidence - 0.2)
	p.Blockers = append(p.Blockers, check.Feedback...)
	w.progress[check.WorkItemID] = p
	w.mu.Unlock()

	if len(check.Recommendations) == 0 {
		return nil
	}

	w.state.SetStatus(StatusExecuting)
	defer w.state.SetStatus(StatusIdle)

	res, err := w.invoke(ctx, w.fixPrompt(check), check.WorkItemID)
	if err != nil {
		return err
	}

	w.mu.Lock()
	p = w.progress[check.WorkItemID]
	p.Completed = append(p.Completed, "applied review recommendations")
	p.Confidence = clampUnit(p.Confidence + 0.1)
	w.progress[check.WorkItemID] = p
	w.mu.Unlock()

	w.publish(store.RoleManager, message.ProgressUpdatePayload{
		WorkItemID: check.WorkItemID,
		Completed:  p.Completed,
		Blockers:   p.Blockers,
		Confidence: p.Confidence,
	})
	w.log.Info(ctx, "fix attempt finished",
		zap.String("work_item_id", check.WorkItemID),
		zap.Int("exit_code", res.ExitCode))
	return nil
}

func (w *Worker) cacheProgress(itemID string, p interpret.Progress) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.progress[itemID] = p
}

func (w *Worker) executionPrompt(assignment store.TaskAssignment) string {
	item := assignment.Item()
	var b strings.Builder
	b.WriteString("You are the implementation half of a two-agent engineering team.\n\n")
	promptSection(&b, "Task", item.Title, item.Description)
	promptSection(&b, "Acceptance Criteria", bulletList(item.AcceptanceCriteria)...)
	promptSection(&b, "Context", assignment.Context())
	promptSection(&b, "Tool Hints", bulletList(assignment.ToolHints())...)
	promptSection(&b, "Constraints", bulletList(assignment.Constraints())...)
	promptSection(&b, "Quality Gates", bulletList(assignment.QualityGates())...)
	promptSection(&b, "Instructions",
		"Implement the task now.",
		"Report what you completed, remaining next steps, any blockers,",
		"and a confidence value between 0 and 1.")
	return b.String()
}

func (w *Worker) fixPrompt(check message.QualityCheckPayload) string {
	var b strings.Builder
	b.WriteString("Your previous work was rejected in review.\n\n")
	promptSection(&b, "Feedback", bulletList(check.Feedback)...)
	promptSection(&b, "Recommendations", bulletList(check.Recommendations)...)
	promptSection(&b, "Instructions",
		"Apply the recommendations to the existing work.",
		"Report what changed and any remaining blockers.")
	return b.String()
}

func summarize(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if r := []rune(text); len(r) > 160 {
		text = string(r[:157]) + "..."
	}
	return text
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
