package roles

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/backend"
	"github.com/fyrsmithlabs/crewd/internal/interpret"
	"github.com/fyrsmithlabs/crewd/internal/logging"
	"github.com/fyrsmithlabs/crewd/internal/message"
	"github.com/fyrsmithlabs/crewd/internal/quality"
	"github.com/fyrsmithlabs/crewd/internal/store"
)

// Manager plans work and reviews what the Worker produced. It never
// executes tasks itself and never mutates the work-item store, its
// verdicts travel back to the coordinator as typed results.
type Manager struct {
	baseAgent
	evaluator *quality.Evaluator
}

// NewManager builds the planning and reviewing agent.
func NewManager(invoker backend.Invoker, bus *message.Bus, evaluator *quality.Evaluator, log *logging.Logger, opts backend.Options) *Manager {
	if evaluator == nil {
		evaluator = quality.NewEvaluator(nil)
	}
	return &Manager{
		baseAgent: newBaseAgent(store.RoleManager, invoker, bus, log, opts),
		evaluator: evaluator,
	}
}

// Evaluator exposes the quality gate for threshold adjustment.
func (m *Manager) Evaluator() *quality.Evaluator { return m.evaluator }

// AnalyzeTask decomposes a request into work items. The backend answer
// is parsed leniently; when it cannot be parsed into at least two
// items, or the call itself fails, deterministic fallback items keep
// delegation possible. A backend error is still returned so the caller
// can count it against the failure budget.
func (m *Manager) AnalyzeTask(ctx context.Context, request string) (interpret.Analysis, error) {
	m.state.SetStatus(StatusPlanning)
	defer m.state.SetStatus(StatusIdle)

	res, err := m.invoke(ctx, m.analysisPrompt(request), "")
	if err != nil {
		return interpret.Analysis{
			Items:    interpret.FallbackItems(request),
			Strategy: "fallback decomposition after analysis failure",
			Fallback: true,
		}, err
	}

	analysis := interpret.ParseAnalysis(res.Text, request)
	m.log.Info(ctx, "analysis complete",
		zap.Int("work_items", len(analysis.Items)),
		zap.Bool("fallback", analysis.Fallback))
	return analysis, nil
}

// ReviewWork judges a completed item against its acceptance criteria
// and the quality standards. The verdict goes to the Worker as a
// quality_check message and back to the caller as the assessment.
func (m *Manager) ReviewWork(ctx context.Context, item store.WorkItem, workerOutput string) (quality.Assessment, error) {
	m.state.SetStatus(StatusReviewing)
	defer m.state.SetStatus(StatusIdle)

	res, err := m.invoke(ctx, m.reviewPrompt(item, workerOutput), item.ID)
	if err != nil {
		return quality.Assessment{}, err
	}

	assessment := m.evaluator.Evaluate(res.Text)
	m.state.RecordReview(assessment.Approved)

	m.publish(store.RoleWorker, message.QualityCheckPayload{
		GateID:          fmt.Sprintf("review-%s", item.ID),
		WorkItemID:      item.ID,
		Passed:          assessment.Approved,
		Score:           assessment.Score,
		Feedback:        assessment.Feedback,
		Recommendations: assessment.Recommendations,
	})
	m.log.Info(ctx, "review complete",
		zap.String("work_item_id", item.ID),
		zap.Bool("approved", assessment.Approved),
		zap.Float64("score", assessment.Score))
	return assessment, nil
}

// MonitorProgress asks the backend for an advisory read on overall
// progress. Suggestions never mutate work-item state.
func (m *Manager) MonitorProgress(ctx context.Context, summary string) ([]string, error) {
	res, err := m.invoke(ctx, m.monitorPrompt(summary), "")
	if err != nil {
		return nil, err
	}
	return interpret.ParseSuggestions(res.Text), nil
}

// ProvideCourseCorrection produces advisory suggestions for a stalled
// run and shares them with the Worker.
func (m *Manager) ProvideCourseCorrection(ctx context.Context, summary string) ([]string, error) {
	suggestions, err := m.MonitorProgress(ctx, summary)
	if err != nil {
		return nil, err
	}
	if len(suggestions) > 0 {
		m.publish(store.RoleWorker, message.CourseCorrectionPayload{Suggestions: suggestions})
	}
	return suggestions, nil
}

func (m *Manager) analysisPrompt(request string) string {
	var b strings.Builder
	b.WriteString("You are the planning manager of a two-agent engineering team.\n\n")
	promptSection(&b, "Request", request)
	promptSection(&b, "Instructions",
		"Decompose the request into at least two work items.",
		"For each item use a heading like \"## Work Item 1: <title>\" followed by",
		"Description, Acceptance Criteria (bullets), Priority (1-5), Estimated Effort (hours), Dependencies.",
		"After the items add Strategy and Risks sections.")
	return b.String()
}

func (m *Manager) reviewPrompt(item store.WorkItem, workerOutput string) string {
	var b strings.Builder
	b.WriteString("You are reviewing completed work from your implementation partner.\n\n")
	promptSection(&b, "Work Item", item.Title, item.Description)
	promptSection(&b, "Acceptance Criteria", bulletList(item.AcceptanceCriteria)...)

	thresholds := m.evaluator.Standards().Snapshot()
	var stds []string
	for _, name := range quality.AllStandards() {
		stds = append(stds, fmt.Sprintf("- %s: at least %.2f", name, thresholds[name]))
	}
	promptSection(&b, "Quality Standards", stds...)
	promptSection(&b, "Worker Output", workerOutput)
	promptSection(&b, "Instructions",
		"Judge whether the output satisfies the acceptance criteria and standards.",
		"Answer with Approved: true|false, Quality Score: <0..1>,",
		"a Feedback section and a Recommendations section, both bulleted.")
	return b.String()
}

func (m *Manager) monitorPrompt(summary string) string {
	var b strings.Builder
	b.WriteString("You are monitoring a running engineering workflow.\n\n")
	promptSection(&b, "Current State", summary)
	promptSection(&b, "Instructions",
		"Suggest course corrections as a bulleted list.",
		"Do not restate the state, only actionable suggestions.")
	return b.String()
}
