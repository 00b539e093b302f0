// Package coordinator drives the Manager/Worker workflow: it owns the
// work-item store, the handoff queue, and the workflow state machine,
// and it is the only component that mutates any of them.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/gitinfo"
	"github.com/fyrsmithlabs/crewd/internal/interpret"
	"github.com/fyrsmithlabs/crewd/internal/logging"
	"github.com/fyrsmithlabs/crewd/internal/message"
	"github.com/fyrsmithlabs/crewd/internal/monitor"
	"github.com/fyrsmithlabs/crewd/internal/recovery"
	"github.com/fyrsmithlabs/crewd/internal/redact"
	"github.com/fyrsmithlabs/crewd/internal/roles"
	"github.com/fyrsmithlabs/crewd/internal/session"
	"github.com/fyrsmithlabs/crewd/internal/store"
)

// Loop bounds. MaxIterations is the default cap; HardIterationCeiling
// is the absolute limit no configuration may exceed.
const (
	DefaultMaxIterations = 10
	HardIterationCeiling = 25
	DefaultConcurrency   = 2
	DefaultIdleCap       = 5
	DefaultMaxErrors     = 3
)

// ErrAborted reports a run stopped by the consecutive-error policy.
var ErrAborted = errors.New("coordination aborted after consecutive errors")

// Config bounds one coordination run.
type Config struct {
	// MaxIterations caps the loop, clamped to HardIterationCeiling.
	MaxIterations int
	// ConcurrencyLimit caps dispatches per cycle.
	ConcurrencyLimit int
	// IdleIterationCap forces termination after this many iterations
	// without observable progress.
	IdleIterationCap int
	// MaxConsecutiveErrors aborts the run when reached.
	MaxConsecutiveErrors int
	// StopOnFirstError aborts on the first cycle error instead of
	// backing off and continuing.
	StopOnFirstError bool
	// IterationDelay is the base inter-cycle sleep, scaled by the
	// iteration number.
	IterationDelay time.Duration
	// ErrorBackoff is the base backoff after a cycle error.
	ErrorBackoff time.Duration
	// WorkDir is the project directory handed to the backend.
	WorkDir string
	// ToolHints and Constraints are passed through on every assignment.
	ToolHints   []string
	Constraints []string
}

func (c *Config) applyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxIterations > HardIterationCeiling {
		c.MaxIterations = HardIterationCeiling
	}
	if c.ConcurrencyLimit <= 0 {
		c.ConcurrencyLimit = DefaultConcurrency
	}
	if c.IdleIterationCap <= 0 {
		c.IdleIterationCap = DefaultIdleCap
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = DefaultMaxErrors
	}
	if c.IterationDelay < 0 {
		c.IterationDelay = 0
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 2 * time.Second
	}
}

// ExecutionContext identifies one run for reporting surfaces.
type ExecutionContext struct {
	SessionID string    `json:"session_id"`
	Request   string    `json:"request"`
	WorkDir   string    `json:"work_dir"`
	StartedAt time.Time `json:"started_at"`
}

// HandoffMetrics summarizes delegation activity for dashboards.
type HandoffMetrics struct {
	HandoffsInitiated int `json:"handoffs_initiated"`
	TasksExecuted     int `json:"tasks_executed"`
	TasksSucceeded    int `json:"tasks_succeeded"`
	TasksFailed       int `json:"tasks_failed"`
	ReviewsApproved   int `json:"reviews_approved"`
	ReviewsRejected   int `json:"reviews_rejected"`
	PendingHandoffs   int `json:"pending_handoffs"`
}

// Coordinator owns one run of the two-agent workflow.
type Coordinator struct {
	cfg      Config
	manager  *roles.Manager
	worker   *roles.Worker
	items    *store.Store
	bus      *message.Bus
	sessions *session.Store
	sink     monitor.Sink
	log      *logging.Logger
	scrub    *redact.Scrubber

	mu         sync.Mutex
	state      WorkflowState
	sess       *session.Session
	emitter    *monitor.Emitter
	outputs    map[string]string // last worker output per item, pending review
	attempts   map[string]int    // failed execution attempts per item
	agentErrs  []recovery.AgentError
	metrics    HandoffMetrics
	iterations int
	issues     []string
	report     *session.HandoffReport

	shutdownOnce sync.Once
	stopCh       chan struct{}
}

// New wires a coordinator over both role agents and the owned stores.
func New(manager *roles.Manager, worker *roles.Worker, items *store.Store, bus *message.Bus, sessions *session.Store, sink monitor.Sink, log *logging.Logger, cfg Config) *Coordinator {
	cfg.applyDefaults()
	if log == nil {
		log = logging.Nop()
	}
	if sink == nil {
		sink = monitor.NopSink{}
	}
	return &Coordinator{
		cfg:      cfg,
		manager:  manager,
		worker:   worker,
		items:    items,
		bus:      bus,
		sessions: sessions,
		sink:     sink,
		log:      log.Named("coordinator"),
		outputs:  make(map[string]string),
		attempts: make(map[string]int),
		stopCh:   make(chan struct{}),
	}
}

// SetScrubber enables secret redaction on worker output before it is
// reviewed or persisted. Nil leaves output untouched.
func (c *Coordinator) SetScrubber(s *redact.Scrubber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scrub = s
}

// StartCoordination runs the full workflow for one request. Shutdown
// always runs before it returns, whatever the outcome.
func (c *Coordinator) StartCoordination(ctx context.Context, request string) (err error) {
	c.mu.Lock()
	c.sess = c.sessions.Create(request, c.cfg.WorkDir)
	c.emitter = monitor.NewEmitter(c.sink, c.sess.ID, c.log)
	c.state = WorkflowState{Phase: PhaseAnalysis, StartTime: time.Now()}
	c.mu.Unlock()

	ctx = logging.WithSessionID(ctx, c.sess.ID)
	defer c.Shutdown(ctx)

	setPhaseGauge(PhaseAnalysis)
	c.log.Info(ctx, "coordination started", zap.String("request", truncate(request, 200)))

	consecErrors := 0
	idleIters := 0
	reanalyzed := false

	if aerr := c.analyze(ctx, request); aerr != nil {
		consecErrors++
	}
	c.transition(ctx, PhasePlanning)
	c.transition(ctx, PhaseExecution)

	for i := 1; i <= c.cfg.MaxIterations; i++ {
		if stopErr := c.stopped(ctx); stopErr != nil {
			return stopErr
		}
		c.mu.Lock()
		c.iterations = i
		c.mu.Unlock()
		IterationsTotal.Inc()

		before := c.refreshState()
		if c.completePredicate() {
			c.transition(ctx, PhaseCompletion)
			return nil
		}

		cycleErr := c.cycle(ctx)

		after := c.refreshState()
		if after == before {
			idleIters++
			c.emitter.Emit(ctx, monitor.EventIdle, map[string]any{"idle_iterations": idleIters})
		} else {
			idleIters = 0
		}

		if c.completePredicate() {
			c.transition(ctx, PhaseCompletion)
			return nil
		}

		if idleIters >= c.cfg.IdleIterationCap {
			if after.total == 0 && !reanalyzed {
				reanalyzed = true
				idleIters = 0
				c.log.Warn(ctx, "no work items after idle cap, re-analyzing")
				if aerr := c.analyze(ctx, request); aerr != nil {
					cycleErr = aerr
				}
			} else {
				c.note("idle cap reached, forcing completion")
				c.transition(ctx, PhaseCompletion)
				return nil
			}
		}

		if cycleErr != nil {
			consecErrors++
			CycleErrorsTotal.WithLabelValues(string(recovery.Classify(cycleErr))).Inc()
			c.log.Error(ctx, "cycle error",
				zap.Int("consecutive", consecErrors),
				zap.Error(cycleErr))
			if c.cfg.StopOnFirstError || consecErrors >= c.cfg.MaxConsecutiveErrors {
				c.note(fmt.Sprintf("aborted after %d consecutive errors: %v", consecErrors, cycleErr))
				return fmt.Errorf("%w: %v", ErrAborted, cycleErr)
			}
			if werr := recovery.Wait(ctx, c.errorBackoff(cycleErr), consecErrors); werr != nil {
				return werr
			}
		} else {
			consecErrors = 0
		}

		if derr := c.delay(ctx, i); derr != nil {
			return derr
		}
	}

	c.note("iteration cap reached")
	c.transition(ctx, PhaseCompletion)
	return nil
}

// analyze asks the Manager to decompose the request and loads the
// resulting items into the store. Fallback items still load on error.
func (c *Coordinator) analyze(ctx context.Context, request string) error {
	analysis, err := c.manager.AnalyzeTask(ctx, request)
	for _, parsed := range analysis.Items {
		item := toWorkItem(parsed)
		c.items.Put(item)
		if qerr := c.items.EnqueueHandoff(item.ID); qerr != nil {
			c.log.Warn(ctx, "enqueue failed", zap.String("work_item_id", item.ID), zap.Error(qerr))
		}
	}
	if analysis.Fallback {
		c.note("analysis fell back to deterministic work items")
	}
	c.log.Info(ctx, "work items loaded",
		zap.Int("count", len(analysis.Items)),
		zap.Bool("fallback", analysis.Fallback))
	return err
}

// cycle runs one loop body: drain a handoff, dispatch up to the
// concurrency limit, then review everything awaiting a verdict.
func (c *Coordinator) cycle(ctx context.Context) error {
	dispatched := 0
	var firstErr error

	if item, ok := c.items.TakeNextHandoff(); ok {
		if err := c.dispatch(ctx, item); err != nil && firstErr == nil {
			firstErr = err
		}
		dispatched++
	}
	for _, item := range c.items.List() {
		if dispatched >= c.cfg.ConcurrencyLimit {
			break
		}
		if item.Status != store.StatusPlanned && item.Status != store.StatusBlocked {
			continue
		}
		if err := c.dispatch(ctx, item); err != nil && firstErr == nil {
			firstErr = err
		}
		dispatched++
	}

	if err := c.reviewPending(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// dispatch hands one item to the Worker and applies the outcome to the
// store. Items stay in_progress after a successful execution; only an
// approved review completes them.
func (c *Coordinator) dispatch(ctx context.Context, item store.WorkItem) error {
	// Stale queue entries (already dispatched or finished) are skipped
	// silently so the queue can never double-execute an item.
	cur, ok := c.items.Get(item.ID)
	if !ok || (cur.Status != store.StatusPlanned && cur.Status != store.StatusBlocked) {
		return nil
	}
	item = cur

	if err := c.items.Assign(item.ID, store.RoleWorker); err != nil {
		return fmt.Errorf("assigning %s: %w", item.ID, err)
	}
	if err := c.items.MarkStatus(item.ID, store.StatusInProgress); err != nil {
		return fmt.Errorf("starting %s: %w", item.ID, err)
	}

	assignment := store.NewTaskAssignment(item,
		c.assignmentContext(),
		c.cfg.ToolHints,
		c.cfg.Constraints,
		item.AcceptanceCriteria,
	)
	c.bus.Publish(message.New(store.RoleManager, store.RoleWorker,
		message.TaskAssignmentPayload{Assignment: assignment}))

	c.mu.Lock()
	c.metrics.HandoffsInitiated++
	c.mu.Unlock()
	HandoffsTotal.Inc()
	c.emitter.Emit(ctx, monitor.EventHandoff, map[string]any{"work_item_id": item.ID})
	c.emitter.Emit(ctx, monitor.EventTaskAssignment, map[string]any{
		"work_item_id": item.ID,
		"title":        item.Title,
	})

	delivered, ok, derr := c.deliverWorkerMail(ctx)
	if derr != nil {
		c.log.Warn(ctx, "worker mail delivery error", zap.Error(derr))
	}
	if !ok {
		return fmt.Errorf("task assignment for %s was not delivered", item.ID)
	}

	start := time.Now()
	result, err := c.worker.ExecuteTask(ctx, delivered)
	BackendInvocationDuration.WithLabelValues(string(store.RoleWorker)).Observe(time.Since(start).Seconds())

	c.mu.Lock()
	c.metrics.TasksExecuted++
	c.mu.Unlock()

	if err != nil {
		return c.recover(ctx, item.ID, err)
	}

	c.mu.Lock()
	delete(c.attempts, item.ID)
	c.mu.Unlock()

	if result.Success {
		raw := result.Raw
		c.mu.Lock()
		scrub := c.scrub
		c.mu.Unlock()
		if scrub != nil {
			var n int
			if raw, n = scrub.Scrub(raw); n > 0 {
				c.log.Warn(ctx, "redacted secrets in worker output",
					zap.String("work_item_id", item.ID),
					zap.Int("count", n))
			}
		}
		c.mu.Lock()
		c.metrics.TasksSucceeded++
		c.outputs[item.ID] = raw
		c.mu.Unlock()
		c.emitter.Emit(ctx, monitor.EventProgressUpdate, map[string]any{
			"work_item_id": item.ID,
			"files":        len(result.Output.Files),
		})
		return nil
	}

	c.mu.Lock()
	c.metrics.TasksFailed++
	c.mu.Unlock()
	if merr := c.items.MarkStatus(item.ID, store.StatusFailed); merr != nil {
		return merr
	}
	c.note(fmt.Sprintf("work item %s failed (exit %d)", item.ID, result.ExitCode))
	return nil
}

// reviewPending asks the Manager to judge every execution output that
// has not been reviewed yet.
func (c *Coordinator) reviewPending(ctx context.Context) error {
	c.mu.Lock()
	pending := make(map[string]string, len(c.outputs))
	for id, out := range c.outputs {
		pending[id] = out
	}
	c.mu.Unlock()

	var firstErr error
	for id, output := range pending {
		item, ok := c.items.Get(id)
		if !ok || item.Status != store.StatusInProgress {
			c.forgetOutput(id)
			continue
		}

		start := time.Now()
		assessment, err := c.manager.ReviewWork(ctx, item, output)
		BackendInvocationDuration.WithLabelValues(string(store.RoleManager)).Observe(time.Since(start).Seconds())
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		c.forgetOutput(id)
		c.mu.Lock()
		c.state.QualityMetrics.record(assessment.Approved, assessment.Score)
		if assessment.Approved {
			c.metrics.ReviewsApproved++
		} else {
			c.metrics.ReviewsRejected++
		}
		c.mu.Unlock()
		c.emitter.Emit(ctx, monitor.EventQualityCheck, map[string]any{
			"work_item_id": id,
			"passed":       assessment.Approved,
			"score":        assessment.Score,
		})

		if assessment.Approved {
			ReviewsTotal.WithLabelValues("approved").Inc()
			if merr := c.items.MarkStatus(id, store.StatusCompleted); merr != nil && firstErr == nil {
				firstErr = merr
			}
		} else {
			ReviewsTotal.WithLabelValues("rejected").Inc()
			if merr := c.items.MarkStatus(id, store.StatusBlocked); merr != nil && firstErr == nil {
				firstErr = merr
			}
		}

		// The Manager published its verdict as a quality_check message;
		// deliver it so a rejection reaches the Worker's handler.
		if _, _, derr := c.deliverWorkerMail(ctx); derr != nil && firstErr == nil {
			firstErr = derr
		}
	}
	return firstErr
}

// deliverWorkerMail drains every pending message addressed to the
// Worker and hands each to its handler. Returns the last task
// assignment seen, if any. Mail for the Manager stays queued.
func (c *Coordinator) deliverWorkerMail(ctx context.Context) (store.TaskAssignment, bool, error) {
	var (
		assignment store.TaskAssignment
		found      bool
		firstErr   error
	)
	for {
		msg, ok := c.bus.Next(store.RoleWorker)
		if !ok {
			break
		}
		switch p := msg.Payload.(type) {
		case message.TaskAssignmentPayload:
			assignment = p.Assignment
			found = true
		case message.QualityCheckPayload:
			if err := c.worker.HandleQualityCheck(ctx, p); err != nil && firstErr == nil {
				firstErr = err
			}
		case message.CourseCorrectionPayload:
			c.log.Debug(ctx, "course correction delivered",
				zap.Int("suggestions", len(p.Suggestions)))
		case message.AgentErrorPayload:
			c.log.Warn(ctx, "agent error relayed to worker",
				zap.String("error_type", p.ErrorType),
				zap.String("work_item_id", p.WorkItemID))
		default:
			c.log.Debug(ctx, "worker message with no handler",
				zap.String("type", string(msg.Type)))
		}
	}
	return assignment, found, firstErr
}

// recover applies the recovery strategy for a failed agent operation.
// Attempts are counted per item; the per-type strategy decides how many
// retries the item gets and what happens when they run out.
func (c *Coordinator) recover(ctx context.Context, itemID string, err error) error {
	c.mu.Lock()
	c.attempts[itemID]++
	attempt := c.attempts[itemID]
	c.mu.Unlock()

	rec := recovery.NewAgentError(store.RoleWorker, itemID, err, attempt)
	c.mu.Lock()
	c.agentErrs = append(c.agentErrs, rec)
	c.mu.Unlock()

	strat := recovery.StrategyFor(rec.Type)
	switch rec.Action {
	case recovery.ActionRetry:
		if attempt >= strat.MaxRetries {
			if strat.SwapRole {
				if rerr := c.items.Reassign(itemID, store.RoleManager); rerr != nil {
					return rerr
				}
				c.note(fmt.Sprintf("work item %s handed to the manager after %d %s attempts", itemID, attempt, rec.Type))
			} else {
				if merr := c.items.MarkStatus(itemID, store.StatusFailed); merr != nil {
					return merr
				}
				c.note(fmt.Sprintf("work item %s failed after %d %s attempts", itemID, attempt, rec.Type))
			}
			return err
		}
		// Back to blocked so a later cycle re-dispatches it.
		if merr := c.items.MarkStatus(itemID, store.StatusBlocked); merr != nil {
			return merr
		}
	case recovery.ActionReassign:
		if rerr := c.items.Reassign(itemID, store.RoleManager); rerr != nil {
			return rerr
		}
		c.note(fmt.Sprintf("work item %s reassigned after %s", itemID, rec.Type))
	case recovery.ActionSkip:
		if merr := c.items.MarkStatus(itemID, store.StatusFailed); merr != nil {
			return merr
		}
	default:
		c.note(fmt.Sprintf("escalated %s error on %s: %s", rec.Type, itemID, rec.Message))
	}
	return err
}

// Shutdown ends the run: tears down both agents, persists the session,
// clears the store and queue, and records the validation report. Safe
// to call any number of times; only the first does the work.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.shutdownOnce.Do(func() {
		close(c.stopCh)

		c.manager.Teardown(ctx)
		c.worker.Teardown(ctx)

		c.refreshState()
		report := c.buildReport()

		c.mu.Lock()
		c.report = &report
		if c.state.Phase != PhaseCompletion {
			c.state.Phase = PhaseCompletion
		}
		setPhaseGauge(PhaseCompletion)
		sess := c.sess
		if sess != nil {
			sess.EndedAt = time.Now().UTC()
			sess.Iterations = c.iterations
			sess.Phase = string(c.state.Phase)
			sess.Counts = c.items.Count()
			sess.Items = c.items.List()
			sess.Messages = session.RecordMessages(c.bus.History())
			sess.Errors = append([]recovery.AgentError(nil), c.agentErrs...)
			sess.Report = &report
		}
		c.mu.Unlock()

		if sess != nil {
			if err := c.sessions.Save(sess); err != nil {
				c.log.Error(ctx, "persisting session failed", zap.Error(err))
			}
		}

		c.items.Clear()
		c.bus.Clear()

		if c.emitter != nil {
			c.emitter.Emit(ctx, monitor.EventShutdown, map[string]any{
				"handoffs_occurred":  report.HandoffsOccurred,
				"worker_executed":    report.WorkerExecuted,
				"manager_reviewed":   report.ManagerReviewed,
				"messages_exchanged": report.MessagesExchanged,
			})
			if err := c.emitter.Close(); err != nil {
				c.log.Warn(ctx, "closing event sink failed", zap.Error(err))
			}
		}
		c.log.Info(ctx, "shutdown complete",
			zap.Bool("handoffs_occurred", report.HandoffsOccurred),
			zap.Int("issues", len(report.Issues)))
	})
}

func (c *Coordinator) buildReport() session.HandoffReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := session.HandoffReport{
		HandoffsOccurred:  c.metrics.HandoffsInitiated > 0,
		WorkerExecuted:    c.metrics.TasksExecuted > 0,
		ManagerReviewed:   c.metrics.ReviewsApproved+c.metrics.ReviewsRejected > 0,
		MessagesExchanged: len(c.bus.History()) > 0,
		Issues:            append([]string(nil), c.issues...),
	}
	if !r.HandoffsOccurred {
		r.Issues = append(r.Issues, "no handoffs occurred")
	}
	if !r.WorkerExecuted {
		r.Issues = append(r.Issues, "worker never executed a task")
	}
	if !r.ManagerReviewed {
		r.Issues = append(r.Issues, "manager never reviewed completed work")
	}
	return r
}

// ExecutionContext returns the run identity.
func (c *Coordinator) ExecutionContext() ExecutionContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	ec := ExecutionContext{WorkDir: c.cfg.WorkDir}
	if c.sess != nil {
		ec.SessionID = c.sess.ID
		ec.Request = c.sess.Request
		ec.StartedAt = c.sess.StartedAt
	}
	return ec
}

// WorkflowState returns a defensive copy of the run state.
func (c *Coordinator) WorkflowState() WorkflowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.snapshot()
}

// CommunicationHistory returns the full message log.
func (c *Coordinator) CommunicationHistory() []message.Message {
	return c.bus.History()
}

// HandoffMetrics returns delegation totals.
func (c *Coordinator) HandoffMetrics() HandoffMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.metrics
	m.PendingHandoffs = c.items.PendingHandoffs()
	return m
}

// ValidateHandoffExecution returns the validation report, computing it
// on the fly if the run has not shut down yet.
func (c *Coordinator) ValidateHandoffExecution() session.HandoffReport {
	c.mu.Lock()
	done := c.report
	c.mu.Unlock()
	if done != nil {
		return *done
	}
	return c.buildReport()
}

// AgentStates reports both role statuses.
func (c *Coordinator) AgentStates() []roles.StateSnapshot {
	return []roles.StateSnapshot{
		c.manager.State().Snapshot(),
		c.worker.State().Snapshot(),
	}
}

// refreshState recomputes derived workflow state and returns the
// progress key used for idle detection.
func (c *Coordinator) refreshState() progressKey {
	counts := c.items.Count()
	items := c.items.List()
	setWorkItemGauges(counts)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.refresh(counts, items)
	return c.state.key()
}

// completePredicate is true when nothing is pending: either no items
// exist at all, or every item is completed. Stable once true unless a
// new item arrives.
func (c *Coordinator) completePredicate() bool {
	counts := c.items.Count()
	noPending := c.items.PendingHandoffs() == 0 &&
		counts.Planned == 0 && counts.Assigned == 0 && counts.InProgress == 0

	c.mu.Lock()
	completed := c.state.CompletedWorkItems
	c.mu.Unlock()

	if counts.Total == 0 {
		return noPending
	}
	return completed >= counts.Total && noPending
}

func (c *Coordinator) transition(ctx context.Context, to Phase) {
	c.mu.Lock()
	from := c.state.Phase
	if from == to {
		c.mu.Unlock()
		return
	}
	c.state.Phase = to
	c.mu.Unlock()

	setPhaseGauge(to)
	c.emitter.Emit(ctx, monitor.EventPhaseTransition, map[string]any{
		"from": string(from),
		"to":   string(to),
	})
	c.log.Info(ctx, "phase transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)))
}

// delay sleeps the iteration-scaled inter-cycle pause, cancellable by
// context or shutdown.
func (c *Coordinator) delay(ctx context.Context, iteration int) error {
	d := c.cfg.IterationDelay * time.Duration(iteration)
	if d <= 0 {
		return c.stopped(ctx)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopCh:
		return errors.New("shutdown requested")
	case <-t.C:
		return nil
	}
}

func (c *Coordinator) stopped(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopCh:
		return errors.New("shutdown requested")
	default:
		return nil
	}
}

// errorBackoff picks the wait base after a cycle error: the classified
// strategy's backoff when it has one, the configured fallback otherwise.
func (c *Coordinator) errorBackoff(err error) time.Duration {
	if d := recovery.StrategyFor(recovery.Classify(err)).Backoff; d > 0 {
		return d
	}
	return c.cfg.ErrorBackoff
}

func (c *Coordinator) assignmentContext() string {
	if c.cfg.WorkDir == "" {
		return ""
	}
	return "Working directory: " + gitinfo.Describe(c.cfg.WorkDir)
}

func (c *Coordinator) note(issue string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issues = append(c.issues, issue)
}

func (c *Coordinator) forgetOutput(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.outputs, id)
}

func toWorkItem(p interpret.ParsedItem) store.WorkItem {
	item := store.NewWorkItem(p.Title, p.Description)
	if p.Priority != 0 {
		item.Priority = p.Priority
	}
	if p.EstimatedEffort != 0 {
		item.EstimatedEffort = p.EstimatedEffort
	}
	item.AcceptanceCriteria = append([]string(nil), p.AcceptanceCriteria...)
	item.Dependencies = append([]string(nil), p.Dependencies...)
	return item
}

// truncate cuts on rune boundaries so multi-byte text is never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
