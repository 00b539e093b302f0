package coordinator

import (
	"time"

	"github.com/fyrsmithlabs/crewd/internal/store"
)

// Phase is the coordination workflow phase.
type Phase string

const (
	PhaseAnalysis   Phase = "analysis"
	PhasePlanning   Phase = "planning"
	PhaseExecution  Phase = "execution"
	PhaseCompletion Phase = "completion"

	// Reserved phases, not entered by the current loop.
	PhaseIntegration Phase = "integration"
	PhaseValidation  Phase = "validation"
)

// QualityMetrics aggregates review outcomes across a run.
type QualityMetrics struct {
	ReviewsTotal    int     `json:"reviews_total"`
	ReviewsApproved int     `json:"reviews_approved"`
	ReviewsRejected int     `json:"reviews_rejected"`
	AverageScore    float64 `json:"average_score"`
	scoreSum        float64
}

func (q *QualityMetrics) record(approved bool, score float64) {
	q.ReviewsTotal++
	if approved {
		q.ReviewsApproved++
	} else {
		q.ReviewsRejected++
	}
	q.scoreSum += score
	q.AverageScore = q.scoreSum / float64(q.ReviewsTotal)
}

// WorkflowState is the coordinator-owned run state. Only the
// coordinator mutates it; everyone else sees snapshots.
type WorkflowState struct {
	Phase              Phase          `json:"phase"`
	StartTime          time.Time      `json:"start_time"`
	TotalWorkItems     int            `json:"total_work_items"`
	CompletedWorkItems int            `json:"completed_work_items"`
	ActiveWorkItems    []string       `json:"active_work_items,omitempty"`
	BlockedWorkItems   []string       `json:"blocked_work_items,omitempty"`
	OverallProgress    float64        `json:"overall_progress"`
	QualityMetrics     QualityMetrics `json:"quality_metrics"`
}

// snapshot returns a defensive copy.
func (w WorkflowState) snapshot() WorkflowState {
	w.ActiveWorkItems = append([]string(nil), w.ActiveWorkItems...)
	w.BlockedWorkItems = append([]string(nil), w.BlockedWorkItems...)
	return w
}

// refresh recomputes the derived fields from store counts. Completed
// totals never go backwards within a run even if an item is reopened
// through reassignment.
func (w *WorkflowState) refresh(counts store.Counts, items []store.WorkItem) {
	w.TotalWorkItems = counts.Total
	if counts.Completed > w.CompletedWorkItems {
		w.CompletedWorkItems = counts.Completed
	}
	w.ActiveWorkItems = w.ActiveWorkItems[:0]
	w.BlockedWorkItems = w.BlockedWorkItems[:0]
	for _, it := range items {
		switch it.Status {
		case store.StatusAssigned, store.StatusInProgress:
			w.ActiveWorkItems = append(w.ActiveWorkItems, it.ID)
		case store.StatusBlocked:
			w.BlockedWorkItems = append(w.BlockedWorkItems, it.ID)
		}
	}
	if w.TotalWorkItems > 0 {
		w.OverallProgress = float64(w.CompletedWorkItems) / float64(w.TotalWorkItems)
	} else {
		w.OverallProgress = 0
	}
}

// progressKey captures the fields whose stability defines an idle
// iteration.
type progressKey struct {
	completed int
	total     int
	active    int
	phase     Phase
	progress  float64
}

func (w *WorkflowState) key() progressKey {
	return progressKey{
		completed: w.CompletedWorkItems,
		total:     w.TotalWorkItems,
		active:    len(w.ActiveWorkItems),
		phase:     w.Phase,
		progress:  w.OverallProgress,
	}
}
