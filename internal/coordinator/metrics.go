package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/crewd/internal/store"
)

var (
	// IterationsTotal counts coordination loop iterations.
	IterationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "crewd",
			Subsystem: "coordinator",
			Name:      "iterations_total",
			Help:      "Total number of coordination loop iterations",
		},
	)

	// WorkItemsTotal tracks work items by status.
	// Labels: status (planned, assigned, in_progress, completed, blocked, failed)
	WorkItemsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "crewd",
			Subsystem: "coordinator",
			Name:      "work_items_total",
			Help:      "Number of work items by status",
		},
		[]string{"status"},
	)

	// HandoffsTotal counts manager-to-worker handoffs.
	HandoffsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "crewd",
			Subsystem: "coordinator",
			Name:      "handoffs_total",
			Help:      "Total number of work-item handoffs to the worker",
		},
	)

	// ReviewsTotal counts quality-gate reviews.
	// Labels: verdict (approved, rejected)
	ReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crewd",
			Subsystem: "coordinator",
			Name:      "reviews_total",
			Help:      "Total number of quality-gate reviews by verdict",
		},
		[]string{"verdict"},
	)

	// BackendInvocationDuration tracks backend call latency per role.
	// Labels: role (manager, worker)
	BackendInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crewd",
			Subsystem: "coordinator",
			Name:      "backend_invocation_duration_seconds",
			Help:      "Duration of backend invocations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"role"},
	)

	// CycleErrorsTotal counts loop-level errors by classification.
	CycleErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crewd",
			Subsystem: "coordinator",
			Name:      "cycle_errors_total",
			Help:      "Total number of coordination cycle errors by type",
		},
		[]string{"type"},
	)

	// PhaseGauge reports the current workflow phase (1 for the active
	// phase, 0 otherwise).
	PhaseGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "crewd",
			Subsystem: "coordinator",
			Name:      "phase",
			Help:      "Current workflow phase (1=active)",
		},
		[]string{"phase"},
	)
)

func setPhaseGauge(p Phase) {
	for _, ph := range []Phase{PhaseAnalysis, PhasePlanning, PhaseExecution, PhaseCompletion} {
		v := 0.0
		if ph == p {
			v = 1.0
		}
		PhaseGauge.WithLabelValues(string(ph)).Set(v)
	}
}

func setWorkItemGauges(c store.Counts) {
	WorkItemsTotal.WithLabelValues(string(store.StatusPlanned)).Set(float64(c.Planned))
	WorkItemsTotal.WithLabelValues(string(store.StatusAssigned)).Set(float64(c.Assigned))
	WorkItemsTotal.WithLabelValues(string(store.StatusInProgress)).Set(float64(c.InProgress))
	WorkItemsTotal.WithLabelValues(string(store.StatusCompleted)).Set(float64(c.Completed))
	WorkItemsTotal.WithLabelValues(string(store.StatusBlocked)).Set(float64(c.Blocked))
	WorkItemsTotal.WithLabelValues(string(store.StatusFailed)).Set(float64(c.Failed))
}
