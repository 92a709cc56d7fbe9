// Package metrics provides Prometheus instrumentation for the leave engine.
// Everything registers on Registry, which the HTTP server exposes at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/warp/leave-engine/leave"
)

// Registry is the custom prometheus registry for the service.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// =============================================================================
// DECISIONS
// =============================================================================

// DecisionsTotal counts decisions by outcome and the rule that produced them.
var DecisionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "leave",
	Name:      "decisions_total",
	Help:      "Leave decisions by outcome and deciding rule",
}, []string{"outcome", "rule"})

// RuleEvaluationsTotal counts how often each eligibility rule ran and
// whether it rejected.
var RuleEvaluationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "leave",
	Name:      "rule_evaluations_total",
	Help:      "Eligibility rule evaluations by rule and result",
}, []string{"rule", "result"})

// EvaluationErrorsTotal counts requests that could not be evaluated.
var EvaluationErrorsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "leave",
	Name:      "evaluation_errors_total",
	Help:      "Pending requests left undecided because evaluation failed",
})

// =============================================================================
// ANALYSIS RUNS
// =============================================================================

// AnalysisRunsTotal counts analysis runs by trigger and final status.
var AnalysisRunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "leave",
	Name:      "analysis_runs_total",
	Help:      "Batch analysis runs by trigger and status",
}, []string{"trigger", "status"})

// AnalysisDurationSeconds tracks snapshot-to-persist time of a batch run.
var AnalysisDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "leave",
	Name:      "analysis_duration_seconds",
	Help:      "Time taken by one batch analysis run",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
})

// PendingRequests is the number of pending requests seen by the last run.
var PendingRequests = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "leave",
	Name:      "pending_requests",
	Help:      "Pending requests in the most recent analysis snapshot",
})

// =============================================================================
// HELPERS
// =============================================================================

// RuleObserver feeds RuleEvaluationsTotal from the evaluator.
type RuleObserver struct{}

func (RuleObserver) RuleEvaluated(rule leave.RuleID, rejected bool) {
	result := "pass"
	if rejected {
		result = "reject"
	}
	RuleEvaluationsTotal.WithLabelValues(string(rule), result).Inc()
}

// ObserveDecision records one decision.
func ObserveDecision(d leave.Decision) {
	DecisionsTotal.WithLabelValues(string(d.Outcome), string(d.Rule)).Inc()
}

// ObserveRun records a finished analysis run.
func ObserveRun(trigger, status string, elapsed time.Duration) {
	AnalysisRunsTotal.WithLabelValues(trigger, status).Inc()
	AnalysisDurationSeconds.Observe(elapsed.Seconds())
}
