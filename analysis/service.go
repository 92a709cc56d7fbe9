/*
Package analysis runs the eligibility evaluator against persisted data.

PURPOSE:
  The evaluator is pure. This package owns the I/O around it: read one
  consistent snapshot, evaluate in memory, write every decision back in one
  atomic call, and record the run for audit.

BATCH FLOW:
  Snapshot ──▶ EvaluateBatch ──▶ ApplyDecisions ──▶ SaveAnalysisRun
     │               │                  │
     │               │                  └─ skips rows no longer pending
     │               └─ ConfigError aborts the run before any write
     └─ single read transaction in SQL stores

CONCURRENCY:
  Concurrent AnalyzePending calls share one in-flight run
  (golang.org/x/sync/singleflight). AnalyzeOne is not collapsed; the
  pending guard in the store keeps it from overwriting a batch decision
  or an HR override.

SEE ALSO:
  - scheduler.go: periodic trigger
  - eligibility/evaluator.go: the rule chain
*/
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/eligibility"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/metrics"
	"golang.org/x/sync/singleflight"
)

// Run triggers recorded on AnalysisRun.Trigger.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// Run statuses.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

const batchKey = "pending"

// Store is the persistence the pipeline needs.
type Store interface {
	leave.SnapshotReader
	leave.DecisionWriter
	leave.RunStore
}

// Options configures a Service. The zero value is usable.
type Options struct {
	Logger *slog.Logger
	// Now stamps run times. Defaults to time.Now.
	Now func() time.Time
	// AsOf pins the evaluation date. Zero means the current date at run time.
	AsOf calendar.Date
}

// Service drives batch and single-request analysis.
type Service struct {
	store     Store
	evaluator *eligibility.Evaluator
	logger    *slog.Logger
	now       func() time.Time
	asOf      calendar.Date
	group     singleflight.Group
}

// NewService wires a store and an evaluator.
func NewService(store Store, ev *eligibility.Evaluator, opts Options) *Service {
	s := &Service{
		store:     store,
		evaluator: ev,
		logger:    opts.Logger,
		now:       opts.Now,
		asOf:      opts.AsOf,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Evaluator returns the evaluator the service runs.
func (s *Service) Evaluator() *eligibility.Evaluator { return s.evaluator }

func (s *Service) evaluationDate() calendar.Date {
	if !s.asOf.IsZero() {
		return s.asOf
	}
	return calendar.FromTime(s.now())
}

// =============================================================================
// BATCH
// =============================================================================

// AnalyzePending evaluates every pending request and persists the decisions.
// The returned run is recorded even when err is non-nil. Callers arriving
// while a run is in flight receive that run's result.
func (s *Service) AnalyzePending(ctx context.Context, trigger string) (leave.AnalysisRun, error) {
	v, err, shared := s.group.Do(batchKey, func() (any, error) {
		return s.runBatch(ctx, trigger)
	})
	if shared {
		s.logger.Debug("analysis run shared", "trigger", trigger)
	}
	run, _ := v.(leave.AnalysisRun)
	return run, err
}

func (s *Service) runBatch(ctx context.Context, trigger string) (leave.AnalysisRun, error) {
	started := s.now()
	asOf := s.evaluationDate()
	run := leave.AnalysisRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		AsOf:      asOf.String(),
		StartedAt: started.UTC(),
	}
	log := s.logger.With("run_id", run.ID, "trigger", trigger)

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return s.fail(ctx, log, run, started, fmt.Errorf("read snapshot: %w", err))
	}
	metrics.PendingRequests.Set(float64(len(snap.Pending())))

	result, err := s.evaluator.EvaluateBatch(snap.Requests, snap.Employees, asOf)
	if err != nil {
		return s.fail(ctx, log, run, started, fmt.Errorf("evaluate: %w", err))
	}

	tally := result.Tally()
	run.Evaluated = tally.Evaluated
	run.Approved = tally.Approved
	run.Rejected = tally.Rejected
	run.Errors = tally.Errors
	for _, evalErr := range result.Errors() {
		metrics.EvaluationErrorsTotal.Inc()
		log.Warn("request left pending", "err", evalErr)
	}

	updates := result.Updates()
	applied, err := s.store.ApplyDecisions(ctx, updates)
	if err != nil {
		return s.fail(ctx, log, run, started, fmt.Errorf("apply decisions: %w", err))
	}
	for _, u := range updates {
		metrics.ObserveDecision(u.Decision)
	}
	if skipped := len(updates) - applied; skipped > 0 {
		log.Info("decisions skipped, requests no longer pending", "skipped", skipped)
	}

	run.Applied = applied
	run.Status = RunCompleted
	run.FinishedAt = s.now().UTC()
	if err := s.store.SaveAnalysisRun(ctx, run); err != nil {
		log.Warn("analysis run save failed", "err", err)
	}
	metrics.ObserveRun(trigger, RunCompleted, s.now().Sub(started))

	log.Info("analysis run completed",
		"evaluated", run.Evaluated,
		"approved", run.Approved,
		"rejected", run.Rejected,
		"errors", run.Errors,
		"applied", run.Applied,
	)
	return run, nil
}

func (s *Service) fail(ctx context.Context, log *slog.Logger, run leave.AnalysisRun, started time.Time, err error) (leave.AnalysisRun, error) {
	run.Status = RunFailed
	run.Error = err.Error()
	run.FinishedAt = s.now().UTC()
	if saveErr := s.store.SaveAnalysisRun(ctx, run); saveErr != nil {
		log.Warn("analysis run save failed", "err", saveErr)
	}
	metrics.ObserveRun(run.Trigger, RunFailed, s.now().Sub(started))
	log.Error("analysis run failed", "err", err)
	return run, err
}

// =============================================================================
// SINGLE REQUEST
// =============================================================================

// AnalyzeOne evaluates one pending request against a fresh snapshot and
// persists the decision. It returns the request as decided.
func (s *Service) AnalyzeOne(ctx context.Context, id leave.RequestID) (leave.Request, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return leave.Request{}, fmt.Errorf("read snapshot: %w", err)
	}

	var (
		req   leave.Request
		found bool
	)
	for _, r := range snap.Requests {
		if r.ID == id {
			req, found = r, true
			break
		}
	}
	if !found {
		return leave.Request{}, leave.ErrRequestNotFound
	}
	if !req.IsPending() {
		return req, leave.ErrNotPending
	}

	var (
		emp    leave.Employee
		hasEmp bool
	)
	for _, e := range snap.Employees {
		if e.ID == req.EmployeeID {
			emp, hasEmp = e, true
			break
		}
	}
	if !hasEmp {
		metrics.EvaluationErrorsTotal.Inc()
		return req, &leave.EvaluationError{RequestID: req.ID, EmployeeID: req.EmployeeID, Err: leave.ErrEmployeeNotFound}
	}

	dec, err := s.evaluator.EvaluateOne(req, emp, snap.Requests, snap.Employees, s.evaluationDate())
	if err != nil {
		return req, err
	}

	applied, err := s.store.ApplyDecisions(ctx, []leave.DecisionUpdate{{RequestID: req.ID, Decision: dec}})
	if err != nil {
		return req, fmt.Errorf("apply decision: %w", err)
	}
	if applied == 0 {
		return req, leave.ErrNotPending
	}
	metrics.ObserveDecision(dec)

	s.logger.Info("request analyzed",
		"request_id", req.ID,
		"outcome", dec.Outcome,
		"rule", dec.Rule,
	)

	req.Status = dec.Outcome.Status()
	req.Decision = &dec
	return req, nil
}
