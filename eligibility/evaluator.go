/*
Package eligibility decides pending leave requests.

PURPOSE:
  One evaluator, one ordered rule chain. Every pending request gets exactly
  one decision: approved, or rejected by the first rule that objects.

RULE CHAIN (first rejection wins, later rules are not evaluated):
  0. date_range          end date before start date
  1. probation           start < hire date + probation days
  2. performance_review  overlaps the review blackout window
  3. restricted_period   overlaps a named restricted period
  4. summer_cap          approved summer days + requested days > cap
  4b. entitlement        requested days > remaining balance (policy flag)
  5. department_quota    overlapping approved leave in department >= limit
  6. position_seniority  a senior same-position colleague is already off
  7. all_criteria        approve

DAY COUNTS:
  The stored DaysRequested is ignored. Every rule that needs a day count
  uses the policy calendar's CountChargeableDays.

SNAPSHOT ISOLATION:
  EvaluateBatch evaluates every pending request against the same input.
  A request approved earlier in the batch does not count toward quotas for
  a later one; callers re-run the batch to see the effect.

FAILURES:
  - Department missing from the policy: ConfigError, returned before any
    request is decided.
  - Employee missing from the snapshot: per-request EvaluationError, the
    request stays pending and the batch carries on.

USAGE:
  ev, err := eligibility.NewEvaluator(policy.Default(), eligibility.Options{})
  result, err := ev.EvaluateBatch(snap.Requests, snap.Employees, calendar.Today())
  updates := result.Updates()

SEE ALSO:
  - rules.go: individual rules and their reasons
  - quota: cohort limits and seniority lookups
  - entitlement: allotments and balances
*/
package eligibility

import (
	"fmt"
	"sort"
	"time"

	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/entitlement"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/policy"
	"github.com/warp/leave-engine/quota"
)

// ApprovedReason is the reason attached to every approval.
const ApprovedReason = "All criteria satisfied."

// =============================================================================
// OBSERVER
// =============================================================================

// Observer is told about every rule the evaluator runs, in order.
// Implementations must be safe for concurrent use if the evaluator is.
type Observer interface {
	RuleEvaluated(rule leave.RuleID, rejected bool)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(rule leave.RuleID, rejected bool)

func (f ObserverFunc) RuleEvaluated(rule leave.RuleID, rejected bool) { f(rule, rejected) }

type nopObserver struct{}

func (nopObserver) RuleEvaluated(leave.RuleID, bool) {}

// =============================================================================
// EVALUATOR
// =============================================================================

// Options configures an Evaluator. The zero value is usable.
type Options struct {
	Observer Observer
	// Now stamps DecidedAt. Defaults to time.Now.
	Now func() time.Time
}

// Evaluator is immutable after construction and safe for concurrent use.
type Evaluator struct {
	policy      *policy.Policy
	entitlement *entitlement.Calculator
	chain       []rule
	observer    Observer
	now         func() time.Time
}

// NewEvaluator validates p and builds the rule chain.
func NewEvaluator(p *policy.Policy, opts Options) (*Evaluator, error) {
	if p == nil {
		return nil, &leave.ConfigError{Field: "policy", Message: "policy is required"}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ent := entitlement.NewCalculator(p)
	ev := &Evaluator{
		policy:      p,
		entitlement: ent,
		chain:       buildChain(p, ent),
		observer:    opts.Observer,
		now:         opts.Now,
	}
	if ev.observer == nil {
		ev.observer = nopObserver{}
	}
	if ev.now == nil {
		ev.now = time.Now
	}
	return ev, nil
}

// Policy returns the policy the evaluator was built with.
func (ev *Evaluator) Policy() *policy.Policy { return ev.policy }

// Rules lists the rule ids in evaluation order, ending with all_criteria.
func (ev *Evaluator) Rules() []leave.RuleID {
	ids := make([]leave.RuleID, 0, len(ev.chain)+1)
	for _, r := range ev.chain {
		ids = append(ids, r.id)
	}
	return append(ids, leave.RuleAllCriteria)
}

// EvaluateOne decides a single request against the given snapshot. asOf
// fixes the employee's tenure for the entitlement rule; a zero asOf means
// today. The request does not have to be pending: whether a decided
// request may be re-analysed is the caller's call.
func (ev *Evaluator) EvaluateOne(
	request leave.Request,
	employee leave.Employee,
	allRequests []leave.Request,
	allEmployees []leave.Employee,
	asOf calendar.Date,
) (leave.Decision, error) {
	acct := quota.NewAccountant(ev.policy, allEmployees)
	if _, err := acct.CohortLimit(employee.Department); err != nil {
		return leave.Decision{}, err
	}
	return ev.decide(request, employee, allRequests, acct, asOf)
}

// =============================================================================
// BATCH
// =============================================================================

// Result is the outcome for one request in a batch. Exactly one of
// Decision and Err is meaningful.
type Result struct {
	RequestID leave.RequestID
	Decision  leave.Decision
	Err       error
}

// BatchResult maps every pending request id to its Result.
type BatchResult map[leave.RequestID]Result

// EvaluateBatch decides every pending request in requests. The returned
// error is non-nil only for configuration problems, in which case no
// request was decided.
func (ev *Evaluator) EvaluateBatch(requests []leave.Request, employees []leave.Employee, asOf calendar.Date) (BatchResult, error) {
	acct := quota.NewAccountant(ev.policy, employees)

	pending := make([]leave.Request, 0, len(requests))
	for _, r := range requests {
		if r.IsPending() {
			pending = append(pending, r)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})

	// Fail fast: every department we are about to touch must be configured.
	for _, r := range pending {
		emp, ok := acct.Employee(r.EmployeeID)
		if !ok {
			continue
		}
		if _, err := acct.CohortLimit(emp.Department); err != nil {
			return nil, fmt.Errorf("request %s: %w", r.ID, err)
		}
	}

	out := make(BatchResult, len(pending))
	for _, r := range pending {
		emp, ok := acct.Employee(r.EmployeeID)
		if !ok {
			out[r.ID] = Result{RequestID: r.ID, Err: &leave.EvaluationError{
				RequestID: r.ID, EmployeeID: r.EmployeeID, Err: leave.ErrEmployeeNotFound,
			}}
			continue
		}
		dec, err := ev.decide(r, emp, requests, acct, asOf)
		if err != nil {
			// Only reachable through a config gap the pre-check missed.
			return nil, err
		}
		out[r.ID] = Result{RequestID: r.ID, Decision: dec}
	}
	return out, nil
}

func (ev *Evaluator) decide(request leave.Request, employee leave.Employee, requests []leave.Request, acct *quota.Accountant, asOf calendar.Date) (leave.Decision, error) {
	if asOf.IsZero() {
		asOf = calendar.FromTime(ev.now())
	}
	s := &subject{
		asOf:       asOf,
		request:    request,
		employee:   employee,
		period:     request.Period(),
		days:       ev.policy.Calendar.CountChargeableDays(request.StartDate, request.EndDate),
		requests:   requests,
		accountant: acct,
	}
	for _, r := range ev.chain {
		reason, err := r.check(s)
		if err != nil {
			return leave.Decision{}, err
		}
		ev.observer.RuleEvaluated(r.id, reason != "")
		if reason != "" {
			return ev.decision(leave.OutcomeRejected, r.id, reason), nil
		}
	}
	ev.observer.RuleEvaluated(leave.RuleAllCriteria, false)
	return ev.decision(leave.OutcomeApproved, leave.RuleAllCriteria, ApprovedReason), nil
}

func (ev *Evaluator) decision(o leave.Outcome, id leave.RuleID, reason string) leave.Decision {
	return leave.Decision{
		Outcome:   o,
		Reason:    reason,
		Rule:      id,
		DecidedBy: leave.DeciderEvaluator,
		DecidedAt: ev.now().UTC(),
	}
}

// =============================================================================
// BATCH RESULT HELPERS
// =============================================================================

// Updates returns the decided requests as store writes, ordered by id.
func (b BatchResult) Updates() []leave.DecisionUpdate {
	out := make([]leave.DecisionUpdate, 0, len(b))
	for _, id := range b.ids() {
		if res := b[id]; res.Err == nil {
			out = append(out, leave.DecisionUpdate{RequestID: id, Decision: res.Decision})
		}
	}
	return out
}

// Errors returns the per-request errors, ordered by request id.
func (b BatchResult) Errors() []error {
	var out []error
	for _, id := range b.ids() {
		if err := b[id].Err; err != nil {
			out = append(out, err)
		}
	}
	return out
}

// Tally is a summary of a batch.
type Tally struct {
	Evaluated int
	Approved  int
	Rejected  int
	Errors    int
}

// Tally counts outcomes and errors.
func (b BatchResult) Tally() Tally {
	t := Tally{Evaluated: len(b)}
	for _, res := range b {
		switch {
		case res.Err != nil:
			t.Errors++
		case res.Decision.Outcome == leave.OutcomeApproved:
			t.Approved++
		default:
			t.Rejected++
		}
	}
	return t
}

func (b BatchResult) ids() []leave.RequestID {
	ids := make([]leave.RequestID, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
