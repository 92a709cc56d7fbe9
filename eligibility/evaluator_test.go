package eligibility_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/eligibility"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/policy"
)

// =============================================================================
// FIXTURES
// =============================================================================

var (
	fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	asOf     = calendar.MustParse("2024-06-01")
)

func d(s string) calendar.Date { return calendar.MustParse(s) }

// recorder captures the rule sequence of every evaluation.
type recorder struct {
	calls []leave.RuleID
	last  bool
}

func (r *recorder) RuleEvaluated(id leave.RuleID, rejected bool) {
	r.calls = append(r.calls, id)
	r.last = rejected
}

func (r *recorder) reset() { r.calls = nil }

func newEvaluator(t *testing.T, p *policy.Policy) (*eligibility.Evaluator, *recorder) {
	t.Helper()
	rec := &recorder{}
	ev, err := eligibility.NewEvaluator(p, eligibility.Options{
		Observer: rec,
		Now:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return ev, rec
}

func employee(id, dept, position, hire string) leave.Employee {
	return leave.Employee{
		ID: leave.EmployeeID(id), Name: id, Department: dept,
		Position: position, HireDate: d(hire),
	}
}

func request(id, emp, start, end string, status leave.Status) leave.Request {
	return leave.Request{
		ID: leave.RequestID(id), EmployeeID: leave.EmployeeID(emp),
		StartDate: d(start), EndDate: d(end), Status: status,
	}
}

// roster is a small company that fits the default policy.
func roster() []leave.Employee {
	return []leave.Employee{
		employee("ayse", "Engineering", "Site Engineer", "2015-03-01"),
		employee("mehmet", "Engineering", "Site Engineer", "2020-01-01"),
		employee("zeynep", "Accounting", "Accountant", "2018-04-01"),
		employee("can", "Accounting", "Payroll Clerk", "2019-04-01"),
		employee("elif", "Human Resources", "HR Specialist", "2023-01-02"),
		employee("ali", "Site Management", "Foreman", "2010-05-01"),
		employee("veli", "Site Management", "Foreman", "2021-05-01"),
	}
}

func evaluateOne(t *testing.T, ev *eligibility.Evaluator, req leave.Request, employees []leave.Employee, others ...leave.Request) leave.Decision {
	t.Helper()
	var emp leave.Employee
	for _, e := range employees {
		if e.ID == req.EmployeeID {
			emp = e
		}
	}
	require.NotEmpty(t, emp.ID, "fixture employee %s", req.EmployeeID)
	all := append([]leave.Request{req}, others...)
	dec, err := ev.EvaluateOne(req, emp, all, employees, asOf)
	require.NoError(t, err)
	return dec
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNewEvaluator_RejectsInvalidPolicy(t *testing.T) {
	_, err := eligibility.NewEvaluator(nil, eligibility.Options{})
	assert.ErrorIs(t, err, leave.ErrConfiguration)

	p := policy.Default()
	p.Departments = nil
	_, err = eligibility.NewEvaluator(p, eligibility.Options{})
	assert.ErrorIs(t, err, leave.ErrConfiguration)
}

func TestRules_Order(t *testing.T) {
	ev, _ := newEvaluator(t, policy.Default())
	assert.Equal(t, []leave.RuleID{
		leave.RuleDateRange,
		leave.RuleProbation,
		leave.RulePerformanceReview,
		leave.RuleRestrictedPeriod,
		leave.RuleSummerCap,
		leave.RuleEntitlement,
		leave.RuleDepartmentQuota,
		leave.RulePositionSeniority,
		leave.RuleAllCriteria,
	}, ev.Rules())

	p := policy.Default()
	p.EnforceEntitlement = false
	ev, _ = newEvaluator(t, p)
	assert.NotContains(t, ev.Rules(), leave.RuleEntitlement)
}

// =============================================================================
// INDIVIDUAL RULES
// =============================================================================

func TestEvaluate_CleanWindowIsApproved(t *testing.T) {
	// GIVEN: a senior engineer asking for a quiet week in October
	ev, rec := newEvaluator(t, policy.Default())
	req := request("r1", "ayse", "2024-10-07", "2024-10-11", leave.StatusPending)

	// WHEN
	dec := evaluateOne(t, ev, req, roster())

	// THEN
	assert.Equal(t, leave.Decision{
		Outcome:   leave.OutcomeApproved,
		Reason:    eligibility.ApprovedReason,
		Rule:      leave.RuleAllCriteria,
		DecidedBy: leave.DeciderEvaluator,
		DecidedAt: fixedNow,
	}, dec)
	assert.Equal(t, ev.Rules(), rec.calls, "every rule ran once")
	assert.False(t, rec.last)
}

func TestEvaluate_InvalidDateRangeRejectedOutright(t *testing.T) {
	ev, rec := newEvaluator(t, policy.Default())
	req := request("r1", "ayse", "2024-10-11", "2024-10-07", leave.StatusPending)

	dec := evaluateOne(t, ev, req, roster())

	assert.Equal(t, leave.OutcomeRejected, dec.Outcome)
	assert.Equal(t, leave.RuleDateRange, dec.Rule)
	assert.Contains(t, dec.Reason, "date range is invalid")
	assert.Equal(t, []leave.RuleID{leave.RuleDateRange}, rec.calls)
}

func TestEvaluate_ProbationBoundary(t *testing.T) {
	ev, rec := newEvaluator(t, policy.Default())
	// 2024-03-06 + 180 days = 2024-09-02
	onBoundary := []leave.Employee{employee("new", "Engineering", "Surveyor", "2024-03-06")}
	req := request("r1", "new", "2024-09-02", "2024-09-04", leave.StatusPending)

	dec := evaluateOne(t, ev, req, onBoundary)

	assert.Equal(t, leave.OutcomeApproved, dec.Outcome, dec.Reason)
	assert.Contains(t, rec.calls, leave.RuleProbation)

	// One day short of the boundary.
	rec.reset()
	oneShort := []leave.Employee{employee("new", "Engineering", "Surveyor", "2024-03-07")}
	dec = evaluateOne(t, ev, req, oneShort)

	assert.Equal(t, leave.RuleProbation, dec.Rule)
	assert.Contains(t, dec.Reason, "probation period has not yet elapsed")
	assert.Contains(t, dec.Reason, "2024-09-03")
	assert.Equal(t, []leave.RuleID{leave.RuleDateRange, leave.RuleProbation}, rec.calls)
}

func TestEvaluate_PerformanceReviewBeatsRestrictedPeriod(t *testing.T) {
	// 2024-12-02..03 overlaps the review window and the Izmir deadline buffer.
	ev, rec := newEvaluator(t, policy.Default())
	req := request("r1", "ayse", "2024-12-02", "2024-12-03", leave.StatusPending)

	dec := evaluateOne(t, ev, req, roster())

	assert.Equal(t, leave.RulePerformanceReview, dec.Rule)
	assert.Contains(t, dec.Reason, "annual performance review")
	assert.Contains(t, dec.Reason, "2024-12-01 to 2025-01-15")
	assert.NotContains(t, rec.calls, leave.RuleRestrictedPeriod)
}

func TestEvaluate_RestrictedPeriodNamed(t *testing.T) {
	ev, _ := newEvaluator(t, policy.Default())
	req := request("r1", "ayse", "2024-09-10", "2024-09-11", leave.StatusPending)

	dec := evaluateOne(t, ev, req, roster())

	assert.Equal(t, leave.RuleRestrictedPeriod, dec.Rule)
	assert.Contains(t, dec.Reason, `"Istanbul Marina delivery"`)
	assert.Contains(t, dec.Reason, "2024-09-08 to 2024-09-22")
}

func TestEvaluate_AnkaraScenario(t *testing.T) {
	// GIVEN: hired 2024-01-01, asking for 2024-06-20..24, inside the Ankara
	// buffer 2024-06-18..2024-07-02
	hired := []leave.Employee{employee("deniz", "Engineering", "Surveyor", "2024-01-01")}
	req := request("r1", "deniz", "2024-06-20", "2024-06-24", leave.StatusPending)

	// WHEN: probation is short enough not to cover the request
	p := policy.Default()
	p.ProbationDays = 90
	ev, _ := newEvaluator(t, p)
	dec := evaluateOne(t, ev, req, hired)

	// THEN: the restricted period is named
	assert.Equal(t, leave.OutcomeRejected, dec.Outcome)
	assert.Equal(t, leave.RuleRestrictedPeriod, dec.Rule)
	assert.Contains(t, dec.Reason, "Ankara Highway Project delivery")
	assert.Contains(t, dec.Reason, "2024-06-18 to 2024-07-02")

	// AND: under the default 180-day probation, probation is checked first
	ev, _ = newEvaluator(t, policy.Default())
	dec = evaluateOne(t, ev, req, hired)
	assert.Equal(t, leave.RuleProbation, dec.Rule)
}

func TestEvaluate_SummerCapBoundary(t *testing.T) {
	// GIVEN: 4 approved summer days (Mon 07-01 .. Thu 07-04)
	ev, _ := newEvaluator(t, policy.Default())
	taken := request("taken", "ayse", "2024-07-01", "2024-07-04", leave.StatusApproved)

	// WHEN: asking for 3 more (Mon..Wed)
	threeMore := request("r1", "ayse", "2024-08-05", "2024-08-07", leave.StatusPending)
	dec := evaluateOne(t, ev, threeMore, roster(), taken)

	// THEN: 7 > 6
	assert.Equal(t, leave.RuleSummerCap, dec.Rule)
	assert.Equal(t,
		"The summer leave cap of 6 days would be exceeded: 4 days already approved this summer plus 3 requested makes 7.",
		dec.Reason)

	// AND: 2 more is exactly 6
	twoMore := request("r2", "ayse", "2024-08-05", "2024-08-06", leave.StatusPending)
	dec = evaluateOne(t, ev, twoMore, roster(), taken)
	assert.Equal(t, leave.OutcomeApproved, dec.Outcome, dec.Reason)
}

func TestEvaluate_SummerCapCountsOnlyDaysInsideWindow(t *testing.T) {
	// 05-27..06-04 has 3 chargeable days from 06-01 on (Sat 1, Mon 3, Tue 4).
	ev, _ := newEvaluator(t, policy.Default())
	straddling := request("taken", "ayse", "2024-05-27", "2024-06-04", leave.StatusApproved)
	req := request("r1", "ayse", "2024-08-05", "2024-08-08", leave.StatusPending)

	dec := evaluateOne(t, ev, req, roster(), straddling)

	assert.Equal(t, leave.RuleSummerCap, dec.Rule)
	assert.Contains(t, dec.Reason, "3 days already approved this summer plus 4 requested makes 7")
}

func TestEvaluate_StoredDaysRequestedIsIgnored(t *testing.T) {
	ev, _ := newEvaluator(t, policy.Default())
	taken := request("taken", "ayse", "2024-07-01", "2024-07-04", leave.StatusApproved)
	taken.DaysRequested = 0
	req := request("r1", "ayse", "2024-08-05", "2024-08-07", leave.StatusPending)
	req.DaysRequested = 1

	dec := evaluateOne(t, ev, req, roster(), taken)

	assert.Equal(t, leave.RuleSummerCap, dec.Rule)
}

func TestEvaluate_Entitlement(t *testing.T) {
	// GIVEN: elif (tenure 1, 14 days) already used 11 days in March
	used := request("march", "elif", "2024-03-04", "2024-03-15", leave.StatusApproved)
	lastYear := request("dec", "elif", "2023-12-04", "2023-12-08", leave.StatusApproved)
	ev, _ := newEvaluator(t, policy.Default())

	// WHEN / THEN: 3 more days fit
	fits := request("r1", "elif", "2024-10-14", "2024-10-16", leave.StatusPending)
	dec := evaluateOne(t, ev, fits, roster(), used, lastYear)
	assert.Equal(t, leave.OutcomeApproved, dec.Outcome, dec.Reason)

	// AND: 4 do not
	tooMany := request("r2", "elif", "2024-10-14", "2024-10-17", leave.StatusPending)
	dec = evaluateOne(t, ev, tooMany, roster(), used, lastYear)
	assert.Equal(t, leave.RuleEntitlement, dec.Rule)
	assert.Equal(t,
		"Insufficient leave entitlement: 4 days requested but only 3 remain of the 14-day allotment for 2024.",
		dec.Reason)

	// AND: the check can be switched off
	p := policy.Default()
	p.EnforceEntitlement = false
	ev, _ = newEvaluator(t, p)
	dec = evaluateOne(t, ev, tooMany, roster(), used, lastYear)
	assert.Equal(t, leave.OutcomeApproved, dec.Outcome, dec.Reason)
}

func TestEvaluate_DepartmentQuota(t *testing.T) {
	// Accounting has 3 people at 0.2, so the limit is 1.
	ev, _ := newEvaluator(t, policy.Default())
	off := request("off", "zeynep", "2024-10-07", "2024-10-11", leave.StatusApproved)
	req := request("r1", "can", "2024-10-09", "2024-10-09", leave.StatusPending)

	dec := evaluateOne(t, ev, req, roster(), off)

	assert.Equal(t, leave.RuleDepartmentQuota, dec.Rule)
	assert.Equal(t,
		"The Accounting department quota is full: 1 colleague is already on approved leave during this period and the limit is 1.",
		dec.Reason)
}

func TestEvaluate_DepartmentQuotaLimitTwo(t *testing.T) {
	// GIVEN: a department capped at 2 with two overlapping approvals
	p := policy.Default()
	p.Departments["Engineering"] = policy.Department{
		Name: "Engineering", Headcount: 10, QuotaFraction: decimal.RequireFromString("0.2"),
	}
	employees := []leave.Employee{
		employee("e1", "Engineering", "Architect", "2015-01-01"),
		employee("e2", "Engineering", "Surveyor", "2015-01-01"),
		employee("e3", "Engineering", "Draughtsman", "2015-01-01"),
	}
	approvedLeave := []leave.Request{
		request("a1", "e1", "2024-10-07", "2024-10-11", leave.StatusApproved),
		request("a2", "e2", "2024-10-09", "2024-10-18", leave.StatusApproved),
	}
	ev, _ := newEvaluator(t, p)

	// WHEN: a third overlaps both
	third := request("r1", "e3", "2024-10-10", "2024-10-10", leave.StatusPending)
	dec := evaluateOne(t, ev, third, employees, approvedLeave...)

	// THEN
	assert.Equal(t, leave.RuleDepartmentQuota, dec.Rule)
	assert.Contains(t, dec.Reason, "2 colleagues are already on approved leave")
	assert.Contains(t, dec.Reason, "the limit is 2")

	// AND: a non-overlapping third is fine
	later := request("r2", "e3", "2024-10-21", "2024-10-22", leave.StatusPending)
	dec = evaluateOne(t, ev, later, employees, approvedLeave...)
	assert.Equal(t, leave.OutcomeApproved, dec.Outcome, dec.Reason)
}

func TestEvaluate_PositionSeniority(t *testing.T) {
	ev, _ := newEvaluator(t, policy.Default())

	// Junior foreman while the senior foreman is off.
	seniorOff := request("off", "ali", "2024-10-07", "2024-10-11", leave.StatusApproved)
	junior := request("r1", "veli", "2024-10-09", "2024-10-10", leave.StatusPending)
	dec := evaluateOne(t, ev, junior, roster(), seniorOff)

	assert.Equal(t, leave.RulePositionSeniority, dec.Rule)
	assert.Equal(t,
		"A more senior Foreman (ali, hired 2010-05-01) already has approved leave from 2024-10-07 to 2024-10-11 overlapping this request.",
		dec.Reason)

	// The senior foreman is not blocked by the junior one.
	juniorOff := request("off", "veli", "2024-10-07", "2024-10-11", leave.StatusApproved)
	senior := request("r2", "ali", "2024-10-09", "2024-10-10", leave.StatusPending)
	dec = evaluateOne(t, ev, senior, roster(), juniorOff)
	assert.Equal(t, leave.OutcomeApproved, dec.Outcome, dec.Reason)
}

func TestEvaluateOne_UnknownDepartmentIsConfigError(t *testing.T) {
	ev, _ := newEvaluator(t, policy.Default())
	legal := employee("x", "Legal", "Counsel", "2010-01-01")
	req := request("r1", "x", "2024-10-07", "2024-10-08", leave.StatusPending)

	_, err := ev.EvaluateOne(req, legal, []leave.Request{req}, []leave.Employee{legal}, asOf)

	assert.ErrorIs(t, err, leave.ErrConfiguration)
}

// =============================================================================
// FIRST MATCH WINS
// =============================================================================

func TestEvaluate_ExactlyOneRuleFiresAndNothingAfterIt(t *testing.T) {
	ev, rec := newEvaluator(t, policy.Default())
	history := []leave.Request{
		request("h1", "ayse", "2024-07-01", "2024-07-04", leave.StatusApproved),
		request("h2", "zeynep", "2024-10-07", "2024-10-11", leave.StatusApproved),
		request("h3", "ali", "2024-10-07", "2024-10-11", leave.StatusApproved),
		request("h4", "elif", "2024-03-04", "2024-03-15", leave.StatusApproved),
	}
	cases := []leave.Request{
		request("c1", "ayse", "2024-10-11", "2024-10-07", leave.StatusPending),
		request("c2", "ayse", "2024-12-02", "2024-12-03", leave.StatusPending),
		request("c3", "ayse", "2024-06-20", "2024-06-21", leave.StatusPending),
		request("c4", "ayse", "2024-08-05", "2024-08-07", leave.StatusPending),
		request("c5", "elif", "2024-10-14", "2024-10-17", leave.StatusPending),
		request("c6", "can", "2024-10-09", "2024-10-09", leave.StatusPending),
		request("c7", "veli", "2024-10-09", "2024-10-10", leave.StatusPending),
		request("c8", "ayse", "2024-10-14", "2024-10-15", leave.StatusPending),
	}
	order := ev.Rules()
	seen := map[leave.RuleID]bool{}

	for _, c := range cases {
		t.Run(string(c.ID), func(t *testing.T) {
			rec.reset()
			dec := evaluateOne(t, ev, c, roster(), history...)

			idx := indexOf(order, dec.Rule)
			require.GreaterOrEqual(t, idx, 0, "unknown rule %s", dec.Rule)
			assert.Equal(t, order[:idx+1], rec.calls, "rules after %s must not run", dec.Rule)
			assert.Equal(t, dec.Outcome == leave.OutcomeRejected, rec.last)
			seen[dec.Rule] = true
		})
	}

	for _, id := range order {
		if id == leave.RuleProbation {
			continue // covered by TestEvaluate_ProbationBoundary
		}
		assert.True(t, seen[id], "no case exercised %s", id)
	}
}

func indexOf(ids []leave.RuleID, id leave.RuleID) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// BATCH
// =============================================================================

func TestEvaluateBatch_SnapshotIsolated(t *testing.T) {
	// GIVEN: Accounting (limit 1) with two overlapping pending requests
	ev, _ := newEvaluator(t, policy.Default())
	requests := []leave.Request{
		request("r1", "zeynep", "2024-10-07", "2024-10-11", leave.StatusPending),
		request("r2", "can", "2024-10-09", "2024-10-10", leave.StatusPending),
	}

	// WHEN
	res, err := ev.EvaluateBatch(requests, roster(), asOf)

	// THEN: neither sees the other's approval
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, leave.OutcomeApproved, res["r1"].Decision.Outcome)
	assert.Equal(t, leave.OutcomeApproved, res["r2"].Decision.Outcome)
}

func TestEvaluateBatch_MissingEmployeeStaysPending(t *testing.T) {
	ev, _ := newEvaluator(t, policy.Default())
	requests := []leave.Request{
		request("r1", "ayse", "2024-10-07", "2024-10-11", leave.StatusPending),
		request("r2", "ghost", "2024-10-07", "2024-10-11", leave.StatusPending),
		request("r3", "ayse", "2024-03-04", "2024-03-05", leave.StatusApproved),
		request("r4", "ayse", "2024-03-11", "2024-03-12", leave.StatusRejected),
	}

	res, err := ev.EvaluateBatch(requests, roster(), asOf)

	require.NoError(t, err)
	require.Len(t, res, 2, "only pending requests are evaluated")

	assert.NoError(t, res["r1"].Err)
	assert.Equal(t, leave.OutcomeApproved, res["r1"].Decision.Outcome)

	var evalErr *leave.EvaluationError
	require.ErrorAs(t, res["r2"].Err, &evalErr)
	assert.Equal(t, leave.RequestID("r2"), evalErr.RequestID)
	assert.ErrorIs(t, res["r2"].Err, leave.ErrEmployeeNotFound)

	updates := res.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, leave.RequestID("r1"), updates[0].RequestID)
	assert.Len(t, res.Errors(), 1)
	assert.Equal(t, eligibility.Tally{Evaluated: 2, Approved: 1, Errors: 1}, res.Tally())
}

func TestEvaluateBatch_ConfigErrorBeforeAnyDecision(t *testing.T) {
	// GIVEN: one fine request and one from an unconfigured department
	ev, rec := newEvaluator(t, policy.Default())
	employees := append(roster(), employee("lawyer", "Legal", "Counsel", "2010-01-01"))
	requests := []leave.Request{
		request("a", "ayse", "2024-10-07", "2024-10-11", leave.StatusPending),
		request("b", "lawyer", "2024-10-07", "2024-10-11", leave.StatusPending),
	}

	// WHEN
	res, err := ev.EvaluateBatch(requests, employees, asOf)

	// THEN: the whole batch fails and nothing was evaluated
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrConfiguration)
	assert.Nil(t, res)
	assert.Empty(t, rec.calls)
}

func TestEvaluateBatch_Tally(t *testing.T) {
	ev, _ := newEvaluator(t, policy.Default())
	var requests []leave.Request
	for i, start := range []string{"2024-10-07", "2024-09-10", "2024-12-02"} {
		requests = append(requests, request(fmt.Sprintf("r%d", i), "ayse", start, start, leave.StatusPending))
	}

	res, err := ev.EvaluateBatch(requests, roster(), asOf)

	require.NoError(t, err)
	assert.Equal(t, eligibility.Tally{Evaluated: 3, Approved: 1, Rejected: 2}, res.Tally())
}
