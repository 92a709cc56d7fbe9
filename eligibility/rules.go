package eligibility

import (
	"fmt"

	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/entitlement"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/policy"
	"github.com/warp/leave-engine/quota"
)

// =============================================================================
// RULE CONTEXT
// =============================================================================

// subject is everything a rule may look at for one request.
type subject struct {
	request  leave.Request
	employee leave.Employee
	period   calendar.Period
	days     int // recomputed chargeable days
	asOf     calendar.Date

	// Snapshot as of the start of the batch.
	requests   []leave.Request
	accountant *quota.Accountant
}

// rule returns a non-empty reason when it rejects.
type rule struct {
	id    leave.RuleID
	check func(s *subject) (reason string, err error)
}

// buildChain assembles the rules in evaluation order. Rules that the policy
// switches off are left out of the chain entirely.
func buildChain(p *policy.Policy, ent *entitlement.Calculator) []rule {
	chain := []rule{
		{leave.RuleDateRange, checkDateRange},
		{leave.RuleProbation, probationRule(p.ProbationDays)},
		{leave.RulePerformanceReview, performanceReviewRule(p.PerformanceReview)},
		{leave.RuleRestrictedPeriod, restrictedPeriodRule(p.RestrictedPeriods)},
		{leave.RuleSummerCap, summerCapRule(p.Summer, p.Calendar)},
	}
	if p.EnforceEntitlement {
		chain = append(chain, rule{leave.RuleEntitlement, entitlementRule(ent)})
	}
	return append(chain,
		rule{leave.RuleDepartmentQuota, checkDepartmentQuota},
		rule{leave.RulePositionSeniority, checkPositionSeniority},
	)
}

// =============================================================================
// RULES
// =============================================================================

func checkDateRange(s *subject) (string, error) {
	if s.request.EndDate.Before(s.request.StartDate) {
		return fmt.Sprintf("The date range is invalid: the request ends on %s, before its start date %s.",
			s.request.EndDate, s.request.StartDate), nil
	}
	return "", nil
}

func probationRule(days int) func(*subject) (string, error) {
	return func(s *subject) (string, error) {
		earliest := s.employee.HireDate.AddDays(days)
		if s.request.StartDate.Before(earliest) {
			return fmt.Sprintf("The probation period has not yet elapsed: leave can start on %s at the earliest, %d days after the hire date %s.",
				earliest, days, s.employee.HireDate), nil
		}
		return "", nil
	}
}

func performanceReviewRule(w *policy.Window) func(*subject) (string, error) {
	return func(s *subject) (string, error) {
		if w == nil || !s.period.Overlaps(w.Period) {
			return "", nil
		}
		return fmt.Sprintf("The request overlaps the %s blackout window (%s to %s), during which no leave is granted.",
			w.Label, w.Period.Start, w.Period.End), nil
	}
}

func restrictedPeriodRule(windows []policy.Window) func(*subject) (string, error) {
	return func(s *subject) (string, error) {
		for _, w := range windows {
			if s.period.Overlaps(w.Period) {
				return fmt.Sprintf("The request overlaps the restricted period %q (%s to %s), during which no leave is granted.",
					w.Label, w.Period.Start, w.Period.End), nil
			}
		}
		return "", nil
	}
}

// summerCapRule counts only the part of each approved request that falls
// inside the summer window. The candidate counts in full.
func summerCapRule(summer *policy.SummerWindow, cal *calendar.Calendar) func(*subject) (string, error) {
	return func(s *subject) (string, error) {
		if summer == nil || !s.period.Overlaps(summer.Period) {
			return "", nil
		}
		taken := 0
		for _, r := range s.requests {
			if r.EmployeeID != s.employee.ID || !r.IsApproved() {
				continue
			}
			if in, ok := r.Period().Intersect(summer.Period); ok {
				taken += cal.CountPeriod(in)
			}
		}
		if total := taken + s.days; total > summer.MaxDays {
			return fmt.Sprintf("The summer leave cap of %d days would be exceeded: %d days already approved this summer plus %d requested makes %d.",
				summer.MaxDays, taken, s.days, total), nil
		}
		return "", nil
	}
}

func entitlementRule(ent *entitlement.Calculator) func(*subject) (string, error) {
	return func(s *subject) (string, error) {
		// Tenure is taken at asOf; usage is charged to the year the leave starts in.
		year := s.request.StartDate.Year()
		allotment := ent.AnnualAllotment(s.employee.HireDate, s.asOf)
		remaining := allotment - ent.UsedDays(s.employee.ID, s.requests, year)
		if s.days > remaining {
			if remaining < 0 {
				remaining = 0
			}
			return fmt.Sprintf("Insufficient leave entitlement: %d days requested but only %d remain of the %d-day allotment for %d.",
				s.days, remaining, allotment, year), nil
		}
		return "", nil
	}
}

func checkDepartmentQuota(s *subject) (string, error) {
	u, err := s.accountant.DepartmentUsage(s.employee.Department, s.period, s.requests)
	if err != nil {
		return "", err
	}
	if u.Breached() {
		return fmt.Sprintf("The %s department quota is full: %d %s already on approved leave during this period and the limit is %d.",
			u.Department, u.Count, plural(u.Count, "colleague is", "colleagues are"), u.Limit), nil
	}
	return "", nil
}

func checkPositionSeniority(s *subject) (string, error) {
	pos := s.employee.Position
	if s.accountant.OverlappingApprovedCount(quota.SamePosition(pos), s.period, s.requests) == 0 {
		return "", nil
	}
	c, ok := s.accountant.FindSeniorColleague(pos, s.employee.HireDate, s.period, s.requests)
	if !ok {
		return "", nil
	}
	who := c.Colleague.Name
	if who == "" {
		who = string(c.Colleague.ID)
	}
	return fmt.Sprintf("A more senior %s (%s, hired %s) already has approved leave from %s to %s overlapping this request.",
		pos, who, c.Colleague.HireDate, c.Request.StartDate, c.Request.EndDate), nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
