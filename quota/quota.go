/*
Package quota answers "how many colleagues are already off during this
range" for department and position cohorts.

COHORT LIMIT:
  limit = max(1, floor(headcount × quotaFraction))

  Headcount comes from the policy table (HeadcountStatic, the default) or
  from counting the snapshot's employees (HeadcountRoster). Either way the
  department must be configured: the quota fraction lives in the policy.

  Example with fraction 0.2:
    Site Management  19 → floor(3.8) = 3
    Accounting        3 → floor(0.6) = 0 → 1

OVERLAP COUNTING:
  Only approved requests count. A request overlaps the candidate range when
  the closed intervals share at least one day. Pending requests, including
  the candidate itself, never count.

SEE ALSO:
  - calendar/period.go: IntervalsOverlap
  - eligibility: department quota and position seniority rules
*/
package quota

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/policy"
)

// =============================================================================
// ACCOUNTANT
// =============================================================================

// Accountant counts overlapping approved leave against one roster snapshot.
type Accountant struct {
	policy    *policy.Policy
	employees map[leave.EmployeeID]leave.Employee
	roster    map[string]int
}

// NewAccountant indexes employees once so predicates can resolve the owner
// of each request.
func NewAccountant(p *policy.Policy, employees []leave.Employee) *Accountant {
	a := &Accountant{
		policy:    p,
		employees: make(map[leave.EmployeeID]leave.Employee, len(employees)),
		roster:    make(map[string]int),
	}
	for _, e := range employees {
		a.employees[e.ID] = e
		a.roster[e.Department]++
	}
	return a
}

// Employee looks up a roster entry.
func (a *Accountant) Employee(id leave.EmployeeID) (leave.Employee, bool) {
	e, ok := a.employees[id]
	return e, ok
}

// Headcount returns the headcount used for department's limit.
func (a *Accountant) Headcount(department string) (int, error) {
	d, ok := a.policy.Department(department)
	if !ok {
		return 0, &leave.ConfigError{
			Field:   "departments",
			Message: fmt.Sprintf("department %q has no headcount or quota configured", department),
		}
	}
	if a.policy.HeadcountSource == policy.HeadcountRoster {
		return a.roster[department], nil
	}
	return d.Headcount, nil
}

// CohortLimit returns the maximum number of simultaneous approved leaves
// for department.
func (a *Accountant) CohortLimit(department string) (int, error) {
	headcount, err := a.Headcount(department)
	if err != nil {
		return 0, err
	}
	d, _ := a.policy.Department(department)
	limit := decimal.NewFromInt(int64(headcount)).Mul(d.QuotaFraction).Floor().IntPart()
	if limit < 1 {
		limit = 1
	}
	return int(limit), nil
}

// =============================================================================
// COHORT PREDICATES
// =============================================================================

// Predicate selects the employees that belong to a cohort.
type Predicate func(leave.Employee) bool

// SameDepartment matches employees of department.
func SameDepartment(department string) Predicate {
	return func(e leave.Employee) bool { return e.Department == department }
}

// SamePosition matches employees holding position.
func SamePosition(position string) Predicate {
	return func(e leave.Employee) bool { return e.Position == position }
}

// =============================================================================
// COUNTING
// =============================================================================

// OverlappingApprovedCount counts approved requests whose owner matches pred
// and whose range overlaps period. Requests of unknown employees are
// ignored since their cohort cannot be determined.
func (a *Accountant) OverlappingApprovedCount(pred Predicate, period calendar.Period, requests []leave.Request) int {
	n := 0
	for _, r := range requests {
		if !r.IsApproved() || !r.Period().Overlaps(period) {
			continue
		}
		owner, ok := a.employees[r.EmployeeID]
		if !ok || !pred(owner) {
			continue
		}
		n++
	}
	return n
}

// Usage is a department's occupancy for one range.
type Usage struct {
	Department string
	Count      int
	Limit      int
}

// Breached reports whether admitting one more request would exceed Limit.
func (u Usage) Breached() bool { return u.Count >= u.Limit }

// DepartmentUsage counts department's overlapping approved requests and
// pairs the count with the cohort limit.
func (a *Accountant) DepartmentUsage(department string, period calendar.Period, requests []leave.Request) (Usage, error) {
	limit, err := a.CohortLimit(department)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		Department: department,
		Count:      a.OverlappingApprovedCount(SameDepartment(department), period, requests),
		Limit:      limit,
	}, nil
}

// WouldBreachQuota is true when the overlapping approved count has already
// reached the department's limit.
func (a *Accountant) WouldBreachQuota(department string, period calendar.Period, requests []leave.Request) (bool, error) {
	u, err := a.DepartmentUsage(department, period, requests)
	if err != nil {
		return false, err
	}
	return u.Breached(), nil
}

// =============================================================================
// SENIORITY
// =============================================================================

// Conflict is an approved overlapping request held by a more senior
// colleague.
type Conflict struct {
	Colleague leave.Employee
	Request   leave.Request
}

// FindSeniorColleague returns the most senior same-position employee with
// an approved request overlapping period who was hired strictly before
// hireDate. Ties on hire date resolve by employee id.
func (a *Accountant) FindSeniorColleague(position string, hireDate calendar.Date, period calendar.Period, requests []leave.Request) (Conflict, bool) {
	var (
		best  Conflict
		found bool
	)
	for _, r := range requests {
		if !r.IsApproved() || !r.Period().Overlaps(period) {
			continue
		}
		owner, ok := a.employees[r.EmployeeID]
		if !ok || owner.Position != position || !owner.HireDate.Before(hireDate) {
			continue
		}
		if !found || moreSenior(owner, best.Colleague) {
			best = Conflict{Colleague: owner, Request: r}
			found = true
		}
	}
	return best, found
}

// SeniorColleagueOnLeave reports whether FindSeniorColleague finds anyone.
func (a *Accountant) SeniorColleagueOnLeave(position string, hireDate calendar.Date, period calendar.Period, requests []leave.Request) bool {
	_, ok := a.FindSeniorColleague(position, hireDate, period, requests)
	return ok
}

func moreSenior(a, b leave.Employee) bool {
	if !a.HireDate.Equal(b.HireDate) {
		return a.HireDate.Before(b.HireDate)
	}
	return a.ID < b.ID
}
