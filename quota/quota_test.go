package quota_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/policy"
	"github.com/warp/leave-engine/quota"
)

func d(s string) calendar.Date { return calendar.MustParse(s) }

func period(start, end string) calendar.Period { return calendar.NewPeriod(d(start), d(end)) }

func approved(id, emp, start, end string) leave.Request {
	return leave.Request{
		ID: leave.RequestID(id), EmployeeID: leave.EmployeeID(emp),
		StartDate: d(start), EndDate: d(end), Status: leave.StatusApproved,
	}
}

// twoSeatPolicy has one department whose limit is exactly 2.
func twoSeatPolicy() *policy.Policy {
	p := policy.Default()
	p.Departments = map[string]policy.Department{
		"Engineering": {Name: "Engineering", Headcount: 10, QuotaFraction: decimal.RequireFromString("0.2")},
	}
	return p
}

func TestCohortLimit_DefaultDepartments(t *testing.T) {
	a := quota.NewAccountant(policy.Default(), nil)

	tests := map[string]int{
		"Site Management": 3,
		"Engineering":     3,
		"Human Resources": 1,
		"Accounting":      1,
		"Quality Control": 1,
	}
	for dept, want := range tests {
		got, err := a.CohortLimit(dept)
		require.NoError(t, err, dept)
		assert.Equal(t, want, got, dept)
	}
}

func TestCohortLimit_UnknownDepartmentIsConfigError(t *testing.T) {
	a := quota.NewAccountant(policy.Default(), nil)

	_, err := a.CohortLimit("Legal")

	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrConfiguration)
	var cfgErr *leave.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestCohortLimit_RosterSourceCountsEmployees(t *testing.T) {
	p := twoSeatPolicy()
	p.HeadcountSource = policy.HeadcountRoster
	var roster []leave.Employee
	for i := 0; i < 15; i++ {
		roster = append(roster, leave.Employee{ID: leave.EmployeeID(fmt.Sprintf("e%d", i)), Department: "Engineering"})
	}

	limit, err := quota.NewAccountant(p, roster).CohortLimit("Engineering")

	require.NoError(t, err)
	assert.Equal(t, 3, limit, "15 × 0.2 from the roster instead of the static 10")
}

func TestWouldBreachQuota_LimitTwoBoundary(t *testing.T) {
	// GIVEN: a department with limit 2 and two approved requests in June
	employees := []leave.Employee{
		{ID: "e1", Department: "Engineering"},
		{ID: "e2", Department: "Engineering"},
		{ID: "e3", Department: "Engineering"},
	}
	requests := []leave.Request{
		approved("r1", "e1", "2024-06-03", "2024-06-07"),
		approved("r2", "e2", "2024-06-05", "2024-06-12"),
	}
	a := quota.NewAccountant(twoSeatPolicy(), employees)

	// WHEN / THEN: an overlapping third request breaches
	breach, err := a.WouldBreachQuota("Engineering", period("2024-06-06", "2024-06-06"), requests)
	require.NoError(t, err)
	assert.True(t, breach)

	// AND: a non-overlapping third request does not
	breach, err = a.WouldBreachQuota("Engineering", period("2024-06-13", "2024-06-14"), requests)
	require.NoError(t, err)
	assert.False(t, breach)

	// AND: overlapping only one of them leaves a seat
	u, err := a.DepartmentUsage("Engineering", period("2024-06-10", "2024-06-11"), requests)
	require.NoError(t, err)
	assert.Equal(t, quota.Usage{Department: "Engineering", Count: 1, Limit: 2}, u)
	assert.False(t, u.Breached())
}

func TestOverlappingApprovedCount_IgnoresPendingOtherCohortsAndUnknownOwners(t *testing.T) {
	employees := []leave.Employee{
		{ID: "e1", Department: "Engineering", Position: "Engineer"},
		{ID: "e2", Department: "Accounting", Position: "Accountant"},
	}
	pending := approved("r2", "e1", "2024-06-03", "2024-06-03")
	pending.Status = leave.StatusPending
	requests := []leave.Request{
		approved("r1", "e1", "2024-06-03", "2024-06-03"),
		pending,
		approved("r3", "e2", "2024-06-03", "2024-06-03"),
		approved("r4", "ghost", "2024-06-03", "2024-06-03"),
	}
	a := quota.NewAccountant(policy.Default(), employees)
	p := period("2024-06-01", "2024-06-30")

	assert.Equal(t, 1, a.OverlappingApprovedCount(quota.SameDepartment("Engineering"), p, requests))
	assert.Equal(t, 1, a.OverlappingApprovedCount(quota.SamePosition("Accountant"), p, requests))
	assert.Equal(t, 0, a.OverlappingApprovedCount(quota.SamePosition("Architect"), p, requests))
}

func TestSeniorColleagueOnLeave(t *testing.T) {
	employees := []leave.Employee{
		{ID: "senior", Position: "Site Engineer", HireDate: d("2015-03-01")},
		{ID: "oldest", Position: "Site Engineer", HireDate: d("2010-03-01")},
		{ID: "peer", Position: "Site Engineer", HireDate: d("2020-01-01")},
		{ID: "other", Position: "Accountant", HireDate: d("2001-01-01")},
	}
	requests := []leave.Request{
		approved("r1", "senior", "2024-09-02", "2024-09-06"),
		approved("r2", "oldest", "2024-09-04", "2024-09-04"),
		approved("r3", "peer", "2024-10-01", "2024-10-02"),
		approved("r4", "other", "2024-10-01", "2024-10-02"),
	}
	a := quota.NewAccountant(policy.Default(), employees)

	// Requester hired 2020-01-01, overlapping both seniors in September.
	c, ok := a.FindSeniorColleague("Site Engineer", d("2020-01-01"), period("2024-09-03", "2024-09-05"), requests)
	require.True(t, ok)
	assert.Equal(t, leave.EmployeeID("oldest"), c.Colleague.ID)
	assert.Equal(t, leave.RequestID("r2"), c.Request.ID)

	// Same hire date is not strictly earlier.
	assert.False(t, a.SeniorColleagueOnLeave("Site Engineer", d("2020-01-01"), period("2024-10-01", "2024-10-01"), requests))

	// The most senior employee never has a senior colleague.
	assert.False(t, a.SeniorColleagueOnLeave("Site Engineer", d("2010-03-01"), period("2024-09-03", "2024-09-05"), requests))

	// An earlier hire in another position doesn't count.
	assert.False(t, a.SeniorColleagueOnLeave("Site Engineer", d("2005-01-01"), period("2024-10-01", "2024-10-01"), requests))
}
