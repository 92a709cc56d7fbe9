package entitlement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/entitlement"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/policy"
)

func d(s string) calendar.Date { return calendar.MustParse(s) }

func newCalculator() *entitlement.Calculator {
	return entitlement.NewCalculator(policy.Default())
}

func TestTenureYears(t *testing.T) {
	tests := map[string]struct {
		hire, asOf string
		want       int
	}{
		"same day":            {"2024-01-01", "2024-01-01", 0},
		"future hire clamps":  {"2025-03-01", "2024-06-01", 0},
		"just under five":     {"2019-06-01", "2024-05-30", 4},
		"five years":          {"2019-06-01", "2024-06-01", 5},
		"mid fifteenth year":  {"2009-01-01", "2024-06-01", 15},
		"twenty years and up": {"2000-01-01", "2024-06-01", 24},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, entitlement.TenureYears(d(tc.hire), d(tc.asOf)))
		})
	}
}

func TestAnnualAllotment_Tiers(t *testing.T) {
	c := newCalculator()

	assert.Equal(t, 14, c.AnnualAllotment(d("2023-01-01"), d("2024-06-01")))
	assert.Equal(t, 14, c.AnnualAllotment(d("2025-01-01"), d("2024-06-01")), "future hire yields the base tier")
	assert.Equal(t, 20, c.AnnualAllotment(d("2019-06-01"), d("2024-06-01")))
	assert.Equal(t, 20, c.AnnualAllotment(d("2010-01-01"), d("2024-06-01")))
	assert.Equal(t, 26, c.AnnualAllotment(d("2009-01-01"), d("2024-06-01")))
}

func TestRemainingBalance_OnlyApprovedInReferenceYear(t *testing.T) {
	// GIVEN: a 9-year employee (20 days) with a mix of requests
	c := newCalculator()
	emp := leave.Employee{ID: "e1", HireDate: d("2015-01-01")}
	requests := []leave.Request{
		{ID: "a", EmployeeID: "e1", StartDate: d("2024-06-03"), EndDate: d("2024-06-05"), Status: leave.StatusApproved},
		{ID: "b", EmployeeID: "e1", StartDate: d("2024-07-15"), EndDate: d("2024-07-16"), Status: leave.StatusApproved, DaysRequested: 99},
		{ID: "c", EmployeeID: "e1", StartDate: d("2023-12-27"), EndDate: d("2023-12-29"), Status: leave.StatusApproved},
		{ID: "d", EmployeeID: "e1", StartDate: d("2024-09-02"), EndDate: d("2024-09-03"), Status: leave.StatusPending},
		{ID: "e", EmployeeID: "e2", StartDate: d("2024-06-03"), EndDate: d("2024-06-07"), Status: leave.StatusApproved},
	}

	// WHEN
	remaining := c.RemainingBalance(emp, requests, d("2024-03-01"))

	// THEN: 3 days (a) + 1 day (b: Jul 15 is a holiday, stored 99 ignored)
	assert.Equal(t, 16, remaining)

	s := c.Summarize(emp, requests, d("2024-03-01"))
	assert.Equal(t, entitlement.Summary{
		EmployeeID: "e1", Year: 2024, TenureYears: 9,
		Allotment: 20, Used: 4, Pending: 2, Remaining: 16,
	}, s)
}
