/*
Package entitlement computes annual leave allotments and remaining balances.

TENURE:
  tenure = floor((asOf - hireDate) / 365.25 days), clamped at 0 for future
  hire dates. The division runs on decimal.Decimal so the quarter-day
  never rounds a boundary anniversary the wrong way.

ALLOTMENT:
  The highest policy tier whose MinYears <= tenure. Default tiers:
    tenure < 5        14 days
    5 <= tenure < 15  20 days
    tenure >= 15      26 days

BALANCE:
  allotment - chargeable days of approved requests starting in asOf's
  calendar year. Nothing carries over from earlier years.
*/
package entitlement

import (
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/policy"
)

var daysPerYear = decimal.RequireFromString("365.25")

// Calculator derives entitlement figures from a policy.
type Calculator struct {
	Calendar *calendar.Calendar
	Tiers    []policy.Tier
}

// NewCalculator builds a calculator from the policy's calendar and tiers.
func NewCalculator(p *policy.Policy) *Calculator {
	return &Calculator{Calendar: p.Calendar, Tiers: p.AllotmentTiers}
}

// TenureYears returns whole years of service at asOf.
func TenureYears(hireDate, asOf calendar.Date) int {
	days := calendar.DaysBetween(hireDate, asOf)
	if days <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(days)).Div(daysPerYear).Floor().IntPart())
}

// AnnualAllotment returns the yearly allotment in days.
func (c *Calculator) AnnualAllotment(hireDate, asOf calendar.Date) int {
	tenure := TenureYears(hireDate, asOf)
	days := 0
	for _, t := range c.Tiers {
		if tenure >= t.MinYears {
			days = t.Days
		}
	}
	return days
}

// UsedDays sums recomputed chargeable days of the employee's approved
// requests that start in year.
func (c *Calculator) UsedDays(employeeID leave.EmployeeID, requests []leave.Request, year int) int {
	used := 0
	for _, r := range requests {
		if r.EmployeeID != employeeID || !r.IsApproved() || r.StartDate.Year() != year {
			continue
		}
		used += c.Calendar.CountChargeableDays(r.StartDate, r.EndDate)
	}
	return used
}

// RemainingBalance is allotment minus days used in asOf's year. It can go
// negative if HR approved past the allotment manually.
func (c *Calculator) RemainingBalance(emp leave.Employee, requests []leave.Request, asOf calendar.Date) int {
	return c.AnnualAllotment(emp.HireDate, asOf) - c.UsedDays(emp.ID, requests, asOf.Year())
}

// Summary is the balance view served to the HR screens.
type Summary struct {
	EmployeeID  leave.EmployeeID `json:"employee_id"`
	Year        int              `json:"year"`
	TenureYears int              `json:"tenure_years"`
	Allotment   int              `json:"allotment"`
	Used        int              `json:"used"`
	Pending     int              `json:"pending"`
	Remaining   int              `json:"remaining"`
}

// Summarize builds a Summary; Pending counts chargeable days of pending
// requests starting in the same year.
func (c *Calculator) Summarize(emp leave.Employee, requests []leave.Request, asOf calendar.Date) Summary {
	s := Summary{
		EmployeeID:  emp.ID,
		Year:        asOf.Year(),
		TenureYears: TenureYears(emp.HireDate, asOf),
		Allotment:   c.AnnualAllotment(emp.HireDate, asOf),
		Used:        c.UsedDays(emp.ID, requests, asOf.Year()),
	}
	for _, r := range requests {
		if r.EmployeeID == emp.ID && r.IsPending() && r.StartDate.Year() == asOf.Year() {
			s.Pending += c.Calendar.CountChargeableDays(r.StartDate, r.EndDate)
		}
	}
	s.Remaining = s.Allotment - s.Used
	return s
}
