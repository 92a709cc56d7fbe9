/*
Package policy holds the static leave policy the evaluator runs against.

PURPOSE:
  Every number and window the eligibility rules depend on (department
  headcounts and quota fractions, restricted periods, the summer window,
  the performance-review window, public holidays, probation length,
  entitlement tiers) lives in one Policy value that is passed explicitly
  to the evaluator. There are no process-wide rule constants.

SOURCES:
  - Default(): the embedded default_policy.json
  - Load(path): a JSON file in the same schema
  - Parse(data): raw JSON

HEADCOUNT SOURCE:
  "static" (default) uses the headcount table in the policy. "roster"
  counts employees of the department in the evaluated snapshot instead.
  The quota fraction always comes from the policy.

SEE ALSO:
  - json.go: schema and conversion
  - validate.go: ConfigError generation
*/
package policy

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// POLICY
// =============================================================================

type Policy struct {
	Name               string
	Calendar           *calendar.Calendar
	HolidaySets        []string
	ProbationDays      int
	PerformanceReview  *Window
	RestrictedPeriods  []Window
	Summer             *SummerWindow
	Departments        map[string]Department
	HeadcountSource    HeadcountSource
	AllotmentTiers     []Tier
	EnforceEntitlement bool
}

// Window is a named blackout interval.
type Window struct {
	Label  string
	Period calendar.Period
}

// SummerWindow caps chargeable leave days per employee inside Period.
type SummerWindow struct {
	Period  calendar.Period
	MaxDays int
}

// Department is a quota cohort.
type Department struct {
	Name          string
	Headcount     int
	QuotaFraction decimal.Decimal
}

// Tier grants Days per year once tenure reaches MinYears.
type Tier struct {
	MinYears int
	Days     int
}

type HeadcountSource string

const (
	HeadcountStatic HeadcountSource = "static"
	HeadcountRoster HeadcountSource = "roster"
)

// DefaultTiers is the statutory allotment: 14 days under 5 years,
// 20 days from 5 to 15 years, 26 days from 15 years.
func DefaultTiers() []Tier {
	return []Tier{{MinYears: 0, Days: 14}, {MinYears: 5, Days: 20}, {MinYears: 15, Days: 26}}
}

// Department looks up a department by exact name.
func (p *Policy) Department(name string) (Department, bool) {
	d, ok := p.Departments[name]
	return d, ok
}

// DepartmentNames returns department names in sorted order.
func (p *Policy) DepartmentNames() []string {
	names := make([]string, 0, len(p.Departments))
	for name := range p.Departments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
