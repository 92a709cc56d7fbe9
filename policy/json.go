package policy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

//go:embed default_policy.json
var defaultPolicyJSON []byte

// PolicyJSON is the file representation of a Policy.
type PolicyJSON struct {
	Name                 string             `json:"name"`
	RestDay              string             `json:"rest_day"`
	Holidays             []calendar.Holiday `json:"holidays,omitempty"`
	HolidaySets          []string           `json:"holiday_sets,omitempty"`
	ProbationDays        *int               `json:"probation_days,omitempty"`
	PerformanceReview    *WindowJSON        `json:"performance_review,omitempty"`
	Summer               *SummerJSON        `json:"summer,omitempty"`
	RestrictedPeriods    []WindowJSON       `json:"restricted_periods,omitempty"`
	DefaultQuotaFraction *decimal.Decimal   `json:"default_quota_fraction,omitempty"`
	Departments          []DepartmentJSON   `json:"departments"`
	HeadcountSource      string             `json:"headcount_source,omitempty"`
	AllotmentTiers       []TierJSON         `json:"allotment_tiers,omitempty"`
	EnforceEntitlement   *bool              `json:"enforce_entitlement,omitempty"`
}

// WindowJSON is either an explicit {start, end} range or a project
// deadline with a symmetric buffer: {deadline, buffer_days}.
type WindowJSON struct {
	Label      string        `json:"label"`
	Start      calendar.Date `json:"start,omitempty"`
	End        calendar.Date `json:"end,omitempty"`
	Deadline   calendar.Date `json:"deadline,omitempty"`
	BufferDays int           `json:"buffer_days,omitempty"`
}

type SummerJSON struct {
	Start   calendar.Date `json:"start"`
	End     calendar.Date `json:"end"`
	MaxDays int           `json:"max_days"`
}

type DepartmentJSON struct {
	Name          string           `json:"name"`
	Headcount     int              `json:"headcount"`
	QuotaFraction *decimal.Decimal `json:"quota_fraction,omitempty"`
}

type TierJSON struct {
	MinYears int `json:"min_years"`
	Days     int `json:"days"`
}

// =============================================================================
// LOADING
// =============================================================================

const defaultProbationDays = 180

var defaultQuotaFraction = decimal.RequireFromString("0.2")

// Default returns the embedded company policy.
func Default() *Policy {
	p, err := Parse(defaultPolicyJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded default policy is invalid: %v", err))
	}
	return p
}

// DefaultJSON returns the embedded policy document.
func DefaultJSON() []byte {
	out := make([]byte, len(defaultPolicyJSON))
	copy(out, defaultPolicyJSON)
	return out
}

// Load reads and parses a policy file.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a policy document. Every failure wraps
// leave.ErrConfiguration.
func Parse(data []byte) (*Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, &leave.ConfigError{Field: "policy", Message: fmt.Sprintf("failed to parse policy JSON: %v", err)}
	}
	return FromJSON(pj)
}

// FromJSON converts and validates a PolicyJSON.
func FromJSON(pj PolicyJSON) (*Policy, error) {
	restDay, err := parseWeekday(pj.RestDay)
	if err != nil {
		return nil, err
	}

	cal, err := calendar.New(restDay, pj.Holidays).WithHolidaySets(pj.HolidaySets...)
	if err != nil {
		return nil, &leave.ConfigError{Field: "holiday_sets", Message: err.Error()}
	}

	p := &Policy{
		Name:               pj.Name,
		Calendar:           cal,
		HolidaySets:        pj.HolidaySets,
		ProbationDays:      defaultProbationDays,
		Departments:        make(map[string]Department, len(pj.Departments)),
		HeadcountSource:    HeadcountStatic,
		AllotmentTiers:     DefaultTiers(),
		EnforceEntitlement: true,
	}
	if pj.ProbationDays != nil {
		p.ProbationDays = *pj.ProbationDays
	}
	if pj.EnforceEntitlement != nil {
		p.EnforceEntitlement = *pj.EnforceEntitlement
	}
	if pj.HeadcountSource != "" {
		p.HeadcountSource = HeadcountSource(strings.ToLower(pj.HeadcountSource))
	}

	if pj.PerformanceReview != nil {
		w := windowFromJSON(*pj.PerformanceReview)
		p.PerformanceReview = &w
	}
	for _, wj := range pj.RestrictedPeriods {
		p.RestrictedPeriods = append(p.RestrictedPeriods, windowFromJSON(wj))
	}
	if pj.Summer != nil {
		p.Summer = &SummerWindow{
			Period:  calendar.NewPeriod(pj.Summer.Start, pj.Summer.End),
			MaxDays: pj.Summer.MaxDays,
		}
	}

	fallback := defaultQuotaFraction
	if pj.DefaultQuotaFraction != nil {
		fallback = *pj.DefaultQuotaFraction
	}
	for i, dj := range pj.Departments {
		if _, dup := p.Departments[dj.Name]; dup {
			return nil, &leave.ConfigError{Field: fmt.Sprintf("departments[%d]", i), Message: fmt.Sprintf("duplicate department %q", dj.Name)}
		}
		fraction := fallback
		if dj.QuotaFraction != nil {
			fraction = *dj.QuotaFraction
		}
		p.Departments[dj.Name] = Department{Name: dj.Name, Headcount: dj.Headcount, QuotaFraction: fraction}
	}

	if len(pj.AllotmentTiers) > 0 {
		p.AllotmentTiers = p.AllotmentTiers[:0]
		for _, tj := range pj.AllotmentTiers {
			p.AllotmentTiers = append(p.AllotmentTiers, Tier{MinYears: tj.MinYears, Days: tj.Days})
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func windowFromJSON(wj WindowJSON) Window {
	if !wj.Deadline.IsZero() {
		return Window{
			Label:  wj.Label,
			Period: calendar.NewPeriod(wj.Deadline.AddDays(-wj.BufferDays), wj.Deadline.AddDays(wj.BufferDays)),
		}
	}
	return Window{Label: wj.Label, Period: calendar.NewPeriod(wj.Start, wj.End)}
}

func parseWeekday(s string) (time.Weekday, error) {
	if s == "" {
		return time.Sunday, nil
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(wd.String(), s) {
			return wd, nil
		}
	}
	return 0, &leave.ConfigError{Field: "rest_day", Message: fmt.Sprintf("unknown weekday %q", s)}
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// ToJSON converts a Policy back to its file representation. Restricted
// periods are always written in explicit {start, end} form.
func (p *Policy) ToJSON() PolicyJSON {
	probation := p.ProbationDays
	enforce := p.EnforceEntitlement
	pj := PolicyJSON{
		Name:               p.Name,
		RestDay:            strings.ToLower(p.Calendar.RestDay().String()),
		Holidays:           p.Calendar.Holidays(),
		HolidaySets:        p.HolidaySets,
		ProbationDays:      &probation,
		HeadcountSource:    string(p.HeadcountSource),
		EnforceEntitlement: &enforce,
	}
	if p.PerformanceReview != nil {
		pj.PerformanceReview = &WindowJSON{Label: p.PerformanceReview.Label, Start: p.PerformanceReview.Period.Start, End: p.PerformanceReview.Period.End}
	}
	if p.Summer != nil {
		pj.Summer = &SummerJSON{Start: p.Summer.Period.Start, End: p.Summer.Period.End, MaxDays: p.Summer.MaxDays}
	}
	for _, w := range p.RestrictedPeriods {
		pj.RestrictedPeriods = append(pj.RestrictedPeriods, WindowJSON{Label: w.Label, Start: w.Period.Start, End: w.Period.End})
	}
	for _, name := range p.DepartmentNames() {
		d := p.Departments[name]
		fraction := d.QuotaFraction
		pj.Departments = append(pj.Departments, DepartmentJSON{Name: d.Name, Headcount: d.Headcount, QuotaFraction: &fraction})
	}
	for _, t := range p.AllotmentTiers {
		pj.AllotmentTiers = append(pj.AllotmentTiers, TierJSON{MinYears: t.MinYears, Days: t.Days})
	}
	return pj
}
