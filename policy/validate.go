package policy

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
)

// Validate checks internal consistency. It does not check that the policy
// covers a particular roster; the evaluator does that per batch.
func (p *Policy) Validate() error {
	if p.Calendar == nil {
		return &leave.ConfigError{Field: "calendar", Message: "calendar is required"}
	}
	if p.ProbationDays < 0 {
		return &leave.ConfigError{Field: "probation_days", Message: "must not be negative"}
	}
	if p.PerformanceReview != nil {
		if err := validateWindow("performance_review", *p.PerformanceReview); err != nil {
			return err
		}
	}
	for i, w := range p.RestrictedPeriods {
		if err := validateWindow(fmt.Sprintf("restricted_periods[%d]", i), w); err != nil {
			return err
		}
		if w.Label == "" {
			return &leave.ConfigError{Field: fmt.Sprintf("restricted_periods[%d].label", i), Message: "label is required"}
		}
	}
	if p.Summer != nil {
		if err := validateWindow("summer", Window{Label: "summer", Period: p.Summer.Period}); err != nil {
			return err
		}
		if p.Summer.MaxDays < 0 {
			return &leave.ConfigError{Field: "summer.max_days", Message: "must not be negative"}
		}
	}

	if len(p.Departments) == 0 {
		return &leave.ConfigError{Field: "departments", Message: "at least one department is required"}
	}
	one := decimal.NewFromInt(1)
	for _, name := range p.DepartmentNames() {
		d := p.Departments[name]
		field := fmt.Sprintf("departments.%s", name)
		if name == "" {
			return &leave.ConfigError{Field: "departments", Message: "department name is required"}
		}
		if p.HeadcountSource == HeadcountStatic && d.Headcount <= 0 {
			return &leave.ConfigError{Field: field + ".headcount", Message: "must be positive"}
		}
		if !d.QuotaFraction.IsPositive() || d.QuotaFraction.GreaterThan(one) {
			return &leave.ConfigError{Field: field + ".quota_fraction", Message: "must be in (0, 1]"}
		}
	}

	switch p.HeadcountSource {
	case HeadcountStatic, HeadcountRoster:
	default:
		return &leave.ConfigError{Field: "headcount_source", Message: fmt.Sprintf("unknown source %q (want static or roster)", p.HeadcountSource)}
	}

	if len(p.AllotmentTiers) == 0 || p.AllotmentTiers[0].MinYears != 0 {
		return &leave.ConfigError{Field: "allotment_tiers", Message: "first tier must start at 0 years"}
	}
	for i, t := range p.AllotmentTiers {
		if t.Days < 0 {
			return &leave.ConfigError{Field: fmt.Sprintf("allotment_tiers[%d].days", i), Message: "must not be negative"}
		}
		if i > 0 && t.MinYears <= p.AllotmentTiers[i-1].MinYears {
			return &leave.ConfigError{Field: fmt.Sprintf("allotment_tiers[%d].min_years", i), Message: "tiers must be strictly increasing"}
		}
	}
	return nil
}

func validateWindow(field string, w Window) error {
	if w.Period.Start.IsZero() || w.Period.End.IsZero() {
		return &leave.ConfigError{Field: field, Message: "start and end (or deadline) are required"}
	}
	if err := w.Period.Validate(); err != nil {
		return &leave.ConfigError{Field: field, Message: err.Error()}
	}
	return nil
}
