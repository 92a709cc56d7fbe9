/*
Package leave defines the leave-management data model shared by the
evaluator, the stores and the HTTP API.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: read-only roster record (hire date, department, position)
  - Request: a leave request with an inclusive [StartDate, EndDate] range
  - Decision: the outcome + human-readable reason attached to a request
  - RuleID: which eligibility rule produced a decision

LIFECYCLE:
  ┌─────────┐   evaluator / HR    ┌──────────┐
  │ pending │ ──────────────────▶ │ approved │
  └─────────┘          │          └──────────┘
                       │          ┌──────────┐
                       └────────▶ │ rejected │
                                  └──────────┘
  One-shot: nothing in this module moves a request out of approved or
  rejected.

SEE ALSO:
  - errors.go: error kinds
  - store.go: persistence contracts
*/
package leave

import (
	"time"

	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RequestID string

// =============================================================================
// EMPLOYEE
// =============================================================================

// Employee is created by an external onboarding process.
type Employee struct {
	ID         EmployeeID    `json:"id"`
	Name       string        `json:"name"`
	HireDate   calendar.Date `json:"hire_date"`
	Department string        `json:"department"`
	Position   string        `json:"position"`
}

// =============================================================================
// REQUEST
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Request is a leave request. StartDate and EndDate are both inclusive.
// DaysRequested is informational: evaluation always recomputes it.
type Request struct {
	ID            RequestID     `json:"id"`
	EmployeeID    EmployeeID    `json:"employee_id"`
	StartDate     calendar.Date `json:"start_date"`
	EndDate       calendar.Date `json:"end_date"`
	DaysRequested int           `json:"days_requested"`
	Status        Status        `json:"status"`
	Explanation   string        `json:"explanation"`
	Decision      *Decision     `json:"decision,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Period returns the request range.
func (r Request) Period() calendar.Period {
	return calendar.NewPeriod(r.StartDate, r.EndDate)
}

func (r Request) IsPending() bool  { return r.Status == StatusPending }
func (r Request) IsApproved() bool { return r.Status == StatusApproved }

// =============================================================================
// DECISION
// =============================================================================

type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// Status maps an outcome onto the request status it produces.
func (o Outcome) Status() Status {
	if o == OutcomeApproved {
		return StatusApproved
	}
	return StatusRejected
}

// RuleID identifies the eligibility rule that produced a decision.
type RuleID string

const (
	RuleDateRange         RuleID = "date_range"
	RuleProbation         RuleID = "probation"
	RulePerformanceReview RuleID = "performance_review"
	RuleRestrictedPeriod  RuleID = "restricted_period"
	RuleSummerCap         RuleID = "summer_cap"
	RuleEntitlement       RuleID = "entitlement"
	RuleDepartmentQuota   RuleID = "department_quota"
	RulePositionSeniority RuleID = "position_seniority"
	RuleAllCriteria       RuleID = "all_criteria"
	RuleManualOverride    RuleID = "manual_override"
)

// DeciderEvaluator is the DecidedBy value for automated decisions.
const DeciderEvaluator = "evaluator"

// Decision is set exactly once per request.
type Decision struct {
	Outcome   Outcome   `json:"outcome"`
	Reason    string    `json:"reason"`
	Rule      RuleID    `json:"rule"`
	DecidedBy string    `json:"decided_by"`
	DecidedAt time.Time `json:"decided_at"`
}

// DecisionUpdate is one decision write against a pending request.
type DecisionUpdate struct {
	RequestID RequestID
	Decision  Decision
}
