/*
dto.go - Request and response bodies for the HTTP API

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

Domain types that already carry JSON tags (leave.Employee, leave.Request,
leave.AnalysisRun, leave.Stats, entitlement.Summary, policy.PolicyJSON) are
returned as-is. Validation is done in handlers, not here.

SEE ALSO:
  - handlers.go: uses these types
*/
package api

import (
	"github.com/warp/leave-engine/entitlement"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// CreateEmployeeRequest is the body of POST /api/employees. ID is generated
// when empty.
type CreateEmployeeRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	HireDate   string `json:"hire_date"`
	Department string `json:"department"`
	Position   string `json:"position"`
}

// BalanceDTO is the entitlement view of one employee.
type BalanceDTO struct {
	entitlement.Summary
	AsOf string `json:"as_of"`
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// SubmitRequest is the body of POST /api/employees/{id}/requests.
type SubmitRequest struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Explanation string `json:"explanation"`
}

// ManualDecisionRequest is the body of the approve and reject endpoints.
type ManualDecisionRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// =============================================================================
// ANALYSIS
// =============================================================================

// AnalysisRunDTO wraps a run with the decisions it left behind.
type AnalysisRunDTO struct {
	Run     leave.AnalysisRun `json:"run"`
	Pending int               `json:"pending_after"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioDTO reports what a scenario created.
type LoadScenarioDTO struct {
	Scenario  ScenarioDTO `json:"scenario"`
	Employees int         `json:"employees"`
	Requests  int         `json:"requests"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
