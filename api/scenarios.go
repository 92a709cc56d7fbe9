/*
scenarios.go - Demo data sets for testing and demonstrations

PURPOSE:
  Populates the store with a realistic roster and leave history so every
  eligibility rule can be seen firing from the HR screen.

AVAILABLE SCENARIOS:
  demo-company:  Eight-person construction company; one pending request per
                 rule plus one that passes
  summer-rush:   Engineering crew asking for the same July week after the
                 department quota is already used up

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Save employees
 3. Create decided history (manual HR approvals)
 4. Create pending requests, ready for POST /api/analysis/run

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "demo-company"}

NOTE:
  Scenarios reset the store. Only use in development/demo environments.
  Dates target the built-in 2024 policy.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	employees []leave.Employee
	requests  []scenarioRequest
}

type scenarioRequest struct {
	employee    leave.EmployeeID
	start, end  string
	approved    bool
	explanation string
}

func staff(id, name, dept, position, hired string) leave.Employee {
	return leave.Employee{
		ID:         leave.EmployeeID(id),
		Name:       name,
		HireDate:   calendar.MustParse(hired),
		Department: dept,
		Position:   position,
	}
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "demo-company",
			Name:        "Demo Company",
			Description: "Eight employees, one pending request for each eligibility rule and one that passes",
		},
		employees: []leave.Employee{
			staff("emp-ayse", "Ayşe Yılmaz", "Engineering", "Site Engineer", "2015-03-01"),
			staff("emp-mehmet", "Mehmet Kaya", "Engineering", "Site Engineer", "2020-01-01"),
			staff("emp-zeynep", "Zeynep Demir", "Accounting", "Accountant", "2018-04-01"),
			staff("emp-can", "Can Öztürk", "Accounting", "Payroll Clerk", "2019-04-01"),
			staff("emp-elif", "Elif Şahin", "Human Resources", "HR Specialist", "2023-01-02"),
			staff("emp-ali", "Ali Çelik", "Site Management", "Foreman", "2010-05-01"),
			staff("emp-veli", "Veli Arslan", "Site Management", "Foreman", "2021-05-01"),
			staff("emp-deniz", "Deniz Aydın", "Quality Control", "Inspector", "2024-05-02"),
		},
		requests: []scenarioRequest{
			// History.
			{employee: "emp-zeynep", start: "2024-10-14", end: "2024-10-18", approved: true, explanation: "Family visit"},
			{employee: "emp-ayse", start: "2024-11-04", end: "2024-11-08", approved: true, explanation: "Holiday"},
			{employee: "emp-ali", start: "2024-07-08", end: "2024-07-11", approved: true, explanation: "Summer break"},
			{employee: "emp-elif", start: "2024-03-04", end: "2024-03-15", approved: true, explanation: "Wedding"},
			// Pending, one per rule.
			{employee: "emp-deniz", start: "2024-08-19", end: "2024-08-21", explanation: "Moving house"},
			{employee: "emp-mehmet", start: "2024-12-02", end: "2024-12-04", explanation: "Short trip"},
			{employee: "emp-veli", start: "2024-09-09", end: "2024-09-11", explanation: "Personal"},
			{employee: "emp-ali", start: "2024-08-12", end: "2024-08-14", explanation: "Second summer break"},
			{employee: "emp-elif", start: "2024-10-21", end: "2024-10-26", explanation: "Travel"},
			{employee: "emp-can", start: "2024-10-15", end: "2024-10-16", explanation: "Appointments"},
			{employee: "emp-mehmet", start: "2024-11-05", end: "2024-11-06", explanation: "Family matter"},
			{employee: "emp-ayse", start: "2024-10-07", end: "2024-10-11", explanation: "Rest"},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "summer-rush",
			Name:        "Summer Rush",
			Description: "Three engineers already have the last July week off; two more ask and the Engineering quota allows three",
		},
		employees: []leave.Employee{
			staff("eng-1", "Burak Koç", "Engineering", "Site Engineer", "2012-02-01"),
			staff("eng-2", "Selin Kurt", "Engineering", "Structural Engineer", "2014-06-01"),
			staff("eng-3", "Emre Aksoy", "Engineering", "Surveyor", "2016-09-01"),
			staff("eng-4", "Gizem Polat", "Engineering", "Planner", "2018-01-15"),
			staff("eng-5", "Onur Doğan", "Engineering", "Cost Engineer", "2019-03-01"),
		},
		requests: []scenarioRequest{
			{employee: "eng-1", start: "2024-07-22", end: "2024-07-24", approved: true, explanation: "Summer"},
			{employee: "eng-2", start: "2024-07-22", end: "2024-07-24", approved: true, explanation: "Summer"},
			{employee: "eng-3", start: "2024-07-23", end: "2024-07-25", approved: true, explanation: "Summer"},
			{employee: "eng-4", start: "2024-07-23", end: "2024-07-25", explanation: "Summer"},
			{employee: "eng-5", start: "2024-07-24", end: "2024-07-26", explanation: "Summer"},
		},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	s, ok := findScenario(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// LoadScenario resets the store and loads a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	if err := h.loadScenario(r.Context(), s); err != nil {
		writeStoreError(w, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.logger.Info("scenario loaded", "scenario", s.ID)
	writeJSON(w, http.StatusOK, LoadScenarioDTO{
		Scenario:  s.ScenarioDTO,
		Employees: len(s.employees),
		Requests:  len(s.requests),
	})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// LOADER
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, s scenario) error {
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	for _, e := range s.employees {
		if err := h.Store.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("save employee %s: %w", e.ID, err)
		}
	}

	created := h.now().UTC()
	for i, sr := range s.requests {
		start, end := calendar.MustParse(sr.start), calendar.MustParse(sr.end)
		at := created.Add(time.Duration(i) * time.Second)
		lr := leave.Request{
			ID:            leave.RequestID(uuid.NewString()),
			EmployeeID:    sr.employee,
			StartDate:     start,
			EndDate:       end,
			DaysRequested: h.Policy.Calendar.CountChargeableDays(start, end),
			Status:        leave.StatusPending,
			Explanation:   sr.explanation,
			CreatedAt:     at,
			UpdatedAt:     at,
		}
		if sr.approved {
			lr.Status = leave.StatusApproved
			lr.Decision = &leave.Decision{
				Outcome:   leave.OutcomeApproved,
				Reason:    manualReason(leave.OutcomeApproved, defaultActor, ""),
				Rule:      leave.RuleManualOverride,
				DecidedBy: defaultActor,
				DecidedAt: at,
			}
		}
		if err := h.Store.CreateRequest(ctx, lr); err != nil {
			return fmt.Errorf("create request for %s: %w", sr.employee, err)
		}
	}
	return nil
}
