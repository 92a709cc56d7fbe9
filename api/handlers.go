/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes employees, leave requests, HR decisions and automated analysis
  over REST. Handlers parse and validate input, delegate to the store or
  the analysis service, and serialize the result.

ENDPOINTS:
  Employees:
    GET    /api/employees                 List employees
    POST   /api/employees                 Create or update an employee
    GET    /api/employees/{id}            Get employee
    GET    /api/employees/{id}/balance    Entitlement summary
    GET    /api/employees/{id}/requests   Employee's leave requests
    POST   /api/employees/{id}/requests   Submit a leave request

  Requests:
    GET    /api/requests?status=&employee_id=
    GET    /api/requests/{id}
    POST   /api/requests/{id}/approve     HR override
    POST   /api/requests/{id}/reject      HR override
    POST   /api/requests/{id}/analyze     Evaluate one request now

  Analysis:
    POST   /api/analysis/run              Evaluate every pending request
    GET    /api/analysis/runs?limit=      Run history, newest first

  Reference data:
    GET    /api/policy
    GET    /api/stats

ERROR HANDLING:
  Errors are returned as JSON with an HTTP status chosen by writeStoreError:
  - 400: malformed input, invalid date range
  - 404: unknown employee or request
  - 409: request already decided, duplicate id
  - 422: policy does not cover the data (configuration error)
  - 500: anything else

SECURITY NOTE:
  No authentication. The approve/reject actor is taken from the body.

SEE ALSO:
  - dto.go: request/response bodies
  - scenarios.go: demo data loaders
  - server.go: router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/leave-engine/analysis"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/entitlement"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/policy"
)

const (
	defaultActor    = "hr"
	defaultRunLimit = 20
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options configures a Handler. The zero value is usable.
type Options struct {
	Logger *slog.Logger
	// Now stamps created requests. Defaults to time.Now.
	Now func() time.Time
	// AsOf pins the date for balances. Zero means today.
	AsOf calendar.Date
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       leave.Store
	Analysis    *analysis.Service
	Policy      *policy.Policy
	Entitlement *entitlement.Calculator

	logger *slog.Logger
	now    func() time.Time
	asOf   calendar.Date

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a handler. The policy is the one the analysis
// service evaluates with, so balances and decisions always agree.
func NewHandler(store leave.Store, svc *analysis.Service, opts Options) *Handler {
	p := svc.Evaluator().Policy()
	h := &Handler{
		Store:       store,
		Analysis:    svc,
		Policy:      p,
		Entitlement: entitlement.NewCalculator(p),
		logger:      opts.Logger,
		now:         opts.Now,
		asOf:        opts.AsOf,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

func (h *Handler) today() calendar.Date {
	if !h.asOf.IsZero() {
		return h.asOf
	}
	return calendar.FromTime(h.now())
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(employees))
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), leave.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// CreateEmployee creates or replaces an employee. The department must be
// configured in the policy, otherwise batch analysis would refuse to run.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Department == "" || req.Position == "" {
		writeError(w, http.StatusBadRequest, "name, department and position are required", nil)
		return
	}
	hireDate, err := calendar.Parse(req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
		return
	}
	if _, ok := h.Policy.Department(req.Department); !ok {
		writeError(w, http.StatusUnprocessableEntity, "Department is not configured in the leave policy",
			&leave.ConfigError{Field: "departments", Message: fmt.Sprintf("department %q has no headcount or quota configured", req.Department)})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	emp := leave.Employee{
		ID:         leave.EmployeeID(req.ID),
		Name:       req.Name,
		HireDate:   hireDate,
		Department: req.Department,
		Position:   req.Position,
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, emp)
}

// GetBalance returns the employee's entitlement for the current year.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emp, err := h.Store.GetEmployee(ctx, leave.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, "Failed to get employee", err)
		return
	}

	asOf := h.today()
	if s := r.URL.Query().Get("as_of"); s != "" {
		if asOf, err = calendar.Parse(s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
	}

	requests, err := h.Store.ListRequests(ctx, leave.RequestFilter{EmployeeID: emp.ID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		Summary: h.Entitlement.Summarize(*emp, requests, asOf),
		AsOf:    asOf.String(),
	})
}

// ListEmployeeRequests returns every request of one employee.
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emp, err := h.Store.GetEmployee(ctx, leave.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, "Failed to get employee", err)
		return
	}
	requests, err := h.Store.ListRequests(ctx, leave.RequestFilter{EmployeeID: emp.ID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(requests))
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest creates a pending leave request. The chargeable day count
// is computed here; the client never supplies it.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emp, err := h.Store.GetEmployee(ctx, leave.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, "Failed to get employee", err)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := calendar.Parse(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := calendar.Parse(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "End date is before start date", leave.ErrInvalidDateRange)
		return
	}

	now := h.now().UTC()
	lr := leave.Request{
		ID:            leave.RequestID(uuid.NewString()),
		EmployeeID:    emp.ID,
		StartDate:     start,
		EndDate:       end,
		DaysRequested: h.Policy.Calendar.CountChargeableDays(start, end),
		Status:        leave.StatusPending,
		Explanation:   strings.TrimSpace(req.Explanation),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.Store.CreateRequest(ctx, lr); err != nil {
		writeStoreError(w, "Failed to create request", err)
		return
	}

	h.logger.Info("leave request submitted",
		"request_id", lr.ID,
		"employee_id", lr.EmployeeID,
		"days", lr.DaysRequested,
	)
	writeJSON(w, http.StatusCreated, lr)
}

// ListRequests returns requests, optionally filtered by status and employee.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := leave.RequestFilter{
		EmployeeID: leave.EmployeeID(q.Get("employee_id")),
		Status:     leave.Status(q.Get("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status (use pending, approved or rejected)", nil)
		return
	}

	requests, err := h.Store.ListRequests(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(requests))
}

// GetRequest returns a single request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Store.GetRequest(r.Context(), leave.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ApproveRequest approves a pending request on HR's authority.
// POST /api/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decideManually(w, r, leave.OutcomeApproved)
}

// RejectRequest rejects a pending request on HR's authority.
// POST /api/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decideManually(w, r, leave.OutcomeRejected)
}

func (h *Handler) decideManually(w http.ResponseWriter, r *http.Request, outcome leave.Outcome) {
	ctx := r.Context()
	id := leave.RequestID(chi.URLParam(r, "id"))

	// The body is optional.
	var body ManualDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.Actor == "" {
		body.Actor = defaultActor
	}

	req, err := h.Store.GetRequest(ctx, id)
	if err != nil {
		writeStoreError(w, "Failed to get request", err)
		return
	}
	if !req.IsPending() {
		writeError(w, http.StatusConflict, "Request is not pending", leave.ErrNotPending)
		return
	}

	dec := leave.Decision{
		Outcome:   outcome,
		Reason:    manualReason(outcome, body.Actor, body.Reason),
		Rule:      leave.RuleManualOverride,
		DecidedBy: body.Actor,
		DecidedAt: h.now().UTC(),
	}
	applied, err := h.Store.ApplyDecisions(ctx, []leave.DecisionUpdate{{RequestID: id, Decision: dec}})
	if err != nil {
		writeStoreError(w, "Failed to save decision", err)
		return
	}
	if applied == 0 {
		// Decided by someone else between the read and the write.
		writeError(w, http.StatusConflict, "Request is not pending", leave.ErrNotPending)
		return
	}

	h.logger.Info("leave request decided manually",
		"request_id", id,
		"outcome", outcome,
		"actor", body.Actor,
	)

	updated, err := h.Store.GetRequest(ctx, id)
	if err != nil {
		writeStoreError(w, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func manualReason(outcome leave.Outcome, actor, reason string) string {
	verb := "Approved"
	if outcome == leave.OutcomeRejected {
		verb = "Rejected"
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Sprintf("%s manually by %s.", verb, actor)
	}
	reason = strings.TrimRight(reason, ".")
	return fmt.Sprintf("%s manually by %s: %s.", verb, actor, reason)
}

// AnalyzeRequest runs the eligibility rules on one pending request and
// persists the decision.
// POST /api/requests/{id}/analyze
func (h *Handler) AnalyzeRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Analysis.AnalyzeOne(r.Context(), leave.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, "Failed to analyze request", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// =============================================================================
// ANALYSIS HANDLERS
// =============================================================================

// RunAnalysis evaluates every pending request.
// POST /api/analysis/run
func (h *Handler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	run, err := h.Analysis.AnalyzePending(ctx, analysis.TriggerManual)
	if err != nil {
		writeStoreError(w, "Analysis run failed", err)
		return
	}

	pending, err := h.Store.ListRequests(ctx, leave.RequestFilter{Status: leave.StatusPending})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, AnalysisRunDTO{Run: run, Pending: len(pending)})
}

// ListAnalysisRuns returns recent runs, newest first.
// GET /api/analysis/runs?limit=
func (h *Handler) ListAnalysisRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListAnalysisRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list analysis runs", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(runs))
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// GetPolicy returns the active leave policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Policy.ToJSON())
}

// GetStats returns dashboard aggregates over all requests.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Store.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read data", err)
		return
	}
	writeJSON(w, http.StatusOK, leave.ComputeStats(snap, h.Policy.Calendar))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError picks the status from the error kind.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, leave.ErrConfiguration):
		status = http.StatusUnprocessableEntity
	case leave.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, leave.ErrNotPending), errors.Is(err, leave.ErrDuplicateID):
		status = http.StatusConflict
	case errors.Is(err, leave.ErrInvalidDateRange):
		status = http.StatusBadRequest
	}
	writeError(w, status, message, err)
}

// nonNil keeps empty lists serialized as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
