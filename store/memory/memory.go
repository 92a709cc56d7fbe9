// Package memory provides an in-process leave.Store for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu        sync.RWMutex
	employees map[leave.EmployeeID]leave.Employee
	requests  map[leave.RequestID]leave.Request
	runs      []leave.AnalysisRun
	now       func() time.Time
}

var _ leave.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		employees: make(map[leave.EmployeeID]leave.Employee),
		requests:  make(map[leave.RequestID]leave.Request),
		now:       time.Now,
	}
}

// Snapshot copies every request and employee under one read lock.
func (s *Store) Snapshot(_ context.Context) (leave.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return leave.Snapshot{
		Requests:  s.requestsLocked(leave.RequestFilter{}),
		Employees: s.employeesLocked(),
		TakenAt:   s.now().UTC(),
	}, nil
}

// ApplyDecisions writes all updates or none. Unknown ids fail the whole
// call; requests that are no longer pending are skipped.
func (s *Store) ApplyDecisions(_ context.Context, updates []leave.DecisionUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range updates {
		if _, ok := s.requests[u.RequestID]; !ok {
			return 0, leave.ErrRequestNotFound
		}
	}

	applied := 0
	now := s.now().UTC()
	for _, u := range updates {
		r := s.requests[u.RequestID]
		if !r.IsPending() {
			continue
		}
		dec := u.Decision
		r.Decision = &dec
		r.Status = dec.Outcome.Status()
		r.UpdatedAt = now
		s.requests[u.RequestID] = r
		applied++
	}
	return applied, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) SaveEmployee(_ context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
	return nil
}

func (s *Store) GetEmployee(_ context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return nil, leave.ErrEmployeeNotFound
	}
	return &e, nil
}

func (s *Store) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.employeesLocked(), nil
}

func (s *Store) employeesLocked() []leave.Employee {
	out := make([]leave.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) CreateRequest(_ context.Context, r leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[r.ID]; exists {
		return leave.ErrDuplicateID
	}
	s.requests[r.ID] = copyRequest(r)
	return nil
}

func (s *Store) GetRequest(_ context.Context, id leave.RequestID) (*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, leave.ErrRequestNotFound
	}
	r = copyRequest(r)
	return &r, nil
}

func (s *Store) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requestsLocked(f), nil
}

func (s *Store) requestsLocked(f leave.RequestFilter) []leave.Request {
	out := make([]leave.Request, 0, len(s.requests))
	for _, r := range s.requests {
		if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, copyRequest(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// copyRequest detaches the Decision pointer from the stored value.
func copyRequest(r leave.Request) leave.Request {
	if r.Decision != nil {
		dec := *r.Decision
		r.Decision = &dec
	}
	return r
}

// =============================================================================
// ANALYSIS RUNS
// =============================================================================

func (s *Store) SaveAnalysisRun(_ context.Context, run leave.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

// ListAnalysisRuns returns the newest runs first. limit <= 0 means all.
func (s *Store) ListAnalysisRuns(_ context.Context, limit int) ([]leave.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]leave.AnalysisRun, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		out = append(out, s.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees = make(map[leave.EmployeeID]leave.Employee)
	s.requests = make(map[leave.RequestID]leave.Request)
	s.runs = nil
	return nil
}

func (s *Store) Close() error { return nil }
