/*
store.go - Persistence contracts for the Request Store collaborator

PURPOSE:
  The evaluator never talks to a database. The analysis pipeline reads one
  Snapshot, evaluates it in memory, and writes decisions back through
  DecisionWriter. The HTTP API additionally needs plain CRUD.

SNAPSHOT CONTRACT:
  Snapshot() returns every request (any status) and every employee from a
  single consistent read. Implementations backed by SQL use one read
  transaction.

DECISION CONTRACT:
  ApplyDecisions() is all-or-nothing and only touches rows that are still
  pending. It returns how many rows were actually decided; rows that left
  pending in the meantime (a concurrent run or an HR override) are skipped.

IMPLEMENTATIONS:
  - store/memory: in-process, for tests and demos
  - store/sqlite: mattn/go-sqlite3
  - store/postgres: jackc/pgx pool
*/
package leave

import (
	"context"
	"time"
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is one consistent read of all requests and employees.
type Snapshot struct {
	Requests  []Request
	Employees []Employee
	TakenAt   time.Time
}

// Pending returns the pending requests in the snapshot.
func (s Snapshot) Pending() []Request {
	var out []Request
	for _, r := range s.Requests {
		if r.IsPending() {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

type SnapshotReader interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

type DecisionWriter interface {
	ApplyDecisions(ctx context.Context, updates []DecisionUpdate) (int, error)
}

type EmployeeStore interface {
	SaveEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// RequestFilter narrows ListRequests. Zero values match everything.
type RequestFilter struct {
	EmployeeID EmployeeID
	Status     Status
}

type RequestStore interface {
	CreateRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, id RequestID) (*Request, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]Request, error)
}

// AnalysisRun records one evaluation pass for audit and the HR screen.
type AnalysisRun struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	AsOf       string    `json:"as_of"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Evaluated  int       `json:"evaluated"`
	Approved   int       `json:"approved"`
	Rejected   int       `json:"rejected"`
	Errors     int       `json:"errors"`
	Applied    int       `json:"applied"`
	Status     string    `json:"status"` // completed, failed
	Error      string    `json:"error,omitempty"`
}

type RunStore interface {
	SaveAnalysisRun(ctx context.Context, run AnalysisRun) error
	ListAnalysisRuns(ctx context.Context, limit int) ([]AnalysisRun, error)
}

// Store is everything the server needs from persistence.
type Store interface {
	SnapshotReader
	DecisionWriter
	EmployeeStore
	RequestStore
	RunStore

	// Reset deletes all data. Demo scenarios only.
	Reset(ctx context.Context) error
	Close() error
}
