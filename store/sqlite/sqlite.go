/*
Package sqlite provides a SQLite-backed leave.Store.

KEY TABLES:
  employees:       roster records (read-only to the evaluator)
  leave_requests:  requests with their decision columns
  analysis_runs:   one row per batch evaluation

DECISION WRITES:
  ApplyDecisions runs in one transaction and every UPDATE carries
  "AND status = 'pending'", so a request decided by HR between the
  snapshot and the write is left alone. An unknown request id rolls the
  whole transaction back.

SNAPSHOT:
  Snapshot reads employees and requests inside one transaction, so both
  lists come from the same database state.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking. The
  database is opened in WAL mode so readers don't block the writer.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  Use ":memory:" for an in-memory database (tests, demos).

SEE ALSO:
  - leave/store.go: interface definitions
  - store/memory: in-process implementation
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

// Store implements leave.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ leave.Store = (*Store)(nil)

// New opens (and migrates) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		hire_date TEXT NOT NULL,
		department TEXT NOT NULL,
		position TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_department
		ON employees(department);

	-- No foreign key on employee_id: the evaluator must be able to see
	-- requests whose employee record has gone missing.
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days_requested INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		explanation TEXT NOT NULL DEFAULT '',
		decision_outcome TEXT,
		decision_reason TEXT,
		decision_rule TEXT,
		decided_by TEXT,
		decided_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_range
		ON leave_requests(start_date, end_date);

	CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		run_trigger TEXT NOT NULL,
		as_of TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		evaluated INTEGER NOT NULL DEFAULT 0,
		approved INTEGER NOT NULL DEFAULT 0,
		rejected INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		applied INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_analysis_runs_started
		ON analysis_runs(started_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SNAPSHOT + DECISIONS
// =============================================================================

// Snapshot reads all employees and requests in one transaction.
func (s *Store) Snapshot(ctx context.Context) (leave.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return leave.Snapshot{}, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	employees, err := listEmployees(ctx, tx)
	if err != nil {
		return leave.Snapshot{}, err
	}
	requests, err := listRequests(ctx, tx, leave.RequestFilter{})
	if err != nil {
		return leave.Snapshot{}, err
	}
	return leave.Snapshot{
		Requests:  requests,
		Employees: employees,
		TakenAt:   time.Now().UTC(),
	}, nil
}

// ApplyDecisions writes decisions atomically to requests still pending.
func (s *Store) ApplyDecisions(ctx context.Context, updates []leave.DecisionUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	applied := 0
	for _, u := range updates {
		d := u.Decision
		res, err := tx.ExecContext(ctx, `
			UPDATE leave_requests SET
				status = ?, decision_outcome = ?, decision_reason = ?, decision_rule = ?,
				decided_by = ?, decided_at = ?, updated_at = ?
			WHERE id = ? AND status = 'pending'
		`, string(d.Outcome.Status()), string(d.Outcome), d.Reason, string(d.Rule),
			d.DecidedBy, formatTime(d.DecidedAt), now, string(u.RequestID))
		if err != nil {
			return 0, fmt.Errorf("failed to apply decision for %s: %w", u.RequestID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, "SELECT 1 FROM leave_requests WHERE id = ?", string(u.RequestID)).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return 0, fmt.Errorf("request %s: %w", u.RequestID, leave.ErrRequestNotFound)
			}
			if err != nil {
				return 0, err
			}
			continue
		}
		applied += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit decisions: %w", err)
	}
	return applied, nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// SaveEmployee inserts or updates an employee.
func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, hire_date, department, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			hire_date = excluded.hire_date,
			department = excluded.department,
			position = excluded.position
	`, string(e.ID), e.Name, e.HireDate.String(), e.Department, e.Position, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, hire_date, department, position FROM employees WHERE id = ?", string(id))
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, leave.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEmployees returns all employees ordered by id.
func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEmployees(ctx, s.db)
}

func listEmployees(ctx context.Context, q queryer) ([]leave.Employee, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, name, hire_date, department, position FROM employees ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	employees := []leave.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (leave.Employee, error) {
	var e leave.Employee
	var id, hireDate string
	if err := row.Scan(&id, &e.Name, &hireDate, &e.Department, &e.Position); err != nil {
		return leave.Employee{}, err
	}
	e.ID = leave.EmployeeID(id)
	var err error
	if e.HireDate, err = calendar.Parse(hireDate); err != nil {
		return leave.Employee{}, fmt.Errorf("employee %s: %w", id, err)
	}
	return e, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

const requestColumns = `id, employee_id, start_date, end_date, days_requested, status, explanation,
	decision_outcome, decision_reason, decision_rule, decided_by, decided_at, created_at, updated_at`

// CreateRequest inserts a new request. Duplicate ids return ErrDuplicateID.
func (s *Store) CreateRequest(ctx context.Context, r leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var outcome, reason, rule, decidedBy, decidedAt sql.NullString
	if d := r.Decision; d != nil {
		outcome = nullString(string(d.Outcome))
		reason = nullString(d.Reason)
		rule = nullString(string(d.Rule))
		decidedBy = nullString(d.DecidedBy)
		decidedAt = nullString(formatTime(d.DecidedAt))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(r.ID), string(r.EmployeeID), r.StartDate.String(), r.EndDate.String(), r.DaysRequested,
		string(r.Status), r.Explanation, outcome, reason, rule, decidedBy, decidedAt,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return leave.ErrDuplicateID
		}
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

// GetRequest retrieves a request by ID.
func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM leave_requests WHERE id = ?", string(id))
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, leave.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequests returns requests matching f, oldest first.
func (s *Store) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRequests(ctx, s.db, f)
}

func listRequests(ctx context.Context, q queryer, f leave.RequestFilter) ([]leave.Request, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, string(f.EmployeeID))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	query := "SELECT " + requestColumns + " FROM leave_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := []leave.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func scanRequest(row scanner) (leave.Request, error) {
	var (
		r                                           leave.Request
		id, employeeID, start, end, status          string
		createdAt, updatedAt                        string
		outcome, reason, rule, decidedBy, decidedAt sql.NullString
	)
	err := row.Scan(&id, &employeeID, &start, &end, &r.DaysRequested, &status, &r.Explanation,
		&outcome, &reason, &rule, &decidedBy, &decidedAt, &createdAt, &updatedAt)
	if err != nil {
		return leave.Request{}, err
	}

	r.ID = leave.RequestID(id)
	r.EmployeeID = leave.EmployeeID(employeeID)
	r.Status = leave.Status(status)
	if r.StartDate, err = calendar.Parse(start); err != nil {
		return leave.Request{}, fmt.Errorf("request %s: %w", id, err)
	}
	if r.EndDate, err = calendar.Parse(end); err != nil {
		return leave.Request{}, fmt.Errorf("request %s: %w", id, err)
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)

	if outcome.Valid {
		r.Decision = &leave.Decision{
			Outcome:   leave.Outcome(outcome.String),
			Reason:    reason.String,
			Rule:      leave.RuleID(rule.String),
			DecidedBy: decidedBy.String,
			DecidedAt: parseTime(decidedAt.String),
		}
	}
	return r, nil
}

// =============================================================================
// ANALYSIS RUNS
// =============================================================================

// SaveAnalysisRun records a finished run.
func (s *Store) SaveAnalysisRun(ctx context.Context, run leave.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_runs
		(id, run_trigger, as_of, started_at, finished_at, evaluated, approved, rejected, errors, applied, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Trigger, run.AsOf, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.Evaluated, run.Approved, run.Rejected, run.Errors, run.Applied, run.Status, run.Error)
	if err != nil {
		return fmt.Errorf("failed to save analysis run: %w", err)
	}
	return nil
}

// ListAnalysisRuns returns the newest runs first. limit <= 0 means all.
func (s *Store) ListAnalysisRuns(ctx context.Context, limit int) ([]leave.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, run_trigger, as_of, started_at, finished_at, evaluated, approved, rejected,
		errors, applied, status, error FROM analysis_runs ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis runs: %w", err)
	}
	defer rows.Close()

	runs := []leave.AnalysisRun{}
	for rows.Next() {
		var run leave.AnalysisRun
		var started, finished string
		if err := rows.Scan(&run.ID, &run.Trigger, &run.AsOf, &started, &finished, &run.Evaluated,
			&run.Approved, &run.Rejected, &run.Errors, &run.Applied, &run.Status, &run.Error); err != nil {
			return nil, err
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Reset deletes every row. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"leave_requests", "employees", "analysis_runs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is fixed-width so that ORDER BY on the text column is
// chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
