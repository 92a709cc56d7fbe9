// Package storetest is a conformance suite run against every leave.Store
// implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

// Run executes the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) leave.Store) {
	t.Run("Employees", func(t *testing.T) { testEmployees(t, newStore(t)) })
	t.Run("Requests", func(t *testing.T) { testRequests(t, newStore(t)) })
	t.Run("SnapshotIsCompleteAndDetached", func(t *testing.T) { testSnapshot(t, newStore(t)) })
	t.Run("ApplyDecisionsOnlyTouchesPending", func(t *testing.T) { testApplyDecisions(t, newStore(t)) })
	t.Run("ApplyDecisionsUnknownIDWritesNothing", func(t *testing.T) { testApplyDecisionsAtomic(t, newStore(t)) })
	t.Run("AnalysisRuns", func(t *testing.T) { testRuns(t, newStore(t)) })
	t.Run("Reset", func(t *testing.T) { testReset(t, newStore(t)) })
}

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func employee(id, dept string) leave.Employee {
	return leave.Employee{
		ID: leave.EmployeeID(id), Name: "Name " + id, HireDate: calendar.MustParse("2019-04-01"),
		Department: dept, Position: "Engineer",
	}
}

func request(id, emp string, offset int) leave.Request {
	created := base.Add(time.Duration(offset) * time.Minute)
	return leave.Request{
		ID: leave.RequestID(id), EmployeeID: leave.EmployeeID(emp),
		StartDate: calendar.MustParse("2024-10-07"), EndDate: calendar.MustParse("2024-10-09"),
		DaysRequested: 3, Status: leave.StatusPending, Explanation: "family visit",
		CreatedAt: created, UpdatedAt: created,
	}
}

func decision(o leave.Outcome, rule leave.RuleID) leave.Decision {
	return leave.Decision{
		Outcome: o, Reason: "because", Rule: rule,
		DecidedBy: leave.DeciderEvaluator, DecidedAt: base.Add(time.Hour),
	}
}

func testEmployees(t *testing.T, s leave.Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveEmployee(ctx, employee("e2", "Engineering")))
	require.NoError(t, s.SaveEmployee(ctx, employee("e1", "Accounting")))

	got, err := s.GetEmployee(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, employee("e1", "Accounting"), *got)

	// Save is an upsert.
	moved := employee("e1", "Human Resources")
	require.NoError(t, s.SaveEmployee(ctx, moved))
	got, err = s.GetEmployee(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Human Resources", got.Department)

	all, err := s.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, leave.EmployeeID("e1"), all[0].ID)

	_, err = s.GetEmployee(ctx, "missing")
	assert.ErrorIs(t, err, leave.ErrEmployeeNotFound)
}

func testRequests(t *testing.T, s leave.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateRequest(ctx, request("r2", "e1", 2)))
	require.NoError(t, s.CreateRequest(ctx, request("r1", "e1", 1)))
	require.NoError(t, s.CreateRequest(ctx, request("r3", "e2", 3)))

	err := s.CreateRequest(ctx, request("r1", "e1", 9))
	assert.ErrorIs(t, err, leave.ErrDuplicateID)

	got, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, request("r1", "e1", 1), *got)

	_, err = s.GetRequest(ctx, "nope")
	assert.ErrorIs(t, err, leave.ErrRequestNotFound)

	mine, err := s.ListRequests(ctx, leave.RequestFilter{EmployeeID: "e1"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, leave.RequestID("r1"), mine[0].ID, "ordered by creation time")

	_, err = s.ApplyDecisions(ctx, []leave.DecisionUpdate{{RequestID: "r3", Decision: decision(leave.OutcomeRejected, leave.RuleSummerCap)}})
	require.NoError(t, err)
	rejected, err := s.ListRequests(ctx, leave.RequestFilter{Status: leave.StatusRejected})
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, leave.RequestID("r3"), rejected[0].ID)
	require.NotNil(t, rejected[0].Decision)
	assert.Equal(t, leave.RuleSummerCap, rejected[0].Decision.Rule)
}

func testSnapshot(t *testing.T, s leave.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveEmployee(ctx, employee("e1", "Engineering")))
	require.NoError(t, s.CreateRequest(ctx, request("r1", "e1", 1)))
	require.NoError(t, s.CreateRequest(ctx, request("r2", "ghost", 2)))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Employees, 1)
	assert.Len(t, snap.Requests, 2)
	assert.Len(t, snap.Pending(), 2)
	assert.False(t, snap.TakenAt.IsZero())

	// Writes after the snapshot are not visible in it.
	_, err = s.ApplyDecisions(ctx, []leave.DecisionUpdate{{RequestID: "r1", Decision: decision(leave.OutcomeApproved, leave.RuleAllCriteria)}})
	require.NoError(t, err)
	assert.Len(t, snap.Pending(), 2)
}

func testApplyDecisions(t *testing.T, s leave.Store) {
	// GIVEN: one pending and one manually decided request
	ctx := context.Background()
	require.NoError(t, s.CreateRequest(ctx, request("r1", "e1", 1)))
	require.NoError(t, s.CreateRequest(ctx, request("r2", "e1", 2)))
	manual := decision(leave.OutcomeApproved, leave.RuleManualOverride)
	manual.DecidedBy = "hr-1"
	n, err := s.ApplyDecisions(ctx, []leave.DecisionUpdate{{RequestID: "r2", Decision: manual}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// WHEN: the evaluator tries to decide both
	n, err = s.ApplyDecisions(ctx, []leave.DecisionUpdate{
		{RequestID: "r1", Decision: decision(leave.OutcomeRejected, leave.RuleDepartmentQuota)},
		{RequestID: "r2", Decision: decision(leave.OutcomeRejected, leave.RuleDepartmentQuota)},
	})

	// THEN: only the pending one changes
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	r1, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, r1.Status)
	require.NotNil(t, r1.Decision)
	assert.Equal(t, leave.RuleDepartmentQuota, r1.Decision.Rule)
	assert.True(t, r1.Decision.DecidedAt.Equal(base.Add(time.Hour)))

	r2, err := s.GetRequest(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, r2.Status)
	assert.Equal(t, "hr-1", r2.Decision.DecidedBy)
}

func testApplyDecisionsAtomic(t *testing.T, s leave.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateRequest(ctx, request("r1", "e1", 1)))

	_, err := s.ApplyDecisions(ctx, []leave.DecisionUpdate{
		{RequestID: "r1", Decision: decision(leave.OutcomeApproved, leave.RuleAllCriteria)},
		{RequestID: "missing", Decision: decision(leave.OutcomeApproved, leave.RuleAllCriteria)},
	})
	assert.ErrorIs(t, err, leave.ErrRequestNotFound)

	r1, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, r1.Status)
	assert.Nil(t, r1.Decision)
}

func testRuns(t *testing.T, s leave.Store) {
	ctx := context.Background()
	for i, trigger := range []string{"manual", "scheduled", "manual"} {
		require.NoError(t, s.SaveAnalysisRun(ctx, leave.AnalysisRun{
			ID: string(rune('a' + i)), Trigger: trigger, AsOf: "2024-06-01",
			StartedAt: base.Add(time.Duration(i) * time.Hour), FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Second),
			Evaluated: i, Status: "completed",
		}))
	}

	runs, err := s.ListAnalysisRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID, "newest first")
	assert.Equal(t, "b", runs[1].ID)

	all, err := s.ListAnalysisRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testReset(t *testing.T, s leave.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveEmployee(ctx, employee("e1", "Engineering")))
	require.NoError(t, s.CreateRequest(ctx, request("r1", "e1", 1)))

	require.NoError(t, s.Reset(ctx))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Employees)
	assert.Empty(t, snap.Requests)
}
