/*
errors.go - Error kinds for the leave engine

ERROR CATEGORIES:
  1. Per-request errors - EmployeeNotFound; the request stays pending and
     the batch carries on
  2. Request validation - InvalidDateRange; the request is rejected with
     this as its reason
  3. Configuration errors - fatal to a whole batch, raised before any
     decision is computed

USAGE:
  if errors.Is(err, leave.ErrConfiguration) {
      // abort the run, nothing was decided
  }
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmployeeNotFound is returned when a request references an employee
	// missing from the snapshot.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrInvalidDateRange is returned when a request ends before it starts.
	ErrInvalidDateRange = errors.New("invalid date range: end date before start date")

	// ErrConfiguration is returned when static policy is malformed or does
	// not cover the data being evaluated.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrRequestNotFound is returned by stores for unknown request ids.
	ErrRequestNotFound = errors.New("request not found")

	// ErrNotPending is returned when deciding a request that already left
	// pending.
	ErrNotPending = errors.New("request is not pending")

	// ErrDuplicateID is returned when creating a record whose id exists.
	ErrDuplicateID = errors.New("duplicate id")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// EvaluationError reports why a single request could not be evaluated.
type EvaluationError struct {
	RequestID  RequestID
	EmployeeID EmployeeID
	Err        error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("request %s (employee %s): %v", e.RequestID, e.EmployeeID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// ConfigError names the configuration entry that is missing or malformed.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) || errors.Is(err, ErrRequestNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrDuplicateID)
}
