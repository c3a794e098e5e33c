/*
errors.go - Centralized error types for the budget engine

PURPOSE:
  All sentinel and structured errors in one place. Nothing here is
  fatal: not-found and validation outcomes return to the caller with a
  status it can display, and persistence failures are notices layered
  on top of an already-applied local change.

CATEGORIES:
  1. Not-found  - operating on a missing record/entry identifier
  2. Persistence - a store write failed after the mirror was updated
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRecordNotFound is returned when a record ID resolves to nothing.
	ErrRecordNotFound = errors.New("record not found")

	// ErrBillingNotFound is returned when a billing-entry ID is absent
	// from the record's list.
	ErrBillingNotFound = errors.New("billing entry not found")

	// ErrAdvanceNotFound is returned when an operation needs an advance
	// and the record has none.
	ErrAdvanceNotFound = errors.New("advance not found")
)

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrBillingNotFound) ||
		errors.Is(err, ErrAdvanceNotFound)
}

// =============================================================================
// PERSISTENCE NOTICES
// =============================================================================

// PersistenceError reports that a store write failed AFTER the local
// mirror was updated. The change is live in memory; only durability is
// in question. Callers surface it as a non-fatal notice, never as a
// rollback.
type PersistenceError struct {
	Op  string // which mutation failed, e.g. "append billings"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v (local state updated)", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is a persistence notice.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
