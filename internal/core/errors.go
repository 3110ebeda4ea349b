package core

import (
	"errors"
	"fmt"
)

// Sentinel errors, used with errors.Is. Services wrap these with context.
var (
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCriterion = errors.New("invalid criterion")
	ErrEmptyOwner       = errors.New("empty owner")

	// ErrEligibilityBlocked marks a legitimate terminal state, not a
	// failure: the caller asked for something the calendar or pending
	// items currently forbid.
	ErrEligibilityBlocked = errors.New("eligibility blocked")

	// ErrClosureExists is returned when a header already exists for the
	// (owner, period, criterion) tuple and no overwrite was requested.
	ErrClosureExists = errors.New("closure already exists")

	// ErrNotFound is returned for unknown closure or detail line ids.
	ErrNotFound = errors.New("not found")

	// ErrTransient marks a network-level failure that is safe to retry.
	ErrTransient = errors.New("transient error")

	// ErrPersistence marks a server-side write failure. Not safely
	// retryable: callers must re-query state before trying again.
	ErrPersistence = errors.New("persistence error")
)

// ValidationError reports malformed manual-edit input. It is raised before
// any store call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// ConflictError reports a duplicate closure for a period.
type ConflictError struct {
	OwnerID   string
	Period    Period
	Criterion Criterion
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("closure already exists for %s (%s, owner %s)",
		e.Period, e.Criterion, e.OwnerID)
}

func (e *ConflictError) Unwrap() error { return ErrClosureExists }

// NotFoundError reports an unknown closure or detail line id.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// IsRetryable returns true if the operation might succeed if simply
// repeated. Write failures are excluded on purpose: a timed-out write may
// have landed, so the caller must re-list state first.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsConflict reports whether err is a duplicate-closure conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrClosureExists)
}

// IsNotFound reports whether err indicates a missing closure or line.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
