// Package services implements the closure engine: eligibility gating,
// preview/commit aggregation, reset reconciliation and KPI rollups.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/ports"
)

// EligibilityStatus is the machine-readable outcome of an eligibility check.
type EligibilityStatus string

const (
	StatusReady          EligibilityStatus = "READY"
	StatusBlockedWindow  EligibilityStatus = "BLOCKED_WINDOW"
	StatusBlockedPending EligibilityStatus = "BLOCKED_PENDING"
	StatusBlockedBackend EligibilityStatus = "BLOCKED_BACKEND"
	StatusAlreadyClosed  EligibilityStatus = "ALREADY_CLOSED"
)

// ReasonCode details why a check did not come back READY. Codes are stable
// identifiers, never display text, so clients can localize them.
type ReasonCode string

const (
	ReasonOutsideWindow   ReasonCode = "outside_window"
	ReasonPendingExpenses ReasonCode = "pending_expenses"
	ReasonPendingIncomes  ReasonCode = "pending_incomes"
	ReasonBackendDisabled ReasonCode = "backend_disabled"
	ReasonClosureExists   ReasonCode = "closure_exists"
)

// windowLastDay is the last day of the month on which generation and reset
// may run. The window opens on day 1.
const windowLastDay = 5

// EligibilityInput is the snapshot of state the evaluation runs over.
type EligibilityInput struct {
	DayOfMonth      int
	PendingExpenses int
	PendingIncomes  int
	HasClosure      bool
	CanReset        bool
}

// EligibilityOptions carries the two override flags. They are deliberately
// independent: Force lifts the pending-items block only and never the
// calendar window; EnforceWindow toggles the window check itself.
type EligibilityOptions struct {
	Force         bool
	EnforceWindow bool
}

// EligibilityResult is the outcome plus every reason that applied.
type EligibilityResult struct {
	Status  EligibilityStatus
	Reasons []ReasonCode
}

func (r EligibilityResult) Ready() bool { return r.Status == StatusReady }

// BlockedError wraps a non-READY result as an error for write paths. It is
// a terminal state, not a failure.
type BlockedError struct {
	Result EligibilityResult
}

func (e *BlockedError) Error() string {
	codes := make([]string, len(e.Result.Reasons))
	for i, r := range e.Result.Reasons {
		codes[i] = string(r)
	}
	return fmt.Sprintf("eligibility blocked: %s (%s)", e.Result.Status, strings.Join(codes, ","))
}

func (e *BlockedError) Unwrap() error { return core.ErrEligibilityBlocked }

// Evaluate applies the gating rules to an input snapshot.
//
// The window rule dominates: outside days 1-5 the result is BLOCKED_WINDOW
// no matter what else holds, and Force does not lift it. Inside the window
// the pending rule applies unless Force is set, then an existing closure,
// then the backend kill switch.
func Evaluate(in EligibilityInput, opts EligibilityOptions) EligibilityResult {
	if opts.EnforceWindow && (in.DayOfMonth < 1 || in.DayOfMonth > windowLastDay) {
		return EligibilityResult{
			Status:  StatusBlockedWindow,
			Reasons: []ReasonCode{ReasonOutsideWindow},
		}
	}

	if !opts.Force && (in.PendingExpenses > 0 || in.PendingIncomes > 0) {
		var reasons []ReasonCode
		if in.PendingExpenses > 0 {
			reasons = append(reasons, ReasonPendingExpenses)
		}
		if in.PendingIncomes > 0 {
			reasons = append(reasons, ReasonPendingIncomes)
		}
		return EligibilityResult{Status: StatusBlockedPending, Reasons: reasons}
	}

	if in.HasClosure {
		return EligibilityResult{
			Status:  StatusAlreadyClosed,
			Reasons: []ReasonCode{ReasonClosureExists},
		}
	}

	if !in.CanReset {
		return EligibilityResult{
			Status:  StatusBlockedBackend,
			Reasons: []ReasonCode{ReasonBackendDisabled},
		}
	}

	return EligibilityResult{Status: StatusReady}
}

// EligibilityEvaluator loads the state snapshot from the stores and runs
// Evaluate over it.
type EligibilityEvaluator struct {
	closures ports.ClosureStore
	records  ports.RecordStore
	settings ports.SettingsStore
	now      func() time.Time
}

func NewEligibilityEvaluator(closures ports.ClosureStore, records ports.RecordStore, settings ports.SettingsStore, now func() time.Time) *EligibilityEvaluator {
	if now == nil {
		now = time.Now
	}
	return &EligibilityEvaluator{closures: closures, records: records, settings: settings, now: now}
}

// Check builds the input snapshot for (owner, period, criterion) and
// evaluates it. criterion may be empty for reset checks, in which case the
// existing-closure condition is skipped.
func (e *EligibilityEvaluator) Check(ctx context.Context, ownerID string, period core.Period, criterion core.Criterion, opts EligibilityOptions) (EligibilityResult, EligibilityInput, error) {
	var in EligibilityInput
	in.DayOfMonth = e.now().Day()

	pending, err := e.records.CountPending(ctx, ownerID, period)
	if err != nil {
		return EligibilityResult{}, in, fmt.Errorf("count pending records: %w", err)
	}
	in.PendingExpenses = pending.Expense
	in.PendingIncomes = pending.Income

	if criterion != "" {
		existing, err := e.closures.FindClosure(ctx, ownerID, period, criterion)
		if err != nil {
			return EligibilityResult{}, in, fmt.Errorf("find closure: %w", err)
		}
		in.HasClosure = existing != nil
	}

	allowed, err := e.settings.ResetAllowed(ctx, ownerID)
	if err != nil {
		return EligibilityResult{}, in, fmt.Errorf("read reset flag: %w", err)
	}
	in.CanReset = allowed

	return Evaluate(in, opts), in, nil
}
