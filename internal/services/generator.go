package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/ports"
)

// GenerateOptions are the write-path flags. Force lifts the pending-items
// block (never the window); Overwrite replaces an existing closure for the
// same tuple instead of failing with a conflict.
type GenerateOptions struct {
	Force     bool
	Overwrite bool
}

// Generator persists closures. It runs the identical aggregation the
// preview calculator exposes, writes header and lines atomically, and
// always returns the complete persisted header: callers never have to
// re-list closures to find what they just created.
type Generator struct {
	closures  ports.ClosureStore
	records   ports.RecordStore
	evaluator *EligibilityEvaluator
	publisher ports.EventPublisher
	now       func() time.Time
}

func NewGenerator(closures ports.ClosureStore, records ports.RecordStore, evaluator *EligibilityEvaluator, publisher ports.EventPublisher, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		closures:  closures,
		records:   records,
		evaluator: evaluator,
		publisher: publisher,
		now:       now,
	}
}

// Generate closes the period for the owner under the given criterion.
//
// An existing closure fails with ConflictError unless Overwrite is set.
// Any other non-READY eligibility outcome fails with BlockedError carrying
// the reason codes.
func (g *Generator) Generate(ctx context.Context, ownerID string, period core.Period, criterion core.Criterion, opts GenerateOptions) (core.ClosureHeader, error) {
	if strings.TrimSpace(ownerID) == "" {
		return core.ClosureHeader{}, core.ErrEmptyOwner
	}
	if err := period.Validate(); err != nil {
		return core.ClosureHeader{}, err
	}
	if !criterion.IsValid() {
		return core.ClosureHeader{}, core.ErrInvalidCriterion
	}

	result, _, err := g.evaluator.Check(ctx, ownerID, period, criterion, EligibilityOptions{
		Force:         opts.Force,
		EnforceWindow: true,
	})
	if err != nil {
		return core.ClosureHeader{}, err
	}
	switch {
	case result.Status == StatusAlreadyClosed && opts.Overwrite:
		// Replacement requested explicitly; SaveClosure swaps the rows
		// inside one transaction.
	case result.Status == StatusAlreadyClosed:
		return core.ClosureHeader{}, &core.ConflictError{
			OwnerID:   ownerID,
			Period:    period,
			Criterion: criterion,
		}
	case !result.Ready():
		return core.ClosureHeader{}, &BlockedError{Result: result}
	}

	records, err := g.records.ListRecords(ctx, ownerID, period)
	if err != nil {
		return core.ClosureHeader{}, fmt.Errorf("list records for %s: %w", period, err)
	}
	base, err := liquidityBase(ctx, g.closures, ownerID, period, criterion)
	if err != nil {
		return core.ClosureHeader{}, err
	}

	snap := buildSnapshot(ownerID, period, criterion, records, base, g.now())

	header, err := g.closures.SaveClosure(ctx, snap, opts.Overwrite)
	if err != nil {
		return core.ClosureHeader{}, fmt.Errorf("save closure for %s: %w", period, err)
	}

	slog.InfoContext(ctx, "Closure generated",
		"closure_id", header.ID,
		"owner", ownerID,
		"period", period.Key(),
		"criterion", string(criterion),
		"real_result_cents", header.RealResult,
		"result_deviation_cents", header.ResultDeviation,
		"overwrite", opts.Overwrite)

	if g.publisher != nil {
		if err := g.publisher.PublishClosureGenerated(ctx, header.ID, header.Version); err != nil {
			// The closure is already persisted; the archive worker will
			// pick it up on its periodic sweep.
			slog.WarnContext(ctx, "Failed to publish closure event",
				"closure_id", header.ID, "error", err)
		}
	}

	return header, nil
}

// Delete removes a closure and its lines, returning the period to the
// eligible-to-generate state.
func (g *Generator) Delete(ctx context.Context, closureID int64) error {
	if err := g.closures.DeleteClosure(ctx, closureID); err != nil {
		return fmt.Errorf("delete closure %d: %w", closureID, err)
	}
	slog.InfoContext(ctx, "Closure deleted", "closure_id", closureID)
	return nil
}
