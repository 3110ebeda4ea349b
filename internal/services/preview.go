package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/ports"
)

// PreviewCalculator computes what a closure would contain if generated now,
// without writing anything. It shares its aggregation with the generator:
// previewing immediately before generating yields the persisted values.
type PreviewCalculator struct {
	closures ports.ClosureStore
	records  ports.RecordStore
	now      func() time.Time
}

func NewPreviewCalculator(closures ports.ClosureStore, records ports.RecordStore, now func() time.Time) *PreviewCalculator {
	if now == nil {
		now = time.Now
	}
	return &PreviewCalculator{closures: closures, records: records, now: now}
}

// Preview builds the snapshot for (owner, period, criterion) as of call time.
func (p *PreviewCalculator) Preview(ctx context.Context, ownerID string, period core.Period, criterion core.Criterion) (core.ClosureSnapshot, error) {
	if err := period.Validate(); err != nil {
		return core.ClosureSnapshot{}, err
	}
	if !criterion.IsValid() {
		return core.ClosureSnapshot{}, core.ErrInvalidCriterion
	}

	records, err := p.records.ListRecords(ctx, ownerID, period)
	if err != nil {
		return core.ClosureSnapshot{}, fmt.Errorf("list records for %s: %w", period, err)
	}

	base, err := liquidityBase(ctx, p.closures, ownerID, period, criterion)
	if err != nil {
		return core.ClosureSnapshot{}, err
	}

	snap := buildSnapshot(ownerID, period, criterion, records, base, p.now())

	slog.DebugContext(ctx, "Computed closure preview",
		"owner", ownerID,
		"period", period.Key(),
		"criterion", string(criterion),
		"real_result_cents", snap.RealResult,
		"lines", len(snap.Lines))

	return snap, nil
}

// liquidityBase is the previous period's liquidity snapshot under the same
// criterion, or zero when that period was never closed.
func liquidityBase(ctx context.Context, closures ports.ClosureStore, ownerID string, period core.Period, criterion core.Criterion) (int64, error) {
	prev, err := closures.FindClosure(ctx, ownerID, period.Previous(), criterion)
	if err != nil {
		return 0, fmt.Errorf("find previous closure: %w", err)
	}
	if prev == nil {
		return 0, nil
	}
	return prev.LiquiditySnapshot, nil
}
