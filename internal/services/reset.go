package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/ports"
)

// rollingAverageMonths is the lookback for container averages. Within the
// window only qualifying months (at least one paid occurrence) enter the
// mean; a month with zero occurrences is excluded, not counted as zero.
const rollingAverageMonths = 3

// ResetOptions carries the reset flags. ApplyAverages writes recomputed
// rolling averages back as container quotas; EnforceWindow gates the run on
// the day 1-5 window; Force lifts the pending-items block only.
type ResetOptions struct {
	ApplyAverages bool
	EnforceWindow bool
	Force         bool
}

// ResetEngine performs the end-of-period reset: reactivate recurring items,
// clear paid flags on the closed period's one-off items, recompute rolling
// averages and force everyday containers visible. Every step checks state
// before setting it, so an immediate re-run reports zero counts.
type ResetEngine struct {
	records    ports.RecordStore
	templates  ports.TemplateStore
	containers ports.ContainerStore
	evaluator  *EligibilityEvaluator
	publisher  ports.EventPublisher
	now        func() time.Time
}

func NewResetEngine(records ports.RecordStore, templates ports.TemplateStore, containers ports.ContainerStore, evaluator *EligibilityEvaluator, publisher ports.EventPublisher, now func() time.Time) *ResetEngine {
	if now == nil {
		now = time.Now
	}
	return &ResetEngine{
		records:    records,
		templates:  templates,
		containers: containers,
		evaluator:  evaluator,
		publisher:  publisher,
		now:        now,
	}
}

// Preview reports what Execute would touch, without touching it.
func (e *ResetEngine) Preview(ctx context.Context, ownerID string) (core.ResetPreview, error) {
	closed := core.PreviousPeriod(e.now())

	counts, lastInstallments, err := e.records.CountResettable(ctx, ownerID, closed)
	if err != nil {
		return core.ResetPreview{}, fmt.Errorf("count resettable records: %w", err)
	}

	averagedriven, err := e.containers.ListAverageDriven(ctx, ownerID)
	if err != nil {
		return core.ResetPreview{}, fmt.Errorf("list average-driven containers: %w", err)
	}

	preview := core.ResetPreview{
		ExpensesToReset:      counts.Expense,
		IncomesToReset:       counts.Income,
		LastInstallmentCount: lastInstallments,
	}
	for _, c := range averagedriven {
		avg, err := e.rollingAverage(ctx, c, closed)
		if err != nil {
			return core.ResetPreview{}, err
		}
		if avg.AffectedItemCount == 0 {
			continue
		}
		preview.Averages = append(preview.Averages, avg)
	}

	return preview, nil
}

// Execute runs the reset for the owner's just-closed period and returns the
// per-kind summary of what was actually changed.
func (e *ResetEngine) Execute(ctx context.Context, ownerID string, opts ResetOptions) (core.ResetSummary, error) {
	closed := core.PreviousPeriod(e.now())

	result, _, err := e.evaluator.Check(ctx, ownerID, closed, "", EligibilityOptions{
		Force:         opts.Force,
		EnforceWindow: opts.EnforceWindow,
	})
	if err != nil {
		return core.ResetSummary{}, err
	}
	if !result.Ready() {
		return core.ResetSummary{}, &BlockedError{Result: result}
	}

	var summary core.ResetSummary

	// Step 1: reactivate recurring templates due for the new period.
	// Only templates not already active are affected.
	reactivated, err := e.templates.ReactivateDue(ctx, ownerID)
	if err != nil {
		return core.ResetSummary{}, fmt.Errorf("reactivate recurring templates: %w", err)
	}
	summary.Expense.PeriodicReactivatedCount = reactivated.Expense
	summary.Income.PeriodicReactivatedCount = reactivated.Income

	// Step 2: roll the closed period's paid one-off records into the new
	// month as pending.
	reset, err := e.records.ResetPaidFlags(ctx, ownerID, closed)
	if err != nil {
		return core.ResetSummary{}, fmt.Errorf("reset paid flags: %w", err)
	}
	summary.Expense.MonthlyResetCount = reset.Expense
	summary.Income.MonthlyResetCount = reset.Income

	// Step 3: rolling averages for average-driven containers.
	averagedriven, err := e.containers.ListAverageDriven(ctx, ownerID)
	if err != nil {
		return core.ResetSummary{}, fmt.Errorf("list average-driven containers: %w", err)
	}
	for _, c := range averagedriven {
		avg, err := e.rollingAverage(ctx, c, closed)
		if err != nil {
			return core.ResetSummary{}, err
		}
		if avg.AffectedItemCount == 0 || !opts.ApplyAverages {
			continue
		}
		if err := e.containers.UpdateBudget(ctx, c.ID, avg.AverageValue); err != nil {
			return core.ResetSummary{}, fmt.Errorf("update budget for container %d: %w", c.ID, err)
		}
		if c.Kind == core.KindIncome {
			summary.Income.AveragesUpdatedCount++
		} else {
			summary.Expense.AveragesUpdatedCount++
		}
	}

	// Step 4: everyday containers are always visible in the new period.
	forced, err := e.containers.ForceEverydayVisible(ctx, ownerID)
	if err != nil {
		return core.ResetSummary{}, fmt.Errorf("force everyday visibility: %w", err)
	}
	summary.Expense.ForcedVisibleCount = forced.Expense
	summary.Income.ForcedVisibleCount = forced.Income

	total := summary.Total()
	slog.InfoContext(ctx, "Reset executed",
		"owner", ownerID,
		"closed_period", closed.Key(),
		"periodic_reactivated", total.PeriodicReactivatedCount,
		"monthly_reset", total.MonthlyResetCount,
		"averages_updated", total.AveragesUpdatedCount,
		"forced_visible", total.ForcedVisibleCount,
		"apply_averages", opts.ApplyAverages)

	if e.publisher != nil {
		if err := e.publisher.PublishResetExecuted(ctx, ownerID, closed, summary); err != nil {
			slog.WarnContext(ctx, "Failed to publish reset event",
				"owner", ownerID, "error", err)
		}
	}

	return summary, nil
}

// rollingAverage computes the mean of a container's paid monthly sums over
// the qualifying months inside the lookback window ending at upTo.
func (e *ResetEngine) rollingAverage(ctx context.Context, c core.Container, upTo core.Period) (core.ContainerAverage, error) {
	totals, err := e.records.PaidMonthlyTotals(ctx, c.ID, upTo, rollingAverageMonths)
	if err != nil {
		return core.ContainerAverage{}, fmt.Errorf("paid monthly totals for container %d: %w", c.ID, err)
	}

	avg := core.ContainerAverage{ContainerID: c.ID, ContainerName: c.Name}
	if len(totals) == 0 {
		return avg, nil
	}

	sum := decimal.Zero
	for _, mt := range totals {
		sum = sum.Add(core.Money{Cents: mt.Cents}.Decimal())
		avg.AffectedItemCount += mt.ItemCount
	}
	// Divide by qualifying months only: [100, 200] over two qualifying
	// months averages to 150 even when the third month had no occurrence.
	avg.AverageValue = core.CentsFromDecimal(sum.DivRound(decimal.New(int64(len(totals)), 0), 2))

	return avg, nil
}
