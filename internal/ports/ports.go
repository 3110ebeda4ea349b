// Package ports defines the outbound interfaces the services depend on.
// Storage, messaging and archive adapters implement these; tests substitute
// in-memory fakes.
package ports

import (
	"context"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
)

// KindCounts carries one counter per record kind.
type KindCounts struct {
	Expense int
	Income  int
}

func (c KindCounts) Total() int { return c.Expense + c.Income }

// MonthlyTotal is the paid sum of one container for one month. Only months
// with at least one paid occurrence are ever reported.
type MonthlyTotal struct {
	Period    core.Period
	Cents     int64
	ItemCount int
}

type (
	// ClosureStore persists closure headers and their detail lines.
	ClosureStore interface {
		// ListClosures returns all headers for an owner, most recent first.
		ListClosures(ctx context.Context, ownerID string) ([]core.ClosureHeader, error)
		// ListRecentClosures returns up to limit headers in ascending
		// period order, as the KPI aggregator consumes them.
		ListRecentClosures(ctx context.Context, ownerID string, limit int) ([]core.ClosureHeader, error)
		GetClosure(ctx context.Context, id int64) (core.ClosureHeader, error)
		// FindClosure returns nil when no header exists for the tuple.
		FindClosure(ctx context.Context, ownerID string, period core.Period, criterion core.Criterion) (*core.ClosureHeader, error)
		GetClosureDetails(ctx context.Context, closureID int64) ([]core.ClosureDetailLine, error)
		// SaveClosure writes header and lines as one atomic unit and
		// returns the complete persisted header. With overwrite an
		// existing header for the tuple is replaced in the same
		// transaction; without it the write fails on duplicates.
		SaveClosure(ctx context.Context, snap core.ClosureSnapshot, overwrite bool) (core.ClosureHeader, error)
		DeleteClosure(ctx context.Context, id int64) error
		// UpdateClosureHeader persists a manual correction, guarded by
		// optimistic locking on the header version.
		UpdateClosureHeader(ctx context.Context, header core.ClosureHeader) (core.ClosureHeader, error)
		GetDetailLine(ctx context.Context, lineID int64) (core.ClosureDetailLine, error)
		UpdateDetailLine(ctx context.Context, line core.ClosureDetailLine) (core.ClosureDetailLine, error)
	}

	// RecordStore reads and resets the financial records of a period.
	RecordStore interface {
		ListRecords(ctx context.Context, ownerID string, period core.Period) ([]core.FinancialRecord, error)
		// CountPending returns unresolved records for the period, per kind.
		CountPending(ctx context.Context, ownerID string, period core.Period) (KindCounts, error)
		// CountResettable returns paid one-off counts per kind plus how
		// many recurring occurrences are at their final installment.
		CountResettable(ctx context.Context, ownerID string, period core.Period) (counts KindCounts, lastInstallments int, err error)
		// ResetPaidFlags rolls the closed period's paid one-off records
		// forward: status back to pending, period advanced to the next
		// month. Only rows actually flipped are counted, so a second
		// run reports zero.
		ResetPaidFlags(ctx context.Context, ownerID string, period core.Period) (KindCounts, error)
		// PaidMonthlyTotals returns per-month paid sums for a container
		// over the monthsBack months ending at upTo, skipping months
		// with no paid occurrence. Most recent month first.
		PaidMonthlyTotals(ctx context.Context, containerID int64, upTo core.Period, monthsBack int) ([]MonthlyTotal, error)
	}

	// TemplateStore reactivates recurring templates at reset.
	TemplateStore interface {
		// ReactivateDue marks inactive, unfinished templates active for
		// the new period, counting only rows flipped by the call.
		ReactivateDue(ctx context.Context, ownerID string) (KindCounts, error)
	}

	// ContainerStore manages budget containers.
	ContainerStore interface {
		ListContainers(ctx context.Context, ownerID string) ([]core.Container, error)
		ListAverageDriven(ctx context.Context, ownerID string) ([]core.Container, error)
		// UpdateBudget writes a new quota for an average-driven container.
		UpdateBudget(ctx context.Context, containerID int64, cents int64) error
		// ForceEverydayVisible flips hidden everyday containers visible,
		// counting only rows flipped.
		ForceEverydayVisible(ctx context.Context, ownerID string) (KindCounts, error)
	}

	// SettingsStore reads the backend-level reset kill switch.
	SettingsStore interface {
		ResetAllowed(ctx context.Context, ownerID string) (bool, error)
	}

	// EventPublisher emits domain events after successful writes. A nil
	// publisher is valid: the services degrade to local-only operation.
	EventPublisher interface {
		PublishClosureGenerated(ctx context.Context, closureID, version int64) error
		PublishResetExecuted(ctx context.Context, ownerID string, period core.Period, summary core.ResetSummary) error
	}

	// ArchiveWriter appends closure rows to an external archive.
	ArchiveWriter interface {
		AppendClosure(ctx context.Context, header core.ClosureHeader, lines []core.ClosureDetailLine) (rowRef string, err error)
		AppendResetSummary(ctx context.Context, ownerID string, period core.Period, summary core.ResetSummary) (rowRef string, err error)
	}
)
