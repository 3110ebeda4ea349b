// Package worker exports persisted closures and reset summaries to the
// external archive. It is driven by broker messages, with a periodic sweep
// over unarchived closures as a backup for lost deliveries.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/amqp"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/ports"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/storage"
)

type ArchiveWorker struct {
	storage   *storage.SQLiteRepository
	archive   ports.ArchiveWriter
	batchSize int
}

func NewArchiveWorker(storage *storage.SQLiteRepository, archive ports.ArchiveWriter, batchSize int) *ArchiveWorker {
	return &ArchiveWorker{
		storage:   storage,
		archive:   archive,
		batchSize: batchSize,
	}
}

// HandleClosureMessage archives one closure referenced by a broker message.
func (w *ArchiveWorker) HandleClosureMessage(ctx context.Context, msg *amqp.ClosureGeneratedMessage) error {
	slog.InfoContext(ctx, "Processing closure message",
		"closure_id", msg.ClosureID,
		"version", msg.Version)

	header, err := w.storage.GetClosure(ctx, msg.ClosureID)
	if err != nil {
		return fmt.Errorf("get closure from storage: %w", err)
	}
	if header.Version != msg.Version {
		// A correction landed after the event was published. Archive the
		// current state; the row carries its own version.
		slog.WarnContext(ctx, "Closure version moved past message",
			"closure_id", msg.ClosureID,
			"message_version", msg.Version,
			"current_version", header.Version)
	}

	return w.archiveClosure(ctx, header)
}

// HandleResetMessage appends the reset summary carried in the message.
func (w *ArchiveWorker) HandleResetMessage(ctx context.Context, msg *amqp.ResetExecutedMessage) error {
	slog.InfoContext(ctx, "Processing reset message",
		"owner", msg.OwnerID,
		"period", msg.Period().Key())

	rowRef, err := w.archive.AppendResetSummary(ctx, msg.OwnerID, msg.Period(), msg.Summary)
	if err != nil {
		return fmt.Errorf("append reset summary: %w", err)
	}

	slog.InfoContext(ctx, "Archived reset summary",
		"owner", msg.OwnerID,
		"period", msg.Period().Key(),
		"row_ref", rowRef)
	return nil
}

func (w *ArchiveWorker) archiveClosure(ctx context.Context, header core.ClosureHeader) error {
	lines, err := w.storage.GetClosureDetails(ctx, header.ID)
	if err != nil {
		return fmt.Errorf("get closure details: %w", err)
	}

	rowRef, err := w.archive.AppendClosure(ctx, header, lines)
	if err != nil {
		// Transient failures stay pending so the sweep retries them;
		// everything else is marked for operator attention.
		if !core.IsRetryable(err) {
			if markErr := w.storage.MarkArchiveError(ctx, header.ID); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark archive error",
					"closure_id", header.ID, "error", markErr)
			}
		}
		return fmt.Errorf("append closure to archive: %w", err)
	}

	if err := w.storage.MarkArchived(ctx, header.ID, rowRef); err != nil {
		return fmt.Errorf("mark closure archived: %w", err)
	}

	slog.InfoContext(ctx, "Archived closure",
		"closure_id", header.ID,
		"period", header.Period.Key(),
		"row_ref", rowRef)
	return nil
}

// ProcessPendingClosures archives closures whose broker message never
// arrived. Called on a ticker.
func (w *ArchiveWorker) ProcessPendingClosures(ctx context.Context) error {
	pending, err := w.storage.ListUnarchivedClosures(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unarchived closures: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing unarchived closures", "count", len(pending))

	for _, header := range pending {
		if err := w.archiveClosure(ctx, header); err != nil {
			slog.ErrorContext(ctx, "Failed to archive closure",
				"closure_id", header.ID, "error", err)
			continue
		}
	}
	return nil
}

// StartupArchiveCheck drains the unarchived backlog once at worker start,
// recovering from downtime with a larger batch.
func (w *ArchiveWorker) StartupArchiveCheck(ctx context.Context) error {
	pending, err := w.storage.ListUnarchivedClosures(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list unarchived closures for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No unarchived closures found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found unarchived closures on startup, processing...",
		"count", len(pending))

	archived := 0
	failed := 0
	for _, header := range pending {
		if err := w.archiveClosure(ctx, header); err != nil {
			slog.ErrorContext(ctx, "Failed to archive closure during startup",
				"closure_id", header.ID, "error", err)
			failed++
			continue
		}
		archived++
	}

	slog.InfoContext(ctx, "Startup archive check completed",
		"total", len(pending),
		"archived", archived,
		"errors", failed)
	return nil
}

// RunSweep ticks ProcessPendingClosures until the context is cancelled.
func (w *ArchiveWorker) RunSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessPendingClosures(ctx); err != nil {
				slog.ErrorContext(ctx, "Archive sweep failed", "error", err)
			}
		}
	}
}
