package worker

import (
	"context"
	"log/slog"

	"moneytracker/internal/core"
)

// JobRunner runs queued attachment cleanups.
type JobRunner interface {
	ProcessJob(ctx context.Context, id int64) error
	ProcessBatch(ctx context.Context) int
}

// CleanupWorker reacts to ledger events from the message bus. Only
// attachment.cleanup carries work; the other kinds are acknowledged.
type CleanupWorker struct {
	runner JobRunner
}

func NewCleanupWorker(runner JobRunner) *CleanupWorker {
	return &CleanupWorker{runner: runner}
}

// HandleLedgerEvent processes one message. A returned error requeues it.
func (w *CleanupWorker) HandleLedgerEvent(ctx context.Context, e core.LedgerEvent) error {
	switch e.Kind {
	case core.EventAttachmentCleanup:
		if e.CleanupID <= 0 {
			slog.WarnContext(ctx, "Cleanup event without job id, running a sweep instead")
			w.runner.ProcessBatch(ctx)
			return nil
		}
		slog.InfoContext(ctx, "Processing attachment cleanup", "cleanup_id", e.CleanupID)
		return w.runner.ProcessJob(ctx, e.CleanupID)
	default:
		slog.DebugContext(ctx, "Ignoring ledger event",
			"kind", e.Kind,
			"transaction_id", e.TransactionID)
		return nil
	}
}

// StartupCheck drains jobs queued while no worker was listening.
func (w *CleanupWorker) StartupCheck(ctx context.Context) {
	total := 0
	for {
		n := w.runner.ProcessBatch(ctx)
		if n == 0 || ctx.Err() != nil {
			break
		}
		total += n
	}
	slog.InfoContext(ctx, "Startup cleanup check completed", "cleaned", total)
}
