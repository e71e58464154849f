// Package ports declares the outbound interfaces the ledger services depend on.
package ports

import (
	"context"
	"time"

	"moneytracker/internal/core"
)

type (
	// TransactionRepository persists transactions. Every method is scoped by
	// owner; a record owned by someone else behaves as missing.
	TransactionRepository interface {
		List(ctx context.Context, ownerID string, f core.Filter, p core.Page) (core.TransactionPage, error)
		Get(ctx context.Context, ownerID, id string) (core.Transaction, error)
		Insert(ctx context.Context, t core.Transaction) error
		Update(ctx context.Context, t core.Transaction) error
		// SetAttachment replaces the attachment ref; nil clears it.
		SetAttachment(ctx context.Context, ownerID, id string, ref *string, updatedAt time.Time) error
		Delete(ctx context.Context, ownerID, id string) error
	}

	// StatsReader aggregates transactions for the stats engine.
	StatsReader interface {
		Summary(ctx context.Context, ownerID string) (core.Summary, error)
		PeriodTotals(ctx context.Context, ownerID string, start, end time.Time) (core.PeriodTotals, error)
	}

	// AttachmentStore owns attachment blobs.
	AttachmentStore interface {
		// EnsureContainer prepares the backing bucket or directory. Idempotent.
		EnsureContainer(ctx context.Context) error
		Upload(ctx context.Context, data []byte, originalName, contentType, ownerID, txID string) (ref string, err error)
		// Delete removes the blob for ref. A missing blob is not an error.
		Delete(ctx context.Context, ref string) error
	}

	// EventPublisher announces ledger changes to other processes.
	EventPublisher interface {
		PublishLedgerEvent(ctx context.Context, e core.LedgerEvent) error
	}

	// BudgetAlertFeed reports budgets that reached a warning or were exceeded.
	BudgetAlertFeed interface {
		GetAlerts(ctx context.Context, ownerID string) ([]core.BudgetAlert, error)
	}

	BudgetRepository interface {
		ListBudgets(ctx context.Context, ownerID string) ([]core.Budget, error)
		InsertBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, ownerID, id string) error
		// CategorySpend sums completed expenses of category in [start, end).
		CategorySpend(ctx context.Context, ownerID, category string, start, end time.Time) (core.Money, error)
	}

	// CleanupQueue persists blob deletions that must be retried.
	CleanupQueue interface {
		EnqueueCleanup(ctx context.Context, ref string) (int64, error)
		ClaimCleanups(ctx context.Context, limit int) ([]core.CleanupJob, error)
		// ClaimCleanup claims one pending job; core.ErrNotFound when it is
		// missing or already taken.
		ClaimCleanup(ctx context.Context, id int64) (core.CleanupJob, error)
		// AttachmentInUse reports whether a live transaction references ref.
		AttachmentInUse(ctx context.Context, ref string) (bool, error)
		MarkCleanupDone(ctx context.Context, id int64) error
		MarkCleanupRetry(ctx context.Context, id int64, cause string, maxRetries int) error
		ResetStaleCleanups(ctx context.Context, olderThan time.Duration) (int64, error)
		PurgeCleanups(ctx context.Context, olderThan time.Duration) (int64, error)
	}
)
