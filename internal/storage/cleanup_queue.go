package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"moneytracker/internal/core"
)

// EnqueueCleanup records a blob whose deletion must be retried.
func (r *SQLiteRepository) EnqueueCleanup(ctx context.Context, ref string) (int64, error) {
	id, err := r.queries.EnqueueCleanup(ctx, ref, formatTime(r.now()))
	if err != nil {
		return 0, fmt.Errorf("enqueue cleanup: %w", err)
	}
	slog.InfoContext(ctx, "Attachment cleanup enqueued", "cleanup_id", id, "ref", ref)
	return id, nil
}

// ClaimCleanups moves up to limit pending jobs to processing, oldest first.
func (r *SQLiteRepository) ClaimCleanups(ctx context.Context, limit int) ([]core.CleanupJob, error) {
	rows, err := r.queries.ClaimCleanups(ctx, formatTime(r.now()), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("claim cleanups: %w", err)
	}
	jobs := make([]core.CleanupJob, 0, len(rows))
	for _, row := range rows {
		job, err := row.toCore()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (r *SQLiteRepository) ClaimCleanup(ctx context.Context, id int64) (core.CleanupJob, error) {
	row, err := r.queries.ClaimCleanup(ctx, formatTime(r.now()), id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CleanupJob{}, core.ErrNotFound
	}
	if err != nil {
		return core.CleanupJob{}, fmt.Errorf("claim cleanup %d: %w", id, err)
	}
	return row.toCore()
}

func (r *SQLiteRepository) GetCleanup(ctx context.Context, id int64) (core.CleanupJob, error) {
	row, err := r.queries.GetCleanup(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CleanupJob{}, core.ErrNotFound
	}
	if err != nil {
		return core.CleanupJob{}, fmt.Errorf("get cleanup %d: %w", id, err)
	}
	return row.toCore()
}

// AttachmentInUse reports whether any transaction still references ref.
// Object keys are deterministic, so a queued ref can be written again by a
// later upload.
func (r *SQLiteRepository) AttachmentInUse(ctx context.Context, ref string) (bool, error) {
	inUse, err := r.queries.AttachmentInUse(ctx, ref)
	if err != nil {
		return false, fmt.Errorf("check attachment ref: %w", err)
	}
	return inUse, nil
}

func (r *SQLiteRepository) MarkCleanupDone(ctx context.Context, id int64) error {
	if err := r.queries.MarkCleanupDone(ctx, formatTime(r.now()), id); err != nil {
		return fmt.Errorf("mark cleanup done: %w", err)
	}
	return nil
}

// MarkCleanupRetry returns the job to pending, or to failed once it has been
// attempted maxRetries times.
func (r *SQLiteRepository) MarkCleanupRetry(ctx context.Context, id int64, cause string, maxRetries int) error {
	if err := r.queries.MarkCleanupRetry(ctx, int64(maxRetries), cause, formatTime(r.now()), id); err != nil {
		return fmt.Errorf("mark cleanup retry: %w", err)
	}
	slog.WarnContext(ctx, "Attachment cleanup attempt failed", "cleanup_id", id, "error", cause)
	return nil
}

// ResetStaleCleanups returns jobs stuck in processing (crashed worker) to pending.
func (r *SQLiteRepository) ResetStaleCleanups(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := r.now()
	n, err := r.queries.ResetStaleCleanups(ctx, formatTime(now), formatTime(now.Add(-olderThan)))
	if err != nil {
		return 0, fmt.Errorf("reset stale cleanups: %w", err)
	}
	return n, nil
}

// PurgeCleanups deletes finished jobs last touched before olderThan.
func (r *SQLiteRepository) PurgeCleanups(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := r.queries.PurgeCleanups(ctx, formatTime(r.now().Add(-olderThan)))
	if err != nil {
		return 0, fmt.Errorf("purge cleanups: %w", err)
	}
	return n, nil
}

func (row CleanupRow) toCore() (core.CleanupJob, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.CleanupJob{}, fmt.Errorf("parse created_at of cleanup %d: %w", row.ID, err)
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return core.CleanupJob{}, fmt.Errorf("parse updated_at of cleanup %d: %w", row.ID, err)
	}
	return core.CleanupJob{
		ID:        row.ID,
		Ref:       row.Ref,
		Status:    core.CleanupStatus(row.Status),
		Attempts:  int(row.Attempts),
		LastError: row.LastError,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
