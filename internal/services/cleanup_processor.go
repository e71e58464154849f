package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"moneytracker/internal/core"
	"moneytracker/internal/ports"
)

// CleanupProcessorConfig holds configuration for the attachment cleanup processor
type CleanupProcessorConfig struct {
	// PollInterval is how often to check for pending jobs (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of jobs to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of attempts before a job is marked failed (default: 5)
	MaxRetries int

	// StaleAfter is how long a job may sit in processing before it is
	// considered abandoned by a crashed worker (default: 10m)
	StaleAfter time.Duration

	// PurgeInterval is how often finished jobs are purged (default: 1h)
	PurgeInterval time.Duration

	// PurgeAge is how old finished jobs must be before they are purged (default: 24h)
	PurgeAge time.Duration
}

func DefaultCleanupProcessorConfig() CleanupProcessorConfig {
	return CleanupProcessorConfig{
		PollInterval:  30 * time.Second,
		BatchSize:     10,
		MaxRetries:    5,
		StaleAfter:    10 * time.Minute,
		PurgeInterval: 1 * time.Hour,
		PurgeAge:      24 * time.Hour,
	}
}

// CleanupProcessor retries attachment deletions that failed during an
// update or delete.
type CleanupProcessor struct {
	queue  ports.CleanupQueue
	store  ports.AttachmentStore
	config CleanupProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewCleanupProcessor(queue ports.CleanupQueue, store ports.AttachmentStore, config CleanupProcessorConfig) *CleanupProcessor {
	def := DefaultCleanupProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = def.StaleAfter
	}
	if config.PurgeInterval <= 0 {
		config.PurgeInterval = def.PurgeInterval
	}
	if config.PurgeAge <= 0 {
		config.PurgeAge = def.PurgeAge
	}
	return &CleanupProcessor{queue: queue, store: store, config: config}
}

// Start begins the sweep loop. Returns an error if already running.
func (p *CleanupProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("cleanup processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	if n, err := p.queue.ResetStaleCleanups(ctx, p.config.StaleAfter); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale cleanup jobs", "error", err)
	} else if n > 0 {
		slog.InfoContext(ctx, "Reset stale cleanup jobs", "count", n)
	}

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Cleanup processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for it to finish or ctx to expire.
func (p *CleanupProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Cleanup processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Cleanup processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *CleanupProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *CleanupProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	purgeTicker := time.NewTicker(p.config.PurgeInterval)
	defer purgeTicker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-purgeTicker.C:
			p.purge(ctx)
		}
	}
}

// ProcessBatch claims and runs up to BatchSize pending jobs. It returns the
// number of jobs that completed.
func (p *CleanupProcessor) ProcessBatch(ctx context.Context) int {
	jobs, err := p.queue.ClaimCleanups(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to claim cleanup batch", "error", err)
		return 0
	}
	if len(jobs) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing cleanup batch", "count", len(jobs))

	done := 0
	for _, job := range jobs {
		if p.runJob(ctx, job) {
			done++
		}
	}
	return done
}

// ProcessJob runs one job announced on the message bus. A job already taken
// by the sweep or finished earlier is not an error.
func (p *CleanupProcessor) ProcessJob(ctx context.Context, id int64) error {
	job, err := p.queue.ClaimCleanup(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.DebugContext(ctx, "Cleanup job not pending, skipping", "cleanup_id", id)
		return nil
	}
	if err != nil {
		return err
	}
	p.runJob(ctx, job)
	return nil
}

func (p *CleanupProcessor) runJob(ctx context.Context, job core.CleanupJob) bool {
	inUse, err := p.queue.AttachmentInUse(ctx, job.Ref)
	if err != nil {
		p.retry(ctx, job, err)
		return false
	}
	if inUse {
		// A later upload wrote the same key; the blob is live again.
		if err := p.queue.MarkCleanupDone(ctx, job.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark cleanup done", "cleanup_id", job.ID, "error", err)
			return false
		}
		slog.InfoContext(ctx, "Attachment referenced again, skipping cleanup", "cleanup_id", job.ID, "ref", job.Ref)
		return true
	}

	if err := p.store.Delete(ctx, job.Ref); err != nil {
		p.retry(ctx, job, err)
		return false
	}

	if err := p.queue.MarkCleanupDone(ctx, job.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark cleanup done", "cleanup_id", job.ID, "error", err)
		return false
	}
	slog.InfoContext(ctx, "Attachment cleaned up", "cleanup_id", job.ID, "ref", job.Ref)
	return true
}

func (p *CleanupProcessor) retry(ctx context.Context, job core.CleanupJob, err error) {
	if merr := p.queue.MarkCleanupRetry(ctx, job.ID, err.Error(), p.config.MaxRetries); merr != nil {
		slog.ErrorContext(ctx, "Failed to record cleanup failure", "cleanup_id", job.ID, "error", merr)
	}
	if job.Attempts >= p.config.MaxRetries {
		slog.ErrorContext(ctx, "Attachment cleanup failed permanently after max retries",
			"cleanup_id", job.ID, "ref", job.Ref, "attempts", job.Attempts)
	}
}

func (p *CleanupProcessor) purge(ctx context.Context) {
	n, err := p.queue.PurgeCleanups(ctx, p.config.PurgeAge)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to purge finished cleanup jobs", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Purged finished cleanup jobs", "count", n)
	}
}
