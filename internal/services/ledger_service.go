package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"moneytracker/internal/attachments"
	"moneytracker/internal/core"
	"moneytracker/internal/ports"
)

// LedgerConfig holds the ledger's tunables.
type LedgerConfig struct {
	DefaultCurrency string
	Policy          attachments.Policy

	// CompensationTimeout bounds rollback and cleanup work that runs after
	// the caller's context may already be gone (default: 30s)
	CompensationTimeout time.Duration
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		DefaultCurrency:     "USD",
		Policy:              attachments.NewPolicy(attachments.DefaultMaxBytes),
		CompensationTimeout: 30 * time.Second,
	}
}

// LedgerService owns transaction records and keeps them consistent with the
// attachment store.
type LedgerService struct {
	repo    ports.TransactionRepository
	store   ports.AttachmentStore
	events  ports.EventPublisher
	cleanup ports.CleanupQueue
	config  LedgerConfig

	onChange func(ownerID string)
	newID    func() string
	now      func() time.Time
}

// NewLedgerService wires the ledger. events and cleanup may be nil.
func NewLedgerService(
	repo ports.TransactionRepository,
	store ports.AttachmentStore,
	events ports.EventPublisher,
	cleanup ports.CleanupQueue,
	config LedgerConfig,
) *LedgerService {
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = "USD"
	}
	if config.Policy.MaxBytes <= 0 {
		config.Policy = attachments.NewPolicy(attachments.DefaultMaxBytes)
	}
	if config.CompensationTimeout <= 0 {
		config.CompensationTimeout = 30 * time.Second
	}
	return &LedgerService{
		repo:    repo,
		store:   store,
		events:  events,
		cleanup: cleanup,
		config:  config,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// OnChange registers a callback run after every successful mutation.
func (s *LedgerService) OnChange(fn func(ownerID string)) {
	s.onChange = fn
}

func (s *LedgerService) List(ctx context.Context, ownerID string, f core.Filter, p core.Page) (core.TransactionPage, error) {
	if err := f.Validate(); err != nil {
		return core.TransactionPage{}, err
	}
	if p.Number < 1 || p.Size < 1 {
		return core.TransactionPage{}, core.NewValidationError("page", "must be a positive integer")
	}
	p.Size = min(p.Size, core.MaxPageSize)
	return s.repo.List(ctx, ownerID, f, p)
}

func (s *LedgerService) Get(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	return s.repo.Get(ctx, ownerID, id)
}

// Create validates the request and the optional upload before touching any
// store, then runs the create saga.
func (s *LedgerService) Create(ctx context.Context, ownerID string, req core.NewTransaction, upload *core.Upload) (core.Transaction, error) {
	if err := req.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.config.Policy.Check(upload); err != nil {
		return core.Transaction{}, err
	}

	now := s.now().UTC()
	tx := req.Build(s.newID(), ownerID, s.config.DefaultCurrency, now)
	tx.Date = tx.Date.UTC()

	saga := newCreateSaga(s, tx, upload)
	created, err := saga.run(ctx)
	if err != nil {
		return core.Transaction{}, err
	}

	s.publish(ctx, core.EventTransactionCreated, created)
	s.changed(ownerID)
	return created, nil
}

// Update applies a partial update. A new upload replaces the previous
// attachment; failing to delete the old blob does not fail the update.
func (s *LedgerService) Update(ctx context.Context, ownerID, id string, patch core.TransactionPatch, upload *core.Upload) (core.Transaction, error) {
	existing, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.config.Policy.Check(upload); err != nil {
		return core.Transaction{}, err
	}

	updated := patch.Apply(existing)
	updated.Date = updated.Date.UTC()
	updated.UpdatedAt = s.now().UTC()

	var (
		oldRef       = refValue(existing.AttachmentRef)
		newRef       string
		oldDeleteErr error
	)
	if upload != nil {
		if oldRef != "" {
			if oldDeleteErr = s.store.Delete(ctx, oldRef); oldDeleteErr != nil {
				slog.WarnContext(ctx, "Failed to delete previous attachment",
					"transaction_id", id, "ref", oldRef, "error", oldDeleteErr)
			}
		}

		newRef, err = s.store.Upload(ctx, upload.Data, upload.Filename, upload.ContentType, ownerID, id)
		if err != nil {
			if oldRef != "" && oldDeleteErr == nil {
				// The old blob is gone; do not leave the record pointing at it.
				cctx, cancel := s.compensationContext(ctx)
				if cerr := s.repo.SetAttachment(cctx, ownerID, id, nil, updated.UpdatedAt); cerr != nil && !errors.Is(cerr, core.ErrNotFound) {
					slog.ErrorContext(ctx, "Failed to clear stale attachment ref",
						"transaction_id", id, "ref", oldRef, "error", cerr)
				}
				cancel()
			}
			return core.Transaction{}, storageError("upload", err)
		}
		updated.AttachmentRef = &newRef
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		if upload != nil {
			s.compensateUpdate(ctx, updated, oldRef, newRef, oldDeleteErr == nil, err)
		}
		return core.Transaction{}, err
	}

	if oldDeleteErr != nil && oldRef != newRef {
		s.scheduleCleanup(ctx, oldRef)
	}

	s.publish(ctx, core.EventTransactionUpdated, updated)
	s.changed(ownerID)
	return updated, nil
}

// compensateUpdate undoes the blob side of a failed update.
func (s *LedgerService) compensateUpdate(ctx context.Context, tx core.Transaction, oldRef, newRef string, oldDeleted bool, cause error) {
	cctx, cancel := s.compensationContext(ctx)
	defer cancel()

	vanished := errors.Is(cause, core.ErrNotFound)
	if vanished || newRef != oldRef {
		if err := s.store.Delete(cctx, newRef); err != nil {
			slog.WarnContext(ctx, "Failed to remove attachment of failed update",
				"transaction_id", tx.ID, "ref", newRef, "error", err)
			s.scheduleCleanup(cctx, newRef)
		}
	}
	if !vanished && oldRef != "" && oldDeleted && newRef != oldRef {
		if err := s.repo.SetAttachment(cctx, tx.OwnerID, tx.ID, nil, tx.UpdatedAt); err != nil {
			slog.ErrorContext(ctx, "Failed to clear stale attachment ref",
				"transaction_id", tx.ID, "ref", oldRef, "error", err)
		}
	}
}

// Delete removes the record, then its attachment. A failed blob deletion is
// logged and queued for retry; the caller still sees success.
func (s *LedgerService) Delete(ctx context.Context, ownerID, id string) error {
	existing, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	if ref := refValue(existing.AttachmentRef); ref != "" {
		cctx, cancel := s.compensationContext(ctx)
		if err := s.store.Delete(cctx, ref); err != nil {
			slog.WarnContext(ctx, "Failed to delete attachment of deleted transaction",
				"transaction_id", id, "ref", ref, "error", err)
			s.scheduleCleanup(cctx, ref)
		}
		cancel()
	}

	s.publish(ctx, core.EventTransactionDeleted, existing)
	s.changed(ownerID)
	return nil
}

// scheduleCleanup persists ref for a later retry and announces it.
func (s *LedgerService) scheduleCleanup(ctx context.Context, ref string) {
	if s.cleanup == nil {
		slog.WarnContext(ctx, "Cleanup queue not available, attachment left orphaned", "ref", ref)
		return
	}
	id, err := s.cleanup.EnqueueCleanup(ctx, ref)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to enqueue attachment cleanup", "ref", ref, "error", err)
		return
	}
	s.publishEvent(ctx, core.LedgerEvent{Kind: core.EventAttachmentCleanup, CleanupID: id, OccurredAt: s.now().UTC()})
}

func (s *LedgerService) publish(ctx context.Context, kind core.EventKind, tx core.Transaction) {
	s.publishEvent(ctx, core.LedgerEvent{
		Kind:          kind,
		TransactionID: tx.ID,
		OwnerID:       tx.OwnerID,
		OccurredAt:    s.now().UTC(),
	})
}

// publishEvent never fails the caller: the record is already persisted.
func (s *LedgerService) publishEvent(ctx context.Context, e core.LedgerEvent) {
	if s.events == nil {
		slog.DebugContext(ctx, "Event publisher not available, skipping ledger event", "kind", e.Kind)
		return
	}
	if err := s.events.PublishLedgerEvent(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", e.Kind, "transaction_id", e.TransactionID, "error", err)
	}
}

func (s *LedgerService) changed(ownerID string) {
	if s.onChange != nil {
		s.onChange(ownerID)
	}
}

// compensationContext keeps request values but ignores the caller's
// cancellation so rollback reaches a terminal state.
func (s *LedgerService) compensationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.config.CompensationTimeout)
}

func refValue(ref *string) string {
	if ref == nil {
		return ""
	}
	return *ref
}

func storageError(op string, err error) error {
	if core.IsStorage(err) {
		return err
	}
	return &core.StorageError{Op: op, Err: err}
}
