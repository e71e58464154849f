package core

import "time"

// EventKind names a ledger event published on the message bus.
type EventKind string

const (
	EventTransactionCreated EventKind = "transaction.created"
	EventTransactionUpdated EventKind = "transaction.updated"
	EventTransactionDeleted EventKind = "transaction.deleted"
	EventAttachmentCleanup  EventKind = "attachment.cleanup"
)

type LedgerEvent struct {
	Kind          EventKind `json:"kind"`
	TransactionID string    `json:"transaction_id,omitempty"`
	OwnerID       string    `json:"owner_id,omitempty"`
	CleanupID     int64     `json:"cleanup_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CleanupStatus is the state of an attachment cleanup job.
type CleanupStatus string

const (
	CleanupPending    CleanupStatus = "pending"
	CleanupProcessing CleanupStatus = "processing"
	CleanupDone       CleanupStatus = "done"
	CleanupFailed     CleanupStatus = "failed"
)

// CleanupJob is a blob whose deletion failed and must be retried.
type CleanupJob struct {
	ID        int64
	Ref       string
	Status    CleanupStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}
