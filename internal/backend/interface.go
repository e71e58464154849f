package backend

import (
	"context"
	"time"
)

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens storage, the attachment store and the optional
	// message broker, and wires the services on top of them.
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// Config holds configuration for backend creation
type Config struct {
	SQLiteDBPath string

	// Attachment store
	Attachments        AttachmentBackend
	AttachmentDir      string
	AttachmentPublic   string
	AttachmentMaxBytes int64
	GCSBucket          string
	GCSProjectID       string
	GCSCredentialsFile string

	// Messaging, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	DefaultCurrency     string
	CompensationTimeout time.Duration

	CleanupBatchSize  int
	CleanupInterval   time.Duration
	CleanupMaxRetries int

	AlertCacheSize int
	AlertCacheTTL  time.Duration
}

// AttachmentBackend selects where receipts are stored.
type AttachmentBackend string

const (
	FileAttachments AttachmentBackend = "fs"
	GCSAttachments  AttachmentBackend = "gcs"
)

// String implements fmt.Stringer
func (b AttachmentBackend) String() string {
	return string(b)
}

// IsValid returns true if the attachment backend is known
func (b AttachmentBackend) IsValid() bool {
	switch b {
	case FileAttachments, GCSAttachments:
		return true
	default:
		return false
	}
}
