package backend

import (
	"fmt"
	"time"

	"moneytracker/internal/config"
)

// defaultAlertCacheTTL bounds how stale a cached alert list can get when a
// change slips past invalidation (another process writing the same DB).
const defaultAlertCacheTTL = 5 * time.Minute

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	kind := AttachmentBackend(appConfig.AttachmentBackend)
	if !kind.IsValid() {
		return Config{}, fmt.Errorf("invalid attachment backend in config: %s", appConfig.AttachmentBackend)
	}

	return Config{
		SQLiteDBPath: appConfig.SQLiteDBPath,

		Attachments:        kind,
		AttachmentDir:      appConfig.AttachmentDir,
		AttachmentPublic:   appConfig.APIPrefix + "/attachments",
		AttachmentMaxBytes: appConfig.AttachmentMaxBytes,
		GCSBucket:          appConfig.GCSBucket,
		GCSProjectID:       appConfig.GCSProjectID,
		GCSCredentialsFile: appConfig.GCSCredentialsFile,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		DefaultCurrency:     appConfig.DefaultCurrency,
		CompensationTimeout: appConfig.CompensationTimeout,

		CleanupBatchSize:  appConfig.CleanupBatchSize,
		CleanupInterval:   appConfig.CleanupInterval,
		CleanupMaxRetries: appConfig.CleanupMaxRetries,

		AlertCacheSize: appConfig.AlertCacheSize,
		AlertCacheTTL:  defaultAlertCacheTTL,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required")
	}

	switch c.Attachments {
	case FileAttachments:
		if c.AttachmentDir == "" {
			return fmt.Errorf("attachment directory is required for the fs backend")
		}
	case GCSAttachments:
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("invalid attachment backend: %s", c.Attachments)
	}
	// AMQP is optional, so we don't validate it

	return nil
}
