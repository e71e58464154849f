package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"google.golang.org/api/option"

	"moneytracker/internal/amqp"
	"moneytracker/internal/attachments"
	"moneytracker/internal/cache"
	applog "moneytracker/internal/log"
	"moneytracker/internal/ports"
	"moneytracker/internal/services"
	"moneytracker/internal/storage"
)

// ensureContainerTimeout bounds the startup bucket/directory check.
const ensureContainerTimeout = 30 * time.Second

// Backend is the wired application core shared by the server and the worker.
type Backend struct {
	Repo    *storage.SQLiteRepository
	Store   ports.AttachmentStore
	Files   *attachments.FileStore // nil unless the fs backend is used
	Events  *amqp.Client           // nil when AMQP is disabled or unreachable
	Ledger  *services.LedgerService
	Stats   *services.StatsService
	Budgets *services.BudgetService
	Alerts  *cache.AlertFeed
	Caches  *cache.Manager
	Cleanup *services.CleanupProcessor
}

// Close releases the broker connection and the database, reporting every
// failure.
func (b *Backend) Close() error {
	var result *multierror.Error
	if b.Caches != nil {
		b.Caches.Stop()
	}
	if b.Events != nil {
		if err := b.Events.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close AMQP client: %w", err))
		}
	}
	if b.Repo != nil {
		if err := b.Repo.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close SQLite repository: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	b := &Backend{Repo: repo}

	if err := f.createAttachmentStore(ctx, config, b); err != nil {
		_ = b.Close()
		return nil, err
	}

	// Initialize AMQP client (optional)
	var events ports.EventPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without ledger events",
				applog.FieldError, err.Error())
		} else {
			b.Events = client
			events = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	b.Ledger = services.NewLedgerService(repo, b.Store, events, repo, services.LedgerConfig{
		DefaultCurrency:     config.DefaultCurrency,
		Policy:              attachments.NewPolicy(config.AttachmentMaxBytes),
		CompensationTimeout: config.CompensationTimeout,
	})
	b.Stats = services.NewStatsService(repo)
	b.Budgets = services.NewBudgetService(repo)

	b.Alerts = cache.NewAlertFeed(b.Budgets, config.AlertCacheSize, config.AlertCacheTTL)
	b.Caches = cache.NewManager()
	b.Caches.Register(b.Alerts.Cache())
	b.Ledger.OnChange(b.Alerts.Invalidate)

	b.Cleanup = services.NewCleanupProcessor(repo, b.Store, services.CleanupProcessorConfig{
		PollInterval: config.CleanupInterval,
		BatchSize:    config.CleanupBatchSize,
		MaxRetries:   config.CleanupMaxRetries,
	})

	f.logger.Info("Initialized backend",
		"db_path", config.SQLiteDBPath,
		"attachments", config.Attachments.String(),
		"amqp_enabled", b.Events != nil)

	return b, nil
}

// createAttachmentStore builds the configured store and makes sure its
// container exists. A failing check is logged; uploads will report the
// problem themselves.
func (f *DefaultFactory) createAttachmentStore(ctx context.Context, config Config, b *Backend) error {
	switch config.Attachments {
	case GCSAttachments:
		var opts []option.ClientOption
		if config.GCSCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(config.GCSCredentialsFile))
		}
		store, err := attachments.NewGCSStore(ctx, config.GCSBucket, config.GCSProjectID, opts...)
		if err != nil {
			return fmt.Errorf("failed to initialize GCS attachment store: %w", err)
		}
		b.Store = store
	default:
		store := attachments.NewFileStore(config.AttachmentDir, config.AttachmentPublic)
		b.Store = store
		b.Files = store
	}

	ectx, cancel := context.WithTimeout(ctx, ensureContainerTimeout)
	defer cancel()
	if err := b.Store.EnsureContainer(ectx); err != nil {
		f.logger.Error("Attachment container check failed",
			applog.FieldError, err.Error(), "backend", config.Attachments.String())
	} else {
		f.logger.Info("Attachment container ready", "backend", config.Attachments.String())
	}
	return nil
}
