package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
)

type Config struct {
	// HTTP Server
	Port            string
	APIPrefix       string
	ShutdownTimeout time.Duration

	// Auth
	JWTSecret string

	// Database
	SQLiteDBPath string

	// Ledger
	DefaultCurrency     string
	CompensationTimeout time.Duration

	// Attachments
	AttachmentBackend  string
	AttachmentDir      string
	AttachmentMaxBytes int64
	GCSBucket          string
	GCSProjectID       string
	GCSCredentialsFile string

	// AMQP, disabled when the URL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Cleanup worker
	CleanupBatchSize  int
	CleanupInterval   time.Duration
	CleanupMaxRetries int

	// Middleware
	RateLimitPerMinute int
	AlertCacheSize     int

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		APIPrefix:       getEnv("API_PREFIX", "/api"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		JWTSecret: getEnv("JWT_SECRET", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/moneytracker.db"),

		DefaultCurrency:     strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
		CompensationTimeout: getEnvDuration("COMPENSATION_TIMEOUT", 30*time.Second),

		AttachmentBackend:  getEnv("ATTACHMENT_BACKEND", "fs"),
		AttachmentDir:      getEnv("ATTACHMENT_DIR", "./data/attachments"),
		AttachmentMaxBytes: getEnvBytes("ATTACHMENT_MAX_BYTES", 5<<20),
		GCSBucket:          getEnv("GCS_BUCKET", ""),
		GCSProjectID:       getEnv("GCS_PROJECT_ID", ""),
		GCSCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "moneytracker"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		CleanupBatchSize:  getEnvInt("CLEANUP_BATCH_SIZE", 10),
		CleanupInterval:   getEnvDuration("CLEANUP_INTERVAL", 30*time.Second),
		CleanupMaxRetries: getEnvInt("CLEANUP_MAX_RETRIES", 5),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		AlertCacheSize:     getEnvInt("ALERT_CACHE_SIZE", 256),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		add("invalid port '%s': must be a number", c.Port)
	} else if port < 1 || port > 65535 {
		add("invalid port %d: must be between 1 and 65535", port)
	}

	if !strings.HasPrefix(c.APIPrefix, "/") || strings.HasSuffix(c.APIPrefix, "/") {
		add("invalid API prefix '%s': must start with '/' and not end with '/'", c.APIPrefix)
	}

	if c.JWTSecret == "" {
		add("JWT_SECRET is required")
	}

	if c.SQLiteDBPath == "" {
		add("SQLite database path cannot be empty")
	}

	if len(c.DefaultCurrency) != 3 {
		add("invalid default currency '%s': must be a 3-letter code", c.DefaultCurrency)
	}

	switch c.AttachmentBackend {
	case "fs":
		if c.AttachmentDir == "" {
			add("ATTACHMENT_DIR is required for the fs attachment backend")
		}
	case "gcs":
		if c.GCSBucket == "" {
			add("GCS_BUCKET is required for the gcs attachment backend")
		}
		if c.GCSCredentialsFile != "" {
			if _, err := os.Stat(c.GCSCredentialsFile); os.IsNotExist(err) {
				add("Google credentials file does not exist: %s", c.GCSCredentialsFile)
			}
		}
	default:
		add("invalid attachment backend '%s': must be one of [fs gcs]", c.AttachmentBackend)
	}

	if c.AttachmentMaxBytes < 1 {
		add("invalid attachment size limit %d: must be positive", c.AttachmentMaxBytes)
	} else if c.AttachmentMaxBytes > 100<<20 {
		add("invalid attachment size limit %s: must be at most 100 MiB", humanize.IBytes(uint64(c.AttachmentMaxBytes)))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			add("invalid AMQP URL '%s': %v", c.AMQPURL, err)
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			add("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme)
		}
		if c.AMQPExchange == "" {
			add("AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			add("AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.CleanupBatchSize < 1 || c.CleanupBatchSize > 1000 {
		add("invalid cleanup batch size %d: must be between 1 and 1000", c.CleanupBatchSize)
	}
	if c.CleanupInterval < time.Second || c.CleanupInterval > 24*time.Hour {
		add("invalid cleanup interval %v: must be between 1 second and 24 hours", c.CleanupInterval)
	}
	if c.CleanupMaxRetries < 1 {
		add("invalid cleanup max retries %d: must be at least 1", c.CleanupMaxRetries)
	}
	if c.RateLimitPerMinute < 1 {
		add("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute)
	}
	if c.CompensationTimeout <= 0 {
		add("invalid compensation timeout %v: must be positive", c.CompensationTimeout)
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		add("%v", err)
	}

	return result.ErrorOrNil()
}

// ParseLogLevel maps LOG_LEVEL to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s'", s)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBytes accepts plain byte counts or sizes such as "5MiB" or "10 MB".
func getEnvBytes(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := humanize.ParseBytes(value); err == nil {
			return int64(n)
		}
	}
	return defaultValue
}
