package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moneytracker/internal/config"
	"moneytracker/internal/core"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		SQLiteDBPath:        filepath.Join(dir, "db", "test.db"),
		Attachments:         FileAttachments,
		AttachmentDir:       filepath.Join(dir, "attachments"),
		AttachmentPublic:    "/api/attachments",
		AttachmentMaxBytes:  1 << 20,
		DefaultCurrency:     "EUR",
		CompensationTimeout: 5 * time.Second,
		CleanupBatchSize:    5,
		CleanupInterval:     time.Second,
		CleanupMaxRetries:   3,
		AlertCacheSize:      8,
		AlertCacheTTL:       time.Minute,
	}
}

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		APIPrefix:          "/v1",
		SQLiteDBPath:       "x.db",
		AttachmentBackend:  "gcs",
		GCSBucket:          "receipts",
		AttachmentMaxBytes: 42,
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Attachments != GCSAttachments || cfg.AttachmentPublic != "/v1/attachments" || cfg.GCSBucket != "receipts" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	app.AttachmentBackend = "s3"
	if _, err := FromAppConfig(app); err == nil {
		t.Fatal("expected error for unknown attachment backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"no db", func(c *Config) { c.SQLiteDBPath = "" }, "SQLite"},
		{"no dir", func(c *Config) { c.AttachmentDir = "" }, "attachment directory"},
		{"gcs without bucket", func(c *Config) { c.Attachments = GCSAttachments }, "GCS bucket"},
		{"unknown", func(c *Config) { c.Attachments = "ftp" }, "invalid attachment backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestCreateBackendWiresServices(t *testing.T) {
	ctx := context.Background()
	b, err := NewFactory(nil).CreateBackend(ctx, testConfig(t))
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer b.Close()

	if b.Files == nil || b.Events != nil {
		t.Fatalf("expected file store and no AMQP client, got files=%v events=%v", b.Files, b.Events)
	}
	if err := b.Repo.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	if _, err := b.Budgets.Create(ctx, "owner-1", core.Budget{Category: "Food", Limit: core.Money{Minor: 10000}}); err != nil {
		t.Fatalf("create budget: %v", err)
	}
	alerts, err := b.Alerts.GetAlerts(ctx, "owner-1")
	if err != nil || len(alerts) != 0 {
		t.Fatalf("alerts before spending = %v, %v", alerts, err)
	}

	amount, _ := core.ParseAmount("90")
	req := core.NewTransaction{Type: core.Expense, Amount: amount, Category: "Food"}
	tx, err := b.Ledger.Create(ctx, "owner-1", req, &core.Upload{
		Filename:    "r.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF"),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if tx.Currency != "EUR" || !tx.HasAttachment() {
		t.Fatalf("unexpected transaction %+v", tx)
	}

	// The ledger mutation must have dropped the cached empty alert list.
	alerts, err = b.Alerts.GetAlerts(ctx, "owner-1")
	if err != nil || len(alerts) != 1 || alerts[0].AlertType != core.AlertWarning {
		t.Fatalf("alerts after spending = %v, %v", alerts, err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
