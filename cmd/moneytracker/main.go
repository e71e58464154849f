package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"moneytracker/internal/backend"
	"moneytracker/internal/cli"
	apphttp "moneytracker/internal/http"
	applog "moneytracker/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err.Error())
		os.Exit(1)
	}
	b, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err.Error())
		os.Exit(1)
	}

	deps := apphttp.Deps{
		Ledger:           b.Ledger,
		Stats:            b.Stats,
		Budgets:          b.Budgets,
		Alerts:           b.Alerts,
		InvalidateAlerts: b.Alerts.Invalidate,
		DB:               b.Repo,
		Caches:           b.Caches,
		Logger:           logger,
	}
	if b.Files != nil {
		deps.Files = b.Files
	}
	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		APIPrefix:          cfg.APIPrefix,
		JWTSecret:          cfg.JWTSecret,
		MaxUploadBytes:     cfg.AttachmentMaxBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, deps)

	// Configure server timeouts and limits; reads allow for receipt uploads.
	srv.ReadTimeout = 60 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	b.Caches.StartCleanup(10 * time.Minute)

	// Without a broker there is no ledger-worker to hear about failed
	// deletions, so the sweep runs here.
	runCleanup := b.Events == nil
	if runCleanup {
		if err := b.Cleanup.Start(context.Background()); err != nil {
			logger.Error("Failed to start cleanup processor", applog.FieldError, err.Error())
		}
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
		if runCleanup {
			if err := b.Cleanup.Stop(shutdownCtx); err != nil {
				logger.Warn("Cleanup processor did not stop in time", applog.FieldError, err.Error())
			}
		}
		if err := b.Close(); err != nil {
			logger.Error("Backend close error", applog.FieldError, err.Error())
		}
	})

	logger.Info("Starting moneytracker server",
		"port", cfg.Port,
		"api_prefix", cfg.APIPrefix,
		"attachments", cfg.AttachmentBackend,
		"amqp_enabled", b.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
