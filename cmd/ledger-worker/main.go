package main

import (
	"context"
	"errors"
	"os"

	"moneytracker/internal/backend"
	"moneytracker/internal/cli"
	applog "moneytracker/internal/log"
	"moneytracker/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Warn("AMQP_URL not set, running the periodic cleanup sweep only")
	}

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
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("Backend close error", applog.FieldError, err.Error())
		}
	}()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := b.Cleanup.Stop(shutdownCtx); err != nil {
			logger.Warn("Cleanup processor did not stop in time", applog.FieldError, err.Error())
		}
	})

	cleanupWorker := worker.NewCleanupWorker(b.Cleanup)

	// Process jobs queued while no worker was listening.
	logger.Info("Performing startup cleanup check...")
	cleanupWorker.StartupCheck(ctx)

	if err := b.Cleanup.Start(ctx); err != nil {
		logger.Error("Failed to start cleanup processor", applog.FieldError, err.Error())
		os.Exit(1)
	}

	if b.Events != nil {
		go func() {
			err := b.Events.ConsumeLedgerEvents(ctx, cleanupWorker.HandleLedgerEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", applog.FieldError, err.Error())
			}
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no broker available")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
