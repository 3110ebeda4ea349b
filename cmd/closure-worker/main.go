package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/amqp"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/config"
	applog "github.com/Sesiom2704/gapptomobile-v3-sub003/internal/log"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/ports"
	gsheet "github.com/Sesiom2704/gapptomobile-v3-sub003/internal/sheets/google"
	mem "github.com/Sesiom2704/gapptomobile-v3-sub003/internal/sheets/memory"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/storage"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting closure-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Choose archive backend (default: memory).
	var archive ports.ArchiveWriter
	switch cfg.ArchiveBackend {
	case "sheets":
		cli, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		archive = cli
		logger.Info("Initialized Google Sheets archive", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	default:
		archive = mem.New()
		logger.Info("Initialized memory archive")
	}

	archiveWorker := worker.NewArchiveWorker(repo, archive, cfg.ArchiveBatchSize)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// On startup, archive any closures that might have been missed while
	// the worker was down.
	logger.Info("Performing startup archive check...")
	if err := archiveWorker.StartupArchiveCheck(ctx); err != nil {
		logger.Error("Failed startup archive check", "error", err)
		// Don't exit - the sweep retries on its own schedule
	}

	// Closure events redial on broker loss; the sweep below backstops any
	// message lost in between.
	go func() {
		err := amqp.ConsumeClosureGeneratedWithReconnect(ctx, cfg.AMQPURL, cfg.AMQPExchange,
			cfg.AMQPClosureQueue, cfg.AMQPResetQueue,
			func(msg *amqp.ClosureGeneratedMessage) error {
				return archiveWorker.HandleClosureMessage(ctx, msg)
			})
		if err != nil && err != context.Canceled {
			logger.Error("Closure message consumption failed", "error", err)
		}
	}()

	go func() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPClosureQueue, cfg.AMQPResetQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client for reset events", "error", err)
			return
		}
		defer amqpClient.Close()

		err = amqpClient.ConsumeResetExecuted(ctx, func(msg *amqp.ResetExecutedMessage) error {
			return archiveWorker.HandleResetMessage(ctx, msg)
		})
		if err != nil && err != context.Canceled {
			logger.Error("Reset message consumption failed", "error", err)
		}
	}()

	// Periodic sweep for closures whose event never arrived.
	go archiveWorker.RunSweep(ctx, cfg.ArchiveSweepInterval)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give in-flight archive operations a moment to finish
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
