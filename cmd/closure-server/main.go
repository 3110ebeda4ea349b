package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/amqp"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/config"
	apphttp "github.com/Sesiom2704/gapptomobile-v3-sub003/internal/http"
	applog "github.com/Sesiom2704/gapptomobile-v3-sub003/internal/log"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/ports"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/services"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

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

	// Event publishing is optional: without a broker the API still works,
	// the archive worker catches unpublished closures on its sweep.
	var publisher ports.EventPublisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPClosureQueue, cfg.AMQPResetQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, continuing without event publishing", "error", err)
	} else {
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
	}

	evaluator := services.NewEligibilityEvaluator(repo, repo, repo, time.Now)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Preview:   services.NewPreviewCalculator(repo, repo, time.Now),
		Generator: services.NewGenerator(repo, repo, evaluator, publisher, time.Now),
		Corrector: services.NewCorrector(repo),
		Reset:     services.NewResetEngine(repo, repo, repo, evaluator, publisher, time.Now),
		Kpi:       services.NewKpiAggregator(repo),
		Evaluator: evaluator,
		Closures:  repo,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting closure server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
