package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"budget/internal/amqp"
	"budget/internal/config"
	applog "budget/internal/log"
	"budget/internal/scheduler"
	"budget/internal/services"
	"budget/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup(slog.LevelInfo)
	logger.Info("Starting recurring-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "backend", cfg.StoreBackend)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("Store initialized", "backend", cfg.StoreBackend)

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		p, err := amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("Failed to connect to AMQP, events disabled", "error", err)
		} else {
			defer p.Close()
			publisher = p
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	}

	processor := services.NewRecurringProcessor(store, publisher).WithCatchUp(cfg.CatchUp)

	sched := scheduler.New(cfg.TickInterval, processor.ProcessDue)
	sched.Start(ctx)
	logger.Info("Scheduler started",
		"tick_interval", cfg.TickInterval.String(),
		"catch_up", cfg.CatchUp)

	<-ctx.Done()
	logger.Info("Shutdown signal received, waiting for in-flight sweep...")
	sched.Stop()
	logger.Info("Worker stopped gracefully")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreBackend {
	case "postgres":
		return storage.NewPostgresStore(ctx, cfg.PostgresDSN)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return storage.NewSQLiteStore(cfg.SQLiteDBPath)
	}
}
