package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/auth"
	"budget/internal/config"
	apphttp "budget/internal/http"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup(slog.LevelInfo)
	logger.Info("Starting budgetd")

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

	// AMQP is optional: without a URL the API runs with events disabled.
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

	authSvc := auth.NewService(cfg.JWTSecret, cfg.TokenTTL)
	expenses := services.NewExpenseService(store, publisher)
	server := apphttp.NewServer(":"+cfg.Port, store, authSvc, expenses)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.ListenAndServe()
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
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
