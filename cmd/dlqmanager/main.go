package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"example.com/drivinghours/internal/config"
	"example.com/drivinghours/internal/observability"
	"example.com/drivinghours/internal/outbox"
	"example.com/drivinghours/internal/persistence/postgres"
	httptransport "example.com/drivinghours/internal/transport/http"
)

const dlqBatchSize = 50

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := observability.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("connect to postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, logger)

	metricsSrv := httptransport.NewMetricsServer(cfg.MetricsAddress)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	logger.Info("dlq manager started",
		slog.Duration("interval", cfg.DLQPollInterval),
		slog.Int("max_retries", cfg.DLQMaxRetries),
	)

	ticker := time.NewTicker(cfg.DLQPollInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			processed, err := manager.RunOnce(ctx, dlqBatchSize)
			if err != nil {
				logger.Error("dlq pass failed", slog.Int("processed", processed), slog.Any("error", err))
			} else if processed > 0 {
				logger.Info("dlq pass finished", slog.Int("processed", processed))
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", slog.Any("error", err))
	}
}
