package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"example.com/drivinghours/internal/app"
	"example.com/drivinghours/internal/config"
	"example.com/drivinghours/internal/consumer"
	"example.com/drivinghours/internal/domain"
	"example.com/drivinghours/internal/observability"
	httptransport "example.com/drivinghours/internal/transport/http"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := observability.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	calendar, err := cfg.Calendar()
	if err != nil {
		logger.Error("load calendar", slog.Any("error", err))
		os.Exit(1)
	}
	backend, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.Close()

	service := domain.NewService(backend.Store, calendar, domain.WithLogger(logger))
	handler := consumer.NewIngestHandler(service, logger)

	metricsSrv := httptransport.NewMetricsServer(cfg.MetricsAddress)
	go func() {
		logger.Info("consumer metrics listening", slog.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	var wg sync.WaitGroup
	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.KafkaBrokers,
			GroupID:        cfg.ConsumerGroupID,
			Topic:          topic,
			MinBytes:       1e3,
			MaxBytes:       10e6,
			MaxWait:        time.Second,
			CommitInterval: time.Second,
			StartOffset:    kafka.FirstOffset,
		})
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger.With(slog.String("topic", topic))))

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()

			logger.Info("consumer started", slog.String("topic", topic), slog.String("group", cfg.ConsumerGroupID))
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", slog.String("topic", topic), slog.Any("error", err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("consumer shutdown requested")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", slog.Any("error", err))
	}
}
