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
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"example.com/drivinghours/internal/app"
	"example.com/drivinghours/internal/config"
	"example.com/drivinghours/internal/domain"
	"example.com/drivinghours/internal/monitor"
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
	sweeper := monitor.NewSweeper(service, backend.Store, backend.Store, cfg.MonitorLookback, logger)

	scheduler := cron.New(cron.WithLocation(calendar.Location()))
	if _, err := monitor.Schedule(ctx, scheduler, cfg.MonitorSchedule, sweeper, 5*time.Minute); err != nil {
		logger.Error("schedule sweep", slog.String("schedule", cfg.MonitorSchedule), slog.Any("error", err))
		os.Exit(1)
	}

	metricsSrv := httptransport.NewMetricsServer(cfg.MetricsAddress)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	// Sweep once at startup so alerts do not wait for the first tick.
	if _, err := sweeper.RunOnce(ctx); err != nil {
		logger.Error("initial sweep failed", slog.Any("error", err))
	}

	scheduler.Start()
	logger.Info("compliance monitor started", slog.String("schedule", cfg.MonitorSchedule), slog.Duration("lookback", cfg.MonitorLookback))

	<-ctx.Done()
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", slog.Any("error", err))
	}
}
