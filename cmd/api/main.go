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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/drivinghours/internal/api"
	"example.com/drivinghours/internal/app"
	"example.com/drivinghours/internal/auth"
	"example.com/drivinghours/internal/config"
	"example.com/drivinghours/internal/domain"
	"example.com/drivinghours/internal/observability"
	"example.com/drivinghours/internal/outbox"
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	calendar, err := cfg.Calendar()
	if err != nil {
		return err
	}
	backend, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()

	var dispatcher *outbox.Dispatcher
	if backend.Pool != nil {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		dispatcher = outbox.NewDispatcher(
			outbox.NewPostgresStore(backend.Pool),
			producer,
			outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL),
			outbox.DispatcherConfig{PollInterval: cfg.OutboxPollInterval, BatchSize: cfg.OutboxBatchSize},
			logger,
		)
		go dispatcher.Start(dispatchCtx)
	}

	service := domain.NewService(backend.Store, calendar, domain.WithLogger(logger))

	mux := http.NewServeMux()
	api.NewHandler(service, api.WithLogger(logger)).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	handler := httptransport.LogRequests(logger, httptransport.CORS(cfg.CORSAllowedOrigin, authMiddleware.Wrap(mux)))
	server := httptransport.NewServer(httptransport.ServerConfig{Address: cfg.HTTPAddress}, handler)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api listening",
			slog.String("address", cfg.HTTPAddress),
			slog.String("store", cfg.StoreDriver),
			slog.String("timezone", cfg.ComplianceTimezone),
			slog.String("version", app.BuildVersion()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}

	cancelDispatch()
	if dispatcher != nil {
		dispatcher.Wait()
	}
	return nil
}
