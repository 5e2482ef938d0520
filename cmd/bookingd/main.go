package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookflow/internal/api"
	"bookflow/internal/backend"
	"bookflow/internal/config"
	"bookflow/internal/domain"
	"bookflow/internal/events"
	"bookflow/internal/logging"
	"bookflow/internal/metrics"
	"bookflow/internal/notify"
	"bookflow/internal/repository"
	"bookflow/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	redisClient := initRedis(cfg, &logger)
	defer func() { _ = repository.Close(redisClient) }()

	stateRepo := initStateRepository(cfg, redisClient, &logger)
	states := service.NewStateService(stateRepo, &logger)

	backendClient := backend.NewClient(cfg.Backend, &logger)
	if redisClient != nil && cfg.Backend.CacheTTL > 0 {
		backendClient.UseRedisCache(redisClient, time.Duration(cfg.Backend.CacheTTL)*time.Second)
	}

	dispatcher := notify.NewDispatcher(cfg.Notify, &logger)
	eventBus := events.NewEventBus()
	subscribeEventLog(eventBus, &logger)

	pipeline := service.NewPipeline(backendClient, dispatcher, eventBus, &logger)
	wizard := service.NewWizardService(states, backendClient, pipeline, eventBus, &logger)
	lifecycle := service.NewLifecycleService(backendClient, dispatcher, eventBus, &logger)

	httpServer := api.NewHTTPServer(cfg.API, cfg.Sessions, wizard, lifecycle, backendClient, states, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "bookingd").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initStateRepository wires the session store: redis primary with in-memory
// failover, or memory-only when redis is unavailable.
func initStateRepository(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.StateRepository {
	ttl := time.Duration(cfg.Sessions.TTLSeconds) * time.Second
	memory := repository.NewMemoryStateRepository(ttl)

	if redisClient == nil {
		logger.Warn().Msg("using in-memory session store only")
		return memory
	}

	primary := repository.NewRedisStateRepository(redisClient, ttl)
	return repository.NewFailoverStateRepository(primary, memory, logger)
}

func subscribeEventLog(bus *events.EventBus, logger *zerolog.Logger) {
	eventLogger := logger.With().Str("component", "events").Logger()
	for _, eventType := range []string{
		events.EventBookingCreated,
		events.EventConfirmationSent,
		events.EventFormLinkSent,
		events.EventStatusChanged,
		events.EventWizardCompleted,
		events.EventNotificationFailed,
	} {
		bus.Subscribe(eventType, func(e *events.Event) error {
			eventLogger.Info().
				Str("event", e.Type).
				RawJSON("payload", e.Payload).
				Msg("domain event")
			return nil
		})
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("bookingd stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
