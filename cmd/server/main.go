package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/stockledger/internal/adapter/http"
	"github.com/iho/stockledger/internal/adapter/http/handler"
	"github.com/iho/stockledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/stockledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/stockledger/internal/adapter/repository/redis"
	"github.com/iho/stockledger/internal/infrastructure/config"
	"github.com/iho/stockledger/internal/infrastructure/eventpublisher"
	"github.com/iho/stockledger/internal/infrastructure/logger"
	"github.com/iho/stockledger/internal/infrastructure/metrics"
	"github.com/iho/stockledger/internal/infrastructure/postgres"
	"github.com/iho/stockledger/internal/infrastructure/redis"
	"github.com/iho/stockledger/internal/infrastructure/tracing"
	"github.com/iho/stockledger/internal/usecase"
)

const (
	rateLimitEvictInterval = 10 * time.Minute
	rateLimitIdleTimeout   = 30 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	log.Logger = logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
	})
	zerolog.DefaultContextLogger = &log.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := tracing.Init(tracing.Config{
		ServiceName:    cfg.ServiceName,
		JaegerEndpoint: cfg.JaegerEndpoint,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	m := metrics.New()

	if cfg.MigrateOnStart {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Connect to PostgreSQL
	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	defer cancel()

	pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	go postgres.ReportPoolStats(ctx, pool, m, 15*time.Second)

	// Repositories
	txManager := postgresRepo.NewTxManager(pool, cfg.DatabaseLockTimeout)
	entryRepo := postgresRepo.NewLedgerEntryRepository(pool)
	contractRepo := postgresRepo.NewContractRepository(pool)
	ledgerRepo := postgresRepo.NewLedgerRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()

	var outboxRepo usecase.OutboxRepository = postgresRepo.NewNullOutboxRepository()
	if cfg.OutboxEnabled {
		outboxRepo = postgresRepo.NewOutboxRepository(pool)
	}

	opts := useCaseOptions(cfg, auditRepo, m, log.Logger)

	reservationUC := usecase.NewReservationUseCase(txManager, entryRepo, contractRepo, outboxRepo, idGen, opts...)
	releaseUC := usecase.NewReleaseUseCase(txManager, entryRepo, contractRepo, outboxRepo, idGen, opts...)
	reconciliationUC := usecase.NewReconciliationUseCase(ledgerRepo, opts...)
	auditUC := usecase.NewAuditUseCase(auditRepo)

	// Idempotency keys live in Redis
	var (
		idempotencyStore usecase.IdempotencyStore
		redisPinger      handler.Pinger
	)
	if cfg.IdempotencyEnabled() {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL, cfg.ServiceName)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
		log.Info().Msg("connected to redis")

		idempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
		redisPinger = handler.PingerFunc(redis.Ping(redisClient))
	}

	// Outbox relay
	if cfg.OutboxEnabled {
		relay, closePublisher := newOutboxRelay(cfg, outboxRepo, m)
		defer closePublisher()

		go func() {
			if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("outbox relay stopped")
			}
		}()
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		go rateLimiter.RunEviction(ctx, rateLimitEvictInterval, rateLimitIdleTimeout)
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		ContractHandler:  handler.NewContractHandler(reservationUC, releaseUC),
		LedgerHandler:    handler.NewLedgerHandler(reservationUC, reconciliationUC),
		AuditHandler:     handler.NewAuditHandler(auditUC),
		HealthHandler:    handler.NewHealthHandler(pool, redisPinger),
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      rateLimiter,
		Logger:           log.Logger,
	})

	server := newHTTPServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	return nil
}

func useCaseOptions(cfg *config.Config, auditRepo usecase.AuditRepository, m *metrics.Metrics, logger zerolog.Logger) []usecase.Option {
	opts := []usecase.Option{
		usecase.WithAuditRepository(auditRepo),
		usecase.WithMetrics(m),
		usecase.WithLogger(logger),
	}

	if cfg.RetryEnabled && cfg.RetryMaxAttempts > 1 {
		retrier := postgresRepo.NewRetrier().
			WithMaxRetries(cfg.RetryMaxAttempts - 1).
			WithLogger(logger).
			WithMetrics(m)
		opts = append(opts, usecase.WithRetrier(retrier))
	}

	return opts
}

func newOutboxRelay(cfg *config.Config, outboxRepo usecase.OutboxRepository, m *metrics.Metrics) (*eventpublisher.EventPublisher, func()) {
	var (
		publisher eventpublisher.Publisher = eventpublisher.NewLogPublisher(log.Logger)
		closeFn                            = func() {}
	)

	if cfg.KafkaEnabled() {
		kafkaPublisher := eventpublisher.NewKafkaPublisher(eventpublisher.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		publisher = kafkaPublisher
		closeFn = func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close kafka writer")
			}
		}
	}

	relay := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  publisher,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxPollInterval,
		Retention:  cfg.OutboxRetention,
	})

	return relay, closeFn
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      h,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
}
