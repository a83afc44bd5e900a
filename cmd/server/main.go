package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	httpAdapter "github.com/WaldoAlejo/punto-cambio-ledger/internal/adapter/http"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/adapter/http/handler"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/adapter/http/middleware"
	postgresRepo "github.com/WaldoAlejo/punto-cambio-ledger/internal/adapter/repository/postgres"
	redisRepo "github.com/WaldoAlejo/punto-cambio-ledger/internal/adapter/repository/redis"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/infrastructure/config"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/infrastructure/eventpublisher"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/infrastructure/logger"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/infrastructure/metrics"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/infrastructure/postgres"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/infrastructure/redis"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	ctx := context.Background()

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Apply pending schema migrations
	if path := migrationsPath(); path != "" {
		if err := postgres.RunMigrations(cfg.DatabaseURL, path); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Str("path", path).Msg("migrations applied")
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	movementRepo := postgresRepo.NewMovementRepository(pool)
	balanceRepo := postgresRepo.NewBalanceRepository(pool)
	anchorRepo := postgresRepo.NewAnchorRepository(pool)
	transferRepo := postgresRepo.NewTransferRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	idGen := postgresRepo.NewULIDGenerator()

	// Prometheus registry backing the /metrics endpoint
	m := metrics.New()

	// Initialize use cases
	recorderUC := usecase.NewRecorderUseCase(txManager, balanceRepo, movementRepo, outboxRepo, idGen, cache).
		WithRetrier(postgresRepo.NewRetrier()).
		WithMetrics(m)
	balanceUC := usecase.NewBalanceUseCase(balanceRepo, movementRepo, anchorRepo, cache).
		WithMetrics(m)
	movementUC := usecase.NewMovementUseCase(movementRepo)
	anchorUC := usecase.NewAnchorUseCase(txManager, anchorRepo, auditRepo, outboxRepo, recorderUC, idGen)
	reconciliationUC := usecase.NewReconciliationUseCase(balanceRepo, movementRepo, anchorRepo, auditRepo, outboxRepo, txManager, recorderUC, anchorUC, idGen).
		WithMetrics(m)
	if tolerance, err := decimal.NewFromString(cfg.DriftTolerance); err == nil {
		reconciliationUC = reconciliationUC.WithTolerance(tolerance)
	} else {
		log.Warn().Str("value", cfg.DriftTolerance).Msg("invalid DRIFT_TOLERANCE, using default")
	}
	chainUC := usecase.NewChainUseCase(txManager, balanceRepo, movementRepo, anchorRepo, auditRepo, recorderUC, idGen).
		WithMetrics(m)
	reversalUC := usecase.NewReversalUseCase(txManager, transferRepo, movementRepo, outboxRepo, recorderUC, idGen).
		WithMetrics(m)

	// Initialize handlers
	movementHandler := handler.NewMovementHandler(recorderUC, movementUC, reversalUC)
	balanceHandler := handler.NewBalanceHandler(balanceUC)
	anchorHandler := handler.NewAnchorHandler(anchorUC)
	transferHandler := handler.NewTransferHandler(reversalUC)
	reconciliationHandler := handler.NewReconciliationHandler(reconciliationUC)
	chainHandler := handler.NewChainHandler(chainUC)
	auditHandler := handler.NewAuditHandler(auditRepo)
	healthHandler := handler.NewHealthHandler(pool, redisClient)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		MovementHandler:       movementHandler,
		BalanceHandler:        balanceHandler,
		AnchorHandler:         anchorHandler,
		TransferHandler:       transferHandler,
		ReconciliationHandler: reconciliationHandler,
		ChainHandler:          chainHandler,
		AuditHandler:          auditHandler,
		HealthHandler:         healthHandler,
		IdempotencyStore:      idempotencyStore,
		RateLimiter:           rateLimiter,
	})

	requestLogging := middleware.NewLoggingMiddleware(log.Logger)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      requestLogging.Wrap(router),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	// Start outbox publisher
	publisherCtx, stopPublisher := context.WithCancel(ctx)
	defer stopPublisher()

	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  eventpublisher.NewLogPublisher(slog.Default()),
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxPollInterval,
		Retention:  cfg.OutboxRetention,
		Metrics:    m,
	})
	go func() {
		if err := publisher.Start(publisherCtx); err != nil && publisherCtx.Err() == nil {
			log.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	// Drop idle per-IP limiters periodically
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-publisherCtx.Done():
				return
			case <-ticker.C:
				rateLimiter.Prune(10 * time.Minute)
			}
		}
	}()

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	stopPublisher()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// migrationsPath returns the migrations directory, or "" to skip
// startup migrations entirely.
func migrationsPath() string {
	if path, ok := os.LookupEnv("MIGRATIONS_PATH"); ok {
		return path
	}
	return "migrations"
}
