package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/betledger/internal/adapter/http"
	"github.com/iho/betledger/internal/adapter/http/handler"
	"github.com/iho/betledger/internal/adapter/http/middleware"
	"github.com/iho/betledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/betledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/betledger/internal/adapter/repository/redis"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/auth"
	"github.com/iho/betledger/internal/infrastructure/config"
	"github.com/iho/betledger/internal/infrastructure/eventpublisher"
	"github.com/iho/betledger/internal/infrastructure/logger"
	"github.com/iho/betledger/internal/infrastructure/metrics"
	"github.com/iho/betledger/internal/infrastructure/pixgateway"
	"github.com/iho/betledger/internal/infrastructure/postgres"
	"github.com/iho/betledger/internal/infrastructure/qrcode"
	"github.com/iho/betledger/internal/infrastructure/redis"
	"github.com/iho/betledger/internal/infrastructure/utmify"
	"github.com/iho/betledger/internal/usecase"
)

const (
	serviceName  = "betledger"
	qrImageSize  = 256
	limiterSweep = time.Minute
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	rollback := flag.Bool("rollback", false, "revert the most recent migration and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: serviceName,
	})
	log.Logger = appLogger

	if *rollback {
		if err := postgres.RollbackMigration(cfg.Database.URL, cfg.Database.MigrationsPath, appLogger); err != nil {
			appLogger.Fatal().Err(err).Msg("rollback failed")
		}
		return
	}

	if err := run(cfg, *migrateOnly, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, migrateOnly bool, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := usecase.SystemClock{}
	registry := metrics.NewRegistry()
	m := metrics.NewWithRegistry(registry)
	checks := map[string]handler.Pinger{}

	store, closeStore, err := openStorage(ctx, cfg, migrateOnly, m, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	if migrateOnly {
		return nil
	}
	if store.ping != nil {
		checks["postgres"] = store.ping
	}

	idempotency, attributionStore, closeRedis, err := openCaches(ctx, cfg, checks, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	publisher, closePublisher, err := newPublisher(cfg.Kafka, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	gateway, err := newGateway(cfg.Pix, logger)
	if err != nil {
		return err
	}

	var sink usecase.AttributionSink
	if cfg.Attribution.Enabled() {
		client, err := utmify.New(utmify.Config{
			APIToken:    cfg.Attribution.APIToken,
			BaseURL:     cfg.Attribution.BaseURL,
			TrackingURL: cfg.Attribution.TrackingURL,
			PixelID:     cfg.Attribution.PixelID,
			Platform:    cfg.Attribution.Platform,
			IsTest:      cfg.Attribution.IsTest,
		}, nil, clock, logger)
		if err != nil {
			return fmt.Errorf("attribution sink: %w", err)
		}
		sink = client
	} else {
		logger.Warn().Msg("attribution sink not configured, conversions will not be reported")
	}

	// Use cases
	balances := usecase.NewBalanceAccessor(store.users)
	entries := usecase.NewEntryUseCase(store.tx, store.entries, store.outbox, store.idGen, clock, m)
	attribution := usecase.NewAttributionUseCase(sink, attributionStore, store.entries, store.users, clock, usecase.AttributionConfig{
		MaxAttempts:     cfg.Attribution.MaxAttempts,
		Backoff:         cfg.Attribution.Backoff,
		AttemptTimeout:  cfg.Attribution.AttemptTimeout,
		DefaultCampaign: cfg.Attribution.DefaultCampaign,
		DefaultPageURL:  cfg.Attribution.DefaultPageURL,
		Async:           cfg.Attribution.Async,
	}, m, logger)
	engine := usecase.NewReconciliationUseCase(usecase.ReconciliationConfig{
		TxManager:   store.tx,
		Entries:     store.entries,
		Balances:    balances,
		Outbox:      store.outbox,
		Audit:       store.audit,
		Attribution: attribution,
		Retrier:     store.retrier,
		IDGen:       store.idGen,
		Clock:       clock,
		Metrics:     m,
		Logger:      logger,
	})
	limits := usecase.WithdrawalLimits{
		Min:      config.Decimal(cfg.Limits.WithdrawalMin),
		Max:      config.Decimal(cfg.Limits.WithdrawalMax),
		DailyCap: config.Decimal(cfg.Limits.WithdrawalDailyCap),
		Location: cfg.Location(),
	}
	withdrawals := usecase.NewWithdrawalUseCase(usecase.WithdrawalConfig{
		TxManager: store.tx,
		Users:     store.users,
		Entries:   store.entries,
		Balances:  balances,
		Policy:    usecase.NewWithdrawalPolicy(limits),
		Outbox:    store.outbox,
		Audit:     store.audit,
		Retrier:   store.retrier,
		IDGen:     store.idGen,
		Clock:     clock,
		Metrics:   m,
		Logger:    logger,
	})
	gameplay := usecase.NewGameplayUseCase(entries, engine, store.users, logger)
	admin := usecase.NewAdminUseCase(usecase.AdminConfig{
		TxManager: store.tx,
		Users:     store.users,
		Entries:   store.entries,
		Balances:  balances,
		Outbox:    store.outbox,
		Audit:     store.audit,
		Retrier:   store.retrier,
		IDGen:     store.idGen,
		Clock:     clock,
		Metrics:   m,
		Logger:    logger,
	})
	users := usecase.NewUserUseCase(store.users, store.idGen, clock)
	deposits := usecase.NewDepositUseCase(entries, store.users, gateway, qrcode.NewRenderer(qrImageSize), attribution, usecase.DepositLimits{
		Min:         config.Decimal(cfg.Pix.MinDeposit),
		Max:         config.Decimal(cfg.Pix.MaxDeposit),
		Description: "Deposit via PIX",
	}, clock, m, logger)

	jwt := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiration)
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, m)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		HealthHandler:     handler.NewHealthHandler(checks),
		AuthHandler:       handler.NewAuthHandler(jwt, users),
		DepositHandler:    handler.NewDepositHandler(deposits, entries, logger),
		WebhookHandler:    handler.NewWebhookHandler(engine, logger),
		WithdrawalHandler: handler.NewWithdrawalHandler(withdrawals, engine),
		EntryHandler:      handler.NewEntryHandler(entries),
		GameplayHandler:   handler.NewGameplayHandler(gameplay),
		TrackingHandler:   handler.NewTrackingHandler(attribution),
		AdminHandler:      handler.NewAdminHandler(admin, users),
		AuditHandler:      handler.NewAuditHandler(admin),
		Authenticator:     authenticator(cfg.Auth, jwt, logger),
		IdempotencyStore:  idempotency,
		IdempotencyTTL:    cfg.Server.IdempotencyTTL,
		RateLimiter:       limiter,
		Metrics:           m,
		MetricsHandler:    metrics.Handler(registry),
		CORSOrigins:       cfg.Server.CORSOrigins,
		Logger:            logger,
	})

	outbox := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: store.outbox,
		Publisher:  publisher,
		Metrics:    m,
		Logger:     logger,
		BatchSize:  cfg.Outbox.BatchSize,
		Interval:   cfg.Outbox.PollInterval,
		Retention:  cfg.Outbox.Retention,
		Clock:      clock,
	})
	go func() {
		if err := outbox.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("outbox relay stopped")
		}
	}()
	go limiter.Run(ctx, limiterSweep)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("port", cfg.Server.Port).
			Str("storage", cfg.StorageDriver).
			Bool("auth", cfg.Auth.Enabled).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// storage groups the repositories one backend provides.
type storage struct {
	tx      usecase.TransactionManager
	users   usecase.UserRepository
	entries usecase.EntryRepository
	outbox  usecase.OutboxRepository
	audit   usecase.AuditRepository
	retrier usecase.Retrier
	idGen   usecase.IDGenerator
	ping    handler.Pinger
}

func openStorage(ctx context.Context, cfg *config.Config, migrateOnly bool, m *metrics.Metrics, logger zerolog.Logger) (*storage, func(), error) {
	if cfg.StorageDriver == config.StorageMemory {
		if migrateOnly {
			return nil, nil, errors.New("-migrate requires STORAGE_DRIVER=postgres")
		}
		logger.Warn().Msg("using in-memory storage, data is lost on restart")
		s := memory.NewStore()
		return &storage{
			tx:      s.TxManager(),
			users:   s.Users(),
			entries: s.Entries(),
			outbox:  s.Outbox(),
			audit:   s.Audit(),
			idGen:   postgresRepo.NewULIDGenerator(),
		}, func() {}, nil
	}

	if err := postgres.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath, logger); err != nil {
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	if migrateOnly {
		return &storage{}, func() {}, nil
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:      cfg.Database.URL,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		ConnectTimeout:   cfg.Database.Timeout,
		StatementTimeout: cfg.Database.StatementTimeout,
		ApplicationName:  serviceName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info().Msg("connected to postgres")

	return &storage{
		tx:      postgresRepo.NewTxManager(pool, postgresRepo.WithLockTimeout(cfg.Database.LockTimeout)),
		users:   postgresRepo.NewUserRepository(pool),
		entries: postgresRepo.NewEntryRepository(pool),
		outbox:  postgresRepo.NewOutboxRepository(pool),
		audit:   postgresRepo.NewAuditRepository(pool),
		retrier: postgresRepo.NewRetrier(logger).WithMetrics(m),
		idGen:   postgresRepo.NewULIDGenerator(),
		ping:    handler.PingFunc(pool.Ping),
	}, pool.Close, nil
}

func openCaches(ctx context.Context, cfg *config.Config, checks map[string]handler.Pinger, logger zerolog.Logger) (usecase.IdempotencyStore, usecase.AttributionStore, func(), error) {
	if cfg.Redis.URL == "" {
		logger.Warn().Msg("REDIS_URL not set, idempotency keys and tracking records are process-local")
		return memory.NewIdempotencyStore(), memory.NewAttributionStore(), func() {}, nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		URL:         cfg.Redis.URL,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("connected to redis")
	checks["redis"] = handler.PingFunc(redis.HealthCheck(client))

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("redis close failed")
		}
	}
	return redisRepo.NewIdempotencyStore(client), redisRepo.NewAttributionStore(client), closeFn, nil
}

func newPublisher(cfg config.KafkaConfig, logger zerolog.Logger) (eventpublisher.Publisher, func(), error) {
	if len(cfg.Brokers) == 0 {
		return eventpublisher.NewLogPublisher(logger), func() {}, nil
	}
	p, err := eventpublisher.NewKafkaPublisher(eventpublisher.KafkaConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		ClientID: cfg.ClientID,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("publishing outbox events to kafka")
	return p, closer(p, "kafka producer", logger), nil
}

func newGateway(cfg config.PixConfig, logger zerolog.Logger) (usecase.PaymentGateway, error) {
	if !cfg.Enabled() {
		logger.Warn().Msg("pix gateway not configured, charge generation will fail")
		return unconfiguredGateway{}, nil
	}
	client, err := pixgateway.New(pixgateway.Config{
		BaseURL:      cfg.BaseURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		PostbackURL:  cfg.PostbackURL,
		Timeout:      cfg.Timeout,
	}, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("pix gateway: %w", err)
	}
	return client, nil
}

// unconfiguredGateway rejects every charge so deposits surface a 502
// instead of the process refusing to start.
type unconfiguredGateway struct{}

func (unconfiguredGateway) CreatePixCharge(context.Context, usecase.PixChargeRequest) (*usecase.PixCharge, error) {
	return nil, fmt.Errorf("%w: pix gateway is not configured", domain.ErrUpstreamGateway)
}

func authenticator(cfg config.AuthConfig, verifier middleware.TokenVerifier, logger zerolog.Logger) func(http.Handler) http.Handler {
	if cfg.Enabled {
		return middleware.Authenticate(verifier)
	}
	logger.Warn().Msg("AUTH_ENABLED is false, trusting X-User-ID and X-User-Role headers")
	return middleware.HeaderIdentity
}

func closer(c io.Closer, name string, logger zerolog.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Str("resource", name).Msg("close failed")
		}
	}
}
