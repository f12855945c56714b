package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/MiSArch/shoppingcart/internal/catalog"
	"github.com/MiSArch/shoppingcart/internal/config"
	"github.com/MiSArch/shoppingcart/internal/event"
	handler "github.com/MiSArch/shoppingcart/internal/handler/http"
	"github.com/MiSArch/shoppingcart/internal/repository"
	postgresrepo "github.com/MiSArch/shoppingcart/internal/repository/postgres"
	redisrepo "github.com/MiSArch/shoppingcart/internal/repository/redis"
	"github.com/MiSArch/shoppingcart/internal/service"
	"github.com/MiSArch/shoppingcart/migrations"
	"github.com/MiSArch/shoppingcart/pkg/database"
	"github.com/MiSArch/shoppingcart/pkg/health"
	"github.com/MiSArch/shoppingcart/pkg/httpclient"
	pkgkafka "github.com/MiSArch/shoppingcart/pkg/kafka"
	"github.com/MiSArch/shoppingcart/pkg/tracing"
)

// idempotencyTTL bounds how long consumed event ids are remembered for
// duplicate suppression.
const idempotencyTTL = 24 * time.Hour

// App wires together all dependencies and runs the shoppingcart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool // nil unless the postgres cart backend is selected
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "shoppingcart",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Redis is needed regardless of the cart backend: the variant read model
	// and the consumer idempotency store live here.
	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("host", cfg.RedisHost),
		slog.Int("port", cfg.RedisPort),
		slog.Int("db", cfg.RedisDB),
	)

	// Cart storage backend.
	var (
		repo repository.CartRepository
		pool *pgxpool.Pool
	)
	switch cfg.RepositoryDriver {
	case "postgres":
		pgCfg := database.PostgresConfig{
			Host:            cfg.PostgresHost,
			Port:            cfg.PostgresPort,
			User:            cfg.PostgresUser,
			Password:        cfg.PostgresPass,
			DBName:          cfg.PostgresDB,
			SSLMode:         cfg.PostgresSSL,
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
			MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
		}

		pool, err = database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			rdb.Close()
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		database.RegisterPoolMetrics(pool, "shoppingcart")

		// Run database migrations.
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			rdb.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")

		// Configure slow query logging.
		if cfg.SlowQueryThresholdMs > 0 {
			database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
		}

		repo = postgresrepo.NewCartRepository(pool)
	default:
		repo = redisrepo.NewCartRepository(rdb, time.Duration(cfg.CartTTLHours)*time.Hour)
	}
	logger.Info("cart repository initialized", slog.String("driver", cfg.RepositoryDriver))

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	eventProducer := event.NewProducer(kafkaProducer, logger)

	// Catalog lookups go through a circuit breaker so a catalog outage
	// degrades into fast 503s instead of piling up blocked requests.
	baseClient := httpclient.New(httpclient.Config{
		Timeout:         time.Duration(cfg.CatalogTimeoutSecs) * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    500 * time.Millisecond,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	})

	cbCfg := httpclient.CircuitBreakerConfig{
		Name:         "shoppingcart-catalog",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}
	cbClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger)
	logger.Info("circuit breaker initialized",
		slog.String("name", cbCfg.Name),
		slog.Uint64("max_requests", uint64(cbCfg.MaxRequests)),
		slog.Int("timeout_seconds", cfg.CBTimeout),
		slog.Uint64("min_requests", uint64(cbCfg.MinRequests)),
	)

	// Build the dependency graph.
	readModel := catalog.NewReadModel(rdb)
	resolver := catalog.NewResolver(readModel, cbClient, cfg.CatalogServiceURL,
		time.Duration(cfg.CatalogTimeoutSecs)*time.Second, logger)

	cartService := service.NewCartService(repo, resolver, eventProducer, logger, cfg.SaveRetryAttempts)

	// Kafka event consumers with Redis-backed duplicate suppression and a
	// dead-letter queue for poison messages.
	idempotencyStore := pkgkafka.NewRedisIdempotencyStore(rdb, idempotencyTTL)
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
	consumerHandler := event.NewConsumerHandler(cartService, readModel, logger)
	consumers := event.NewConsumers(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, consumerHandler, idempotencyStore, dlq, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if pool != nil {
		healthHandler.Register("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
	}
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return kafkaProducer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(cartService, healthHandler, cfg, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		pool:           pool,
		producer:       kafkaProducer,
		dlq:            dlq,
		consumers:      consumers,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the Kafka consumers and the HTTP server, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	// Start Kafka consumers.
	for _, consumer := range a.consumers {
		c := consumer
		go func() {
			if err := c.Start(ctx); err != nil {
				a.logger.Error("kafka consumer error", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumers
// 4. Kafka producer and DLQ producer
// 5. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(),
		time.Duration(a.cfg.ShutdownTimeoutSecs)*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka consumers.
	for _, consumer := range a.consumers {
		if err := consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close Kafka producers.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.dlq.Close(); err != nil {
		a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 5. Close storage clients.
	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
