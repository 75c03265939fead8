// Package app wires the catalog discovery service together and manages its
// lifecycle.
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

	"github.com/utafrali/catalog-discovery/internal/catalog"
	"github.com/utafrali/catalog-discovery/internal/category"
	"github.com/utafrali/catalog-discovery/internal/config"
	"github.com/utafrali/catalog-discovery/internal/event"
	"github.com/utafrali/catalog-discovery/internal/fallback"
	handler "github.com/utafrali/catalog-discovery/internal/handler/http"
	"github.com/utafrali/catalog-discovery/internal/searchindex"
	pgstore "github.com/utafrali/catalog-discovery/internal/store/postgres"
	"github.com/utafrali/catalog-discovery/pkg/database"
	"github.com/utafrali/catalog-discovery/pkg/health"
	pkgkafka "github.com/utafrali/catalog-discovery/pkg/kafka"
	"github.com/utafrali/catalog-discovery/pkg/tracing"
)

// App wires together all dependencies and runs the catalog service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// The relational store is required; the search index, Redis, and Kafka are
// optional collaborators whose absence degrades behavior instead of
// preventing startup.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "catalog-discovery",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TracingSampleRate,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init postgres pool: %w", err)
	}

	productStore := pgstore.NewProductStore(pool)
	categoryStore := pgstore.NewCategoryStore(pool)

	// Category cache: Redis when configured, in-process otherwise. A Redis
	// that is down at startup degrades to the in-process cache.
	var (
		cache       category.Cache
		redisClient *redis.Client
	)
	if cfg.RedisHost != "" {
		redisClient, err = database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			logger.Warn("redis unreachable, using in-process category cache",
				slog.String("error", err.Error()))
		} else {
			cache = category.NewRedisCache(redisClient, cfg.CategoryCacheTTL)
			logger.Info("redis category cache initialized", slog.String("addr", cfg.Redis().Addr()))
		}
	}
	if cache == nil {
		cache = category.NewMemoryCache(cfg.CategoryCacheTTL)
		logger.Info("in-process category cache initialized",
			slog.Duration("ttl", cfg.CategoryCacheTTL))
	}

	resolver := category.NewResolver(categoryStore, cache)

	indexClient, err := searchindex.New(searchindex.Config{
		Addresses: []string{cfg.ElasticsearchURL},
		IndexName: cfg.ElasticsearchIndex,
		Timeout:   cfg.IndexTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init search index client: %w", err)
	}
	ensureCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := indexClient.EnsureIndex(ensureCtx); err != nil {
		logger.Warn("search index unavailable at startup, serving via fallback until it recovers",
			slog.String("error", err.Error()))
	}
	cancel()

	fallbackEngine := fallback.New(productStore, cfg.FallbackFetchCap)

	catalogService := catalog.NewService(resolver, indexClient, fallbackEngine, cfg.DefaultCurrency, logger)

	// Category change events flush the tree cache. Without brokers the
	// cache relies on its TTL alone.
	var consumers []*pkgkafka.Consumer
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaBrokers[0] != "" {
		pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
		if err := pkgkafka.PingBrokers(pingCtx, cfg.KafkaBrokers); err != nil {
			logger.Warn("kafka brokers unreachable at startup, category cache invalidation delayed until they recover",
				slog.String("error", err.Error()))
		}
		cancelPing()

		eventConsumer := event.NewConsumer(cache, logger)
		for _, topic := range event.Topics() {
			consumers = append(consumers, pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
				Brokers:  cfg.KafkaBrokers,
				GroupID:  cfg.KafkaGroupID,
				Topic:    topic,
				MinBytes: 1,
				MaxBytes: 10e6,
			}, eventConsumer.Handle, logger))
		}
		logger.Info("kafka consumers initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.Int("topic_count", len(event.Topics())),
		)
	}

	// Readiness gates only on the relational store. The index, Redis, and
	// Kafka degrade the service rather than disable it, so their health is
	// observable via logs and metrics but never flips readiness.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	router := handler.NewRouter(catalogService, healthHandler, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		consumers:      consumers,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and Kafka consumers, blocking until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
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

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
