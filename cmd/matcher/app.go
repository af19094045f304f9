package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/findback/matcher/internal/config"
	"github.com/findback/matcher/internal/observability"
	"github.com/findback/matcher/internal/repository"
	"github.com/findback/matcher/internal/service"
	"github.com/findback/matcher/pkg/cache"
	"github.com/findback/matcher/pkg/database"
)

const shutdownTimeout = 30 * time.Second

// app holds the wiring shared by the subcommands.
type app struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	listings       *repository.ListingsRepository
	matches        *repository.MatchesRepository
	matching       *service.MatchingService
	metrics        *observability.Metrics
	metricsHandler http.Handler
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// newApp loads config, installs logging and telemetry, connects to Postgres and builds the matching service.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	slog.SetDefault(observability.NewLogger(cfg.SlogLevel()))

	a := &app{cfg: cfg}

	a.meterProvider, a.metricsHandler, err = observability.NewMeterProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	if a.meterProvider != nil {
		otel.SetMeterProvider(a.meterProvider)

		a.metrics, err = observability.NewMetrics(a.meterProvider.Meter(observability.MeterScope))
		if err != nil {
			a.close()

			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	a.tracerProvider, err = observability.NewTracerProvider(ctx, cfg)
	if err != nil {
		a.close()

		return nil, fmt.Errorf("tracing: %w", err)
	}

	if a.tracerProvider != nil {
		otel.SetTracerProvider(a.tracerProvider)
	}

	a.db, err = database.NewPostgresPool(ctx, cfg.DatabaseURL,
		database.WithPoolSize(cfg.DatabaseMaxConns, cfg.DatabaseMinConns),
		database.WithAfterConnect(pgxvec.RegisterTypes),
	)
	if err != nil {
		a.close()

		return nil, fmt.Errorf("database: %w", err)
	}

	a.listings = repository.NewListingsRepository(a.db)
	a.matches = repository.NewMatchesRepository(a.db)

	listingRepo, err := a.listingRepository()
	if err != nil {
		a.close()

		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.RegenerateRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RegenerateRateLimit), 1)
	}

	a.matching = service.NewMatchingService(service.MatchingServiceParams{
		Listings:           listingRepo,
		Matches:            a.matches,
		Policy:             cfg.MatchingPolicy(),
		ScoringConcurrency: cfg.ScoringConcurrency,
		RegenerateLimiter:  limiter,
		Metrics:            a.matchingMetrics(),
		Logger:             slog.Default(),
	})

	return a, nil
}

// listingRepository wraps the listings repository with the active-pool cache when POOL_CACHE_TTL is set.
func (a *app) listingRepository() (service.ListingRepository, error) {
	if a.cfg.PoolCacheTTL <= 0 {
		return a.listings, nil
	}

	poolCache, err := cache.NewLoaderCache[string, service.ActivePoolSnapshot](1, a.cfg.PoolCacheTTL, func(s string) string { return s })
	if err != nil {
		return nil, fmt.Errorf("pool cache: %w", err)
	}

	var poolCacheMetrics observability.PoolCacheMetrics
	if a.metrics != nil {
		poolCacheMetrics = a.metrics.PoolCache
	}

	return service.NewCachingListingsRepository(a.listings, poolCache, poolCacheMetrics), nil
}

func (a *app) matchingMetrics() observability.MatchingMetrics {
	if a.metrics == nil {
		return nil
	}

	return a.metrics.Matching
}

// close releases the pool and flushes telemetry. Safe on a partially built app.
func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := errors.Join(
		observability.ShutdownMeterProvider(ctx, a.meterProvider),
		observability.ShutdownTracerProvider(ctx, a.tracerProvider),
	)
	if err != nil {
		slog.Warn("telemetry shutdown", "error", err)
	}
}
