package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Pool cache lookup outcomes.
const (
	PoolCacheHit   = "hit"
	PoolCacheMiss  = "miss"
	PoolCacheStale = "stale"
)

// PoolCacheMetrics records how the active-pool cache serves matching runs.
type PoolCacheMetrics interface {
	// RecordLookup counts one pool lookup by outcome: hit, miss, or stale (cached but out of date, reloaded).
	RecordLookup(ctx context.Context, outcome string)
	// RecordPoolSize records the number of listings in a freshly loaded snapshot.
	RecordPoolSize(ctx context.Context, size int)
}

type poolCacheMetrics struct {
	lookups  metric.Int64Counter
	listings metric.Int64Gauge
}

// NewPoolCacheMetrics creates PoolCacheMetrics. Returns (nil, nil) when meter is nil.
func NewPoolCacheMetrics(meter metric.Meter) (PoolCacheMetrics, error) {
	if meter == nil {
		//nolint:nilnil // callers check "if metrics != nil"
		return nil, nil
	}

	lookups, err := meter.Int64Counter(MetricNamePoolCacheLookups,
		metric.WithDescription("Active-pool lookups by outcome. A stale lookup found a snapshot whose "+
			"fingerprint no longer matched Postgres and reloaded it."),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pool cache lookups counter: %w", err)
	}

	listings, err := meter.Int64Gauge(MetricNamePoolCacheListings,
		metric.WithDescription("Listings held in the most recently loaded active-pool snapshot."),
		metric.WithUnit("{listing}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pool cache size gauge: %w", err)
	}

	return &poolCacheMetrics{lookups: lookups, listings: listings}, nil
}

func (p *poolCacheMetrics) RecordLookup(ctx context.Context, outcome string) {
	p.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedPoolCacheOutcomes)),
	))
}

func (p *poolCacheMetrics) RecordPoolSize(ctx context.Context, size int) {
	p.listings.Record(ctx, int64(size))
}
