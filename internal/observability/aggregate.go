package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all matcher metric collectors. When metrics are disabled, all fields are nil.
// Components accept the interface they need (MatchingMetrics, PoolCacheMetrics) and handle nil.
type Metrics struct {
	Matching  MatchingMetrics
	PoolCache PoolCacheMetrics
}

// NewMetrics creates MatchingMetrics and PoolCacheMetrics from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	matching, err := NewMatchingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("matching metrics: %w", err)
	}

	poolCache, err := NewPoolCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("pool cache metrics: %w", err)
	}

	return &Metrics{Matching: matching, PoolCache: poolCache}, nil
}
