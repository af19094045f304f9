package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/findback/matcher/internal/models"
	"github.com/findback/matcher/internal/observability"
	"github.com/findback/matcher/pkg/cache"
)

const activePoolCacheKey = "active"

// FingerprintedListingRepository is a ListingRepository that can summarize the active pool cheaply.
type FingerprintedListingRepository interface {
	ListingRepository
	ActivePoolFingerprint(ctx context.Context) (models.PoolFingerprint, error)
}

// ActivePoolSnapshot is a cached copy of the active pool and the fingerprint read just before it.
type ActivePoolSnapshot struct {
	Listings    []models.Listing
	Fingerprint models.PoolFingerprint
}

// cachingListingsRepo shares one pool query across a burst of matching jobs. Listings are created and
// resolved by other processes, so every cached read is checked against the current fingerprint and
// reloaded when it no longer matches.
type cachingListingsRepo struct {
	inner     FingerprintedListingRepository
	poolCache *cache.LoaderCache[string, ActivePoolSnapshot]
	metrics   observability.PoolCacheMetrics
}

// NewCachingListingsRepository returns a ListingRepository that caches the full active pool and filters
// excludeID per call. GetByID always reads through. metrics may be nil.
func NewCachingListingsRepository(
	inner FingerprintedListingRepository,
	poolCache *cache.LoaderCache[string, ActivePoolSnapshot],
	metrics observability.PoolCacheMetrics,
) ListingRepository {
	return &cachingListingsRepo{
		inner:     inner,
		poolCache: poolCache,
		metrics:   metrics,
	}
}

func (r *cachingListingsRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing by id: %w", err)
	}

	return listing, nil
}

func (r *cachingListingsRepo) GetActivePool(ctx context.Context, excludeID uuid.UUID) ([]models.Listing, error) {
	snapshot, hit, err := r.poolCache.GetWithStats(ctx, activePoolCacheKey, r.load)
	if err != nil {
		return nil, fmt.Errorf("get active pool: %w", err)
	}

	outcome := observability.PoolCacheMiss

	if hit {
		current, err := r.inner.ActivePoolFingerprint(ctx)
		if err != nil {
			return nil, fmt.Errorf("get active pool: %w", err)
		}

		outcome = observability.PoolCacheHit

		if !current.Equal(snapshot.Fingerprint) {
			outcome = observability.PoolCacheStale

			r.poolCache.Invalidate(activePoolCacheKey)

			snapshot, _, err = r.poolCache.GetWithStats(ctx, activePoolCacheKey, r.load)
			if err != nil {
				return nil, fmt.Errorf("reload active pool: %w", err)
			}
		}
	}

	if r.metrics != nil {
		r.metrics.RecordLookup(ctx, outcome)
	}

	// The cached slice is shared; callers get their own copy.
	out := make([]models.Listing, 0, len(snapshot.Listings))
	for _, l := range snapshot.Listings {
		if l.ID != excludeID {
			out = append(out, l)
		}
	}

	return out, nil
}

// load reads the fingerprint before the pool, so a listing written in between makes the snapshot look
// stale (and reload once) rather than fresh while missing the listing.
func (r *cachingListingsRepo) load(ctx context.Context, _ string) (ActivePoolSnapshot, error) {
	fp, err := r.inner.ActivePoolFingerprint(ctx)
	if err != nil {
		return ActivePoolSnapshot{}, err
	}

	pool, err := r.inner.GetActivePool(ctx, uuid.Nil)
	if err != nil {
		return ActivePoolSnapshot{}, err
	}

	if r.metrics != nil {
		r.metrics.RecordPoolSize(ctx, len(pool))
	}

	return ActivePoolSnapshot{Listings: pool, Fingerprint: fp}, nil
}
