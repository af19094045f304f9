package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findback/matcher/internal/models"
	"github.com/findback/matcher/internal/observability"
	"github.com/findback/matcher/pkg/cache"
)

type recordingPoolCacheMetrics struct {
	mu       sync.Mutex
	outcomes []string
	sizes    []int
}

func (r *recordingPoolCacheMetrics) RecordLookup(_ context.Context, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingPoolCacheMetrics) RecordPoolSize(_ context.Context, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sizes = append(r.sizes, size)
}

func newPoolCache(t *testing.T) *cache.LoaderCache[string, ActivePoolSnapshot] {
	t.Helper()

	poolCache, err := cache.NewLoaderCache[string, ActivePoolSnapshot](1, time.Minute, func(s string) string { return s })
	require.NoError(t, err)

	return poolCache
}

func TestCachingListingsRepo(t *testing.T) {
	ctx := context.Background()

	inner := &memListings{}
	a := inner.add(newListing(models.ListingStatusLost, "keys", "keys")).ID
	b := inner.add(newListing(models.ListingStatusFound, "keys", "keys")).ID

	metrics := &recordingPoolCacheMetrics{}
	repo := NewCachingListingsRepository(inner, newPoolCache(t), metrics)

	withoutA, err := repo.GetActivePool(ctx, a)
	require.NoError(t, err)
	require.Len(t, withoutA, 1)
	assert.Equal(t, b, withoutA[0].ID)

	withoutB, err := repo.GetActivePool(ctx, b)
	require.NoError(t, err)
	require.Len(t, withoutB, 1)
	assert.Equal(t, a, withoutB[0].ID)

	all, err := repo.GetActivePool(ctx, uuid.Nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.Equal(t, 1, inner.poolCalls, "pool loaded once")
	assert.Equal(t, []string{
		observability.PoolCacheMiss, observability.PoolCacheHit, observability.PoolCacheHit,
	}, metrics.outcomes)
	assert.Equal(t, []int{2}, metrics.sizes)

	withoutA[0].Title = "mutated"

	again, err := repo.GetActivePool(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "keys", again[0].Title, "callers get their own copy")

	got, err := repo.GetByID(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, a, got.ID)
}

func TestCachingListingsRepo_LoadErrorNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &memListings{poolErr: errStoreDown}

	repo := NewCachingListingsRepository(inner, newPoolCache(t), nil)

	_, err := repo.GetActivePool(ctx, uuid.Nil)
	require.ErrorIs(t, err, errStoreDown)

	inner.poolErr = nil

	_, err = repo.GetActivePool(ctx, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.poolCalls)
}

func TestCachingListingsRepo_ReloadsWhenPoolChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("listing created after the snapshot", func(t *testing.T) {
		inner := &memListings{}
		inner.add(newListing(models.ListingStatusLost, "keys", "keys"))

		metrics := &recordingPoolCacheMetrics{}
		repo := NewCachingListingsRepository(inner, newPoolCache(t), metrics)

		_, err := repo.GetActivePool(ctx, uuid.Nil)
		require.NoError(t, err)

		added := inner.add(newListing(models.ListingStatusFound, "keys", "keys", withCreatedOffset(time.Minute))).ID

		pool, err := repo.GetActivePool(ctx, uuid.Nil)
		require.NoError(t, err)
		require.Len(t, pool, 2)
		assert.Equal(t, added, pool[0].ID)
		assert.Equal(t, 2, inner.poolCalls)
		assert.Equal(t, []string{observability.PoolCacheMiss, observability.PoolCacheStale}, metrics.outcomes)
	})

	t.Run("listing resolved after the snapshot", func(t *testing.T) {
		inner := &memListings{}
		kept := inner.add(newListing(models.ListingStatusLost, "keys", "keys")).ID
		gone := inner.add(newListing(models.ListingStatusFound, "keys", "keys")).ID

		repo := NewCachingListingsRepository(inner, newPoolCache(t), nil)

		pool, err := repo.GetActivePool(ctx, uuid.Nil)
		require.NoError(t, err)
		require.Len(t, pool, 2)

		inner.setStatus(gone, models.ListingStatusResolved)

		pool, err = repo.GetActivePool(ctx, uuid.Nil)
		require.NoError(t, err)
		require.Len(t, pool, 1)
		assert.Equal(t, kept, pool[0].ID)
	})
}

func TestCachingListingsRepo_MatchesListingCreatedAfterCacheFill(t *testing.T) {
	ctx := context.Background()

	inner := &memListings{}
	store := newMemMatchStore()
	svc := newTestService(NewCachingListingsRepository(inner, newPoolCache(t), nil), store)

	lost, found := phonePair()

	inner.add(lost)

	summary, err := svc.ProcessListing(ctx, lost.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created, "nothing to match yet")

	inner.add(found)

	summary, err = svc.ProcessListing(ctx, found.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)

	_, ok := store.get(lost.ID, found.ID)
	assert.True(t, ok)
}
