package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/findback/matcher/internal/huberrors"
	"github.com/findback/matcher/internal/models"
)

var errStoreDown = errors.New("connection refused")

// memListings is an in-memory ListingRepository. Listings are returned newest first.
type memListings struct {
	mu        sync.Mutex
	listings  []models.Listing
	getErr    error
	poolErr   error
	poolCalls int
}

func (m *memListings) add(l models.Listing) *models.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listings = append([]models.Listing{l}, m.listings...)

	return &m.listings[0]
}

func (m *memListings) GetByID(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	for i := range m.listings {
		if m.listings[i].ID == id {
			l := m.listings[i]

			return &l, nil
		}
	}

	return nil, huberrors.NewNotFoundError("listing", "listing not found")
}

func (m *memListings) GetActivePool(_ context.Context, excludeID uuid.UUID) ([]models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.poolCalls++

	if m.poolErr != nil {
		return nil, m.poolErr
	}

	var pool []models.Listing

	for _, l := range m.listings {
		if l.Status.IsActive() && l.ID != excludeID {
			pool = append(pool, l)
		}
	}

	return pool, nil
}

func (m *memListings) ActivePoolFingerprint(context.Context) (models.PoolFingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poolErr != nil {
		return models.PoolFingerprint{}, m.poolErr
	}

	var fp models.PoolFingerprint

	for _, l := range m.listings {
		if !l.Status.IsActive() {
			continue
		}

		fp.Count++

		if l.CreatedAt.After(fp.Newest) {
			fp.Newest = l.CreatedAt
		}
	}

	return fp, nil
}

func (m *memListings) setStatus(id uuid.UUID, status models.ListingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.listings {
		if m.listings[i].ID == id {
			m.listings[i].Status = status
		}
	}
}

type storedMatch struct {
	id      uuid.UUID
	score   float64
	reasons []string
}

// memMatchStore is an in-memory MatchStore enforcing one row per canonical pair.
type memMatchStore struct {
	mu        sync.Mutex
	rows      map[models.PairKey]storedMatch
	failFor   map[uuid.UUID]bool
	existsErr error
	// hideExisting makes Exists always report false so Insert sees the conflict.
	hideExisting bool
	insertDelay  time.Duration
}

func newMemMatchStore() *memMatchStore {
	return &memMatchStore{rows: map[models.PairKey]storedMatch{}, failFor: map[uuid.UUID]bool{}}
}

func (s *memMatchStore) Exists(_ context.Context, low, high uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.existsErr != nil {
		return false, s.existsErr
	}

	if s.hideExisting {
		return false, nil
	}

	_, ok := s.rows[models.PairKey{Low: low, High: high}]

	return ok, nil
}

func (s *memMatchStore) Insert(_ context.Context, low, high uuid.UUID, score float64, reasons []string) (uuid.UUID, error) {
	if s.insertDelay > 0 {
		time.Sleep(s.insertDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFor[low] || s.failFor[high] {
		return uuid.Nil, errStoreDown
	}

	if models.NewPairKey(low, high).Low != low {
		return uuid.Nil, errors.New("non-canonical pair")
	}

	key := models.PairKey{Low: low, High: high}
	if _, ok := s.rows[key]; ok {
		return uuid.Nil, huberrors.NewConflictError("match already exists for pair")
	}

	id := uuid.New()
	s.rows[key] = storedMatch{id: id, score: score, reasons: reasons}

	return id, nil
}

func (s *memMatchStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.rows))
	s.rows = map[models.PairKey]storedMatch{}

	return n, nil
}

func (s *memMatchStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rows)
}

func (s *memMatchStore) get(a, b uuid.UUID) (storedMatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rows[models.NewPairKey(a, b)]

	return m, ok
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type listingOpt func(*models.Listing)

func newListing(status models.ListingStatus, category, title string, opts ...listingOpt) models.Listing {
	l := models.Listing{
		ID:        uuid.New(),
		Status:    status,
		Category:  category,
		Title:     title,
		EventDate: baseTime,
		CreatedAt: baseTime,
	}

	for _, opt := range opts {
		opt(&l)
	}

	return l
}

func withSubcategory(sub string) listingOpt {
	return func(l *models.Listing) { l.Subcategory = sub }
}

func withLocation(loc string) listingOpt {
	return func(l *models.Listing) { l.Location = loc }
}

func withCreatedOffset(d time.Duration) listingOpt {
	return func(l *models.Listing) { l.CreatedAt = baseTime.Add(d) }
}

func withEmbedding(v ...float32) listingOpt {
	return func(l *models.Listing) { l.Embedding = &models.Embedding{Vector: v} }
}
