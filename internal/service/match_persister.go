package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/findback/matcher/internal/huberrors"
	"github.com/findback/matcher/internal/models"
)

// MatchStore is the persistence surface for match rows. Pairs are passed in canonical order.
// Insert returns a ConflictError when a row for the pair already exists.
type MatchStore interface {
	Exists(ctx context.Context, low, high uuid.UUID) (bool, error)
	Insert(ctx context.Context, low, high uuid.UUID, score float64, reasons []string) (uuid.UUID, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// UpsertResult reports what Upsert did. ID is set only when a row was created.
type UpsertResult struct {
	ID      uuid.UUID
	Created bool
}

// MatchPersister writes at most one match row per unordered pair of listings.
type MatchPersister struct {
	store MatchStore
}

// NewMatchPersister creates a MatchPersister over store.
func NewMatchPersister(store MatchStore) *MatchPersister {
	return &MatchPersister{store: store}
}

// Upsert records a match between sourceID and candidateID unless one already exists for the pair,
// in either order. An existing row, including one inserted concurrently, is left untouched.
func (p *MatchPersister) Upsert(
	ctx context.Context, sourceID, candidateID uuid.UUID, score float64, reasons []string,
) (UpsertResult, error) {
	if sourceID == candidateID {
		return UpsertResult{}, huberrors.NewValidationError("matched_listing_id", "a listing cannot match itself")
	}

	key := models.NewPairKey(sourceID, candidateID)

	exists, err := p.store.Exists(ctx, key.Low, key.High)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("check existing match: %w", err)
	}

	if exists {
		return UpsertResult{}, nil
	}

	id, err := p.store.Insert(ctx, key.Low, key.High, score, reasons)
	if err != nil {
		if errors.Is(err, huberrors.ErrConflict) {
			return UpsertResult{}, nil
		}

		return UpsertResult{}, fmt.Errorf("insert match: %w", err)
	}

	return UpsertResult{ID: id, Created: true}, nil
}
