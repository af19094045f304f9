package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findback/matcher/internal/huberrors"
	"github.com/findback/matcher/internal/models"
)

// MatchesRepository handles data access for the matches table.
// Callers pass pairs in canonical order (see models.NewPairKey); the table rejects any other order.
type MatchesRepository struct {
	db *pgxpool.Pool
}

// NewMatchesRepository creates a new matches repository.
func NewMatchesRepository(db *pgxpool.Pool) *MatchesRepository {
	return &MatchesRepository{db: db}
}

// Exists reports whether a match row exists for the canonical pair (low, high).
func (r *MatchesRepository) Exists(ctx context.Context, low, high uuid.UUID) (bool, error) {
	var exists bool

	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM matches WHERE listing_id = $1 AND matched_listing_id = $2)`,
		low, high,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check match existence: %w", err)
	}

	return exists, nil
}

// Insert creates the match row for the canonical pair (low, high) and returns its id.
// When a row for the pair already exists, nothing is written and a ConflictError is returned.
func (r *MatchesRepository) Insert(
	ctx context.Context, low, high uuid.UUID, score float64, reasons []string,
) (uuid.UUID, error) {
	if reasons == nil {
		reasons = []string{}
	}

	var id uuid.UUID

	err := r.db.QueryRow(ctx, `
		INSERT INTO matches (listing_id, matched_listing_id, score, match_reasons)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (listing_id, matched_listing_id) DO NOTHING
		RETURNING id`,
		low, high, score, reasons,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, huberrors.NewConflictError("match already exists for pair")
		}

		return uuid.Nil, fmt.Errorf("failed to insert match: %w", err)
	}

	return id, nil
}

// DeleteAll removes every match row and returns how many were deleted.
func (r *MatchesRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM matches`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete matches: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ListForListing returns the matches a listing takes part in on either side, best score first.
func (r *MatchesRepository) ListForListing(ctx context.Context, listingID uuid.UUID) ([]models.Match, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, listing_id, matched_listing_id, score, match_reasons, created_at
		FROM matches
		WHERE listing_id = $1 OR matched_listing_id = $1
		ORDER BY score DESC, created_at DESC, id ASC`, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []models.Match

	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.ID, &m.ListingID, &m.MatchedListingID, &m.Score, &m.MatchReasons, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}

		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	return matches, nil
}
