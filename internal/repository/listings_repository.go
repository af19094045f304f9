package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/findback/matcher/internal/huberrors"
	"github.com/findback/matcher/internal/models"
)

var errEmbeddingText = errors.New("embedding text is not a bracketed vector")

// listingColumns selects the embedding as text so a malformed stored value reaches the
// scorer as a decode error instead of failing the whole row.
const listingColumns = `
	id, status, category, subcategory, title, description, location,
	latitude, longitude, event_date, created_at, image_embedding::text`

// ListingsRepository handles data access for the listings table.
type ListingsRepository struct {
	db *pgxpool.Pool
}

// NewListingsRepository creates a new listings repository.
func NewListingsRepository(db *pgxpool.Pool) *ListingsRepository {
	return &ListingsRepository{db: db}
}

// GetByID retrieves a single listing by ID, whatever its status.
func (r *ListingsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	row := r.db.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)

	listing, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("listing", "listing not found")
		}

		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	return listing, nil
}

// GetActivePool returns every lost or found listing except excludeID (pass uuid.Nil to keep all),
// newest first with id as the tie-break.
func (r *ListingsRepository) GetActivePool(ctx context.Context, excludeID uuid.UUID) ([]models.Listing, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE status IN ('lost', 'found') AND id != $1
		ORDER BY created_at DESC, id ASC`, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active listings: %w", err)
	}
	defer rows.Close()

	var pool []models.Listing

	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}

		pool = append(pool, *listing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	return pool, nil
}

// ActivePoolFingerprint returns the count and newest creation time of lost and found listings.
func (r *ListingsRepository) ActivePoolFingerprint(ctx context.Context) (models.PoolFingerprint, error) {
	var (
		fp     models.PoolFingerprint
		newest *time.Time
	)

	err := r.db.QueryRow(ctx, `
		SELECT count(*), max(created_at)
		FROM listings
		WHERE status IN ('lost', 'found')`).Scan(&fp.Count, &newest)
	if err != nil {
		return models.PoolFingerprint{}, fmt.Errorf("failed to read active pool fingerprint: %w", err)
	}

	if newest != nil {
		fp.Newest = *newest
	}

	return fp, nil
}

// Create inserts a listing. A nil or empty embedding is stored as NULL.
func (r *ListingsRepository) Create(ctx context.Context, req *models.CreateListingRequest) (*models.Listing, error) {
	var embedding any
	if len(req.Embedding) > 0 {
		embedding = pgvector.NewVector(req.Embedding)
	}

	var eventDate *time.Time
	if !req.EventDate.IsZero() {
		eventDate = &req.EventDate
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO listings (status, category, subcategory, title, description, location,
			latitude, longitude, event_date, image_embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+listingColumns,
		req.Status, req.Category, req.Subcategory, req.Title, req.Description, req.Location,
		req.Latitude, req.Longitude, eventDate, embedding,
	)

	listing, err := scanListing(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	return listing, nil
}

// UpdateStatus sets the status of a listing, e.g. to resolved once it has been claimed.
func (r *ListingsRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ListingStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE listings SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update listing status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("listing", "listing not found")
	}

	return nil
}

func scanListing(row pgx.Row) (*models.Listing, error) {
	var (
		listing       models.Listing
		eventDate     *time.Time
		embeddingText *string
	)

	err := row.Scan(
		&listing.ID, &listing.Status, &listing.Category, &listing.Subcategory,
		&listing.Title, &listing.Description, &listing.Location,
		&listing.Latitude, &listing.Longitude, &eventDate, &listing.CreatedAt, &embeddingText,
	)
	if err != nil {
		return nil, err
	}

	if eventDate != nil {
		listing.EventDate = *eventDate
	}

	if embeddingText != nil {
		listing.Embedding = decodeEmbedding(*embeddingText)
	}

	return &listing, nil
}

// decodeEmbedding parses pgvector's text form ("[0.1,0.2]"). Failures are kept on the
// embedding rather than returned.
func decodeEmbedding(text string) *models.Embedding {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '[' || text[len(text)-1] != ']' {
		return &models.Embedding{DecodeErr: fmt.Errorf("%w: %q", errEmbeddingText, text)}
	}

	var vec pgvector.Vector
	if err := vec.Parse(text); err != nil {
		return &models.Embedding{DecodeErr: fmt.Errorf("embedding decode: %w", err)}
	}

	return &models.Embedding{Vector: vec.Slice()}
}
