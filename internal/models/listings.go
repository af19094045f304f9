package models

import (
	"time"

	"github.com/google/uuid"
)

// ListingStatus is the lifecycle status of a listing.
type ListingStatus string

// Listing statuses. Only lost and found listings take part in matching.
const (
	ListingStatusLost     ListingStatus = "lost"
	ListingStatusFound    ListingStatus = "found"
	ListingStatusResolved ListingStatus = "resolved"
)

// IsActive reports whether listings with this status belong to the matching pool.
func (s ListingStatus) IsActive() bool {
	return s == ListingStatusLost || s == ListingStatusFound
}

// Opposite returns the status a match partner must have. Resolved has no opposite.
func (s ListingStatus) Opposite() ListingStatus {
	switch s {
	case ListingStatusLost:
		return ListingStatusFound
	case ListingStatusFound:
		return ListingStatusLost
	default:
		return ""
	}
}

// Embedding is the image embedding attached to a listing.
// DecodeErr is set when the stored value could not be parsed into Vector.
type Embedding struct {
	Vector    []float32
	DecodeErr error
}

// Listing is a user-submitted lost or found report, as read by the matching engine.
type Listing struct {
	ID          uuid.UUID     `json:"id"`
	Status      ListingStatus `json:"status"`
	Category    string        `json:"category"`
	Subcategory string        `json:"subcategory,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	Latitude    *float64      `json:"latitude,omitempty"`
	Longitude   *float64      `json:"longitude,omitempty"`
	EventDate   time.Time     `json:"event_date"` // as reported; not used for scoring
	CreatedAt   time.Time     `json:"created_at"`
	Embedding   *Embedding    `json:"-"`
}

// HasEmbedding reports whether the listing carries an embedding (well-formed or not).
func (l *Listing) HasEmbedding() bool {
	return l.Embedding != nil
}

// CreateListingRequest holds the fields needed to insert a listing.
// New listings are always lost or found; resolved is reached through a status update.
type CreateListingRequest struct {
	Status      ListingStatus `validate:"required,oneof=lost found"`
	Category    string        `validate:"required,max=100"`
	Subcategory string        `validate:"max=100"`
	Title       string        `validate:"required,max=255"`
	Description string
	Location    string   `validate:"max=255"`
	Latitude    *float64 `validate:"omitempty,latitude"`
	Longitude   *float64 `validate:"omitempty,longitude"`
	EventDate   time.Time
	Embedding   []float32
}

// PoolFingerprint summarizes the active pool cheaply. A snapshot whose fingerprint differs from the
// current one is missing new listings or still holds resolved ones.
type PoolFingerprint struct {
	Count  int64
	Newest time.Time
}

// Equal reports whether two fingerprints describe the same pool.
func (f PoolFingerprint) Equal(other PoolFingerprint) bool {
	return f.Count == other.Count && f.Newest.Equal(other.Newest)
}
