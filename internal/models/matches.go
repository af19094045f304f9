package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Match is a stored, scored association between one lost and one found listing.
// Rows are stored in canonical order: ListingID sorts before MatchedListingID.
type Match struct {
	ID               uuid.UUID `json:"id"`
	ListingID        uuid.UUID `json:"listing_id"`
	MatchedListingID uuid.UUID `json:"matched_listing_id"`
	Score            float64   `json:"score"`
	MatchReasons     []string  `json:"match_reasons"`
	CreatedAt        time.Time `json:"created_at"`
}

// PairKey is the order-independent identity of an unordered pair of listings.
type PairKey struct {
	Low  uuid.UUID
	High uuid.UUID
}

// NewPairKey returns the canonical key for the pair (a, b): the smaller id (byte order) goes first.
// Byte order matches Postgres' ordering of the uuid type.
func NewPairKey(a, b uuid.UUID) PairKey {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return PairKey{Low: a, High: b}
	}

	return PairKey{Low: b, High: a}
}

// String returns "low:high".
func (k PairKey) String() string {
	return k.Low.String() + ":" + k.High.String()
}
