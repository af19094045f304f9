package matching

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/findback/matcher/internal/models"
)

var day0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newListing(status models.ListingStatus, category string, opts ...func(*models.Listing)) models.Listing {
	l := models.Listing{
		ID:        uuid.New(),
		Status:    status,
		Category:  category,
		CreatedAt: day0,
	}
	for _, opt := range opts {
		opt(&l)
	}

	return l
}

func withID(id string) func(*models.Listing) {
	return func(l *models.Listing) { l.ID = uuid.MustParse(id) }
}

func withTitle(title string) func(*models.Listing) {
	return func(l *models.Listing) { l.Title = title }
}

func withSubcategory(sub string) func(*models.Listing) {
	return func(l *models.Listing) { l.Subcategory = sub }
}

func withLocation(loc string) func(*models.Listing) {
	return func(l *models.Listing) { l.Location = loc }
}

func withEventDay(days int) func(*models.Listing) {
	return func(l *models.Listing) { l.EventDate = day0.AddDate(0, 0, days) }
}

func withCreatedDay(days int) func(*models.Listing) {
	return func(l *models.Listing) { l.CreatedAt = day0.AddDate(0, 0, days) }
}

func withVector(v ...float32) func(*models.Listing) {
	return func(l *models.Listing) { l.Embedding = &models.Embedding{Vector: v} }
}

func withBrokenEmbedding() func(*models.Listing) {
	return func(l *models.Listing) {
		l.Embedding = &models.Embedding{DecodeErr: errors.New("invalid input syntax for type vector")}
	}
}

// unitPair returns two 2-d vectors whose cosine similarity is s.
func unitPair(s float64) ([]float32, []float32) {
	return []float32{1, 0}, []float32{float32(s), float32(math.Sqrt(1 - s*s))}
}
