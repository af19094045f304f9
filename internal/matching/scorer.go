package matching

import (
	"math"

	"github.com/findback/matcher/internal/models"
)

// ScoreBreakdown is the ordered list of non-zero contributions for a pair and the clamped total.
type ScoreBreakdown struct {
	Contributions []Contribution
	Total         float64
}

// Reasons returns the rendered reason strings in scorer order.
func (b ScoreBreakdown) Reasons() []string {
	reasons := make([]string, 0, len(b.Contributions))
	for _, c := range b.Contributions {
		reasons = append(reasons, c.Reason)
	}

	return reasons
}

// Scorer composes the feature scorers into a single bounded score.
type Scorer struct {
	embeddingDimension int
}

// NewScorer returns a Scorer. embeddingDimension of 0 disables the length check.
func NewScorer(embeddingDimension int) *Scorer {
	return &Scorer{embeddingDimension: embeddingDimension}
}

// Score runs category, subcategory, keyword, visual, location and date scorers in that order,
// sums them and clamps the total to [0, 1].
func (s *Scorer) Score(source, candidate *models.Listing, crossCategory bool) ScoreBreakdown {
	parts := []Contribution{
		ScoreCategory(source, candidate, crossCategory),
		ScoreSubcategory(source, candidate),
		ScoreKeywords(source, candidate),
		ScoreVisual(source, candidate, s.embeddingDimension),
		ScoreLocation(source, candidate),
		ScoreDateProximity(source, candidate),
	}

	var (
		out   ScoreBreakdown
		total float64
	)

	for _, c := range parts {
		if c.IsZero() {
			continue
		}

		out.Contributions = append(out.Contributions, c)
		total += c.Value
	}

	out.Total = clamp(roundScore(total))

	return out
}

// roundScore drops float accumulation noise below 1e-9 (0.1+0.1+0.05 style sums).
func roundScore(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
