package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/findback/matcher/internal/models"
	"github.com/findback/matcher/pkg/vectors"
)

// ReasonCode identifies which feature produced a contribution.
type ReasonCode string

// Reason codes, one per feature scorer outcome.
const (
	ReasonCategoryMismatch ReasonCode = "category_mismatch"
	ReasonSubcategory      ReasonCode = "subcategory"
	ReasonKeywords         ReasonCode = "keywords"
	ReasonVisual           ReasonCode = "visual"
	ReasonVisualFallback   ReasonCode = "visual_fallback"
	ReasonLocation         ReasonCode = "location"
	ReasonDate             ReasonCode = "date"
)

// Feature weights.
const (
	CategoryMismatchPenalty = -0.2
	SubcategoryBonus        = 0.25
	KeywordBonusPerToken    = 0.05
	KeywordBonusMax         = 0.25
	LocationBonus           = 0.10
	DateBonusWeek           = 0.05
	DateBonusMonth          = 0.025
	VisualFallbackBonus     = 0.15
)

const visualFallbackReason = "Visual similarity detected"

// visualTiers is ordered from the highest bound down; the first tier whose bound s exceeds wins.
var visualTiers = []struct {
	above float64
	bonus float64
	label string
}{
	{0.95, 0.30, "Identical"},
	{0.90, 0.20, "Very high"},
	{0.80, 0.10, "High"},
	{0.70, 0.05, "Moderate"},
	{0.60, 0.02, "Some"},
}

// Contribution is one feature's share of a score. Reason is empty when Value is zero.
type Contribution struct {
	Code   ReasonCode
	Value  float64
	Reason string
}

// IsZero reports whether the contribution carries no signal.
func (c Contribution) IsZero() bool {
	return c.Value == 0 && c.Reason == ""
}

// ScoreCategory applies the cross-category penalty. Same-category pairs contribute nothing:
// candidate selection already guarantees equal categories.
func ScoreCategory(source, candidate *models.Listing, crossCategory bool) Contribution {
	if !crossCategory || source.Category == candidate.Category {
		return Contribution{}
	}

	return Contribution{
		Code:   ReasonCategoryMismatch,
		Value:  CategoryMismatchPenalty,
		Reason: fmt.Sprintf("Different category: %s vs %s", source.Category, candidate.Category),
	}
}

// ScoreSubcategory rewards equal, non-empty subcategories. Comparison is exact: no trimming or case folding.
func ScoreSubcategory(source, candidate *models.Listing) Contribution {
	sub := source.Subcategory
	if sub == "" || sub != candidate.Subcategory {
		return Contribution{}
	}

	return Contribution{
		Code:   ReasonSubcategory,
		Value:  SubcategoryBonus,
		Reason: "Same subcategory: " + sub,
	}
}

// ScoreKeywords rewards title tokens present in both listings, 0.05 per token up to 0.25.
func ScoreKeywords(source, candidate *models.Listing) Contribution {
	common := commonTokens(source.Title, candidate.Title)
	if len(common) == 0 {
		return Contribution{}
	}

	return Contribution{
		Code:   ReasonKeywords,
		Value:  math.Min(KeywordBonusPerToken*float64(len(common)), KeywordBonusMax),
		Reason: "Common keywords: " + strings.Join(common, ", "),
	}
}

// ScoreVisual maps the cosine similarity of the two embeddings onto the tier table.
// A malformed embedding yields the flat fallback contribution instead of an error.
func ScoreVisual(source, candidate *models.Listing, dim int) (c Contribution) {
	if !source.HasEmbedding() || !candidate.HasEmbedding() {
		return Contribution{}
	}

	defer func() {
		if r := recover(); r != nil {
			c = visualFallback()
		}
	}()

	s, err := embeddingSimilarity(source.Embedding, candidate.Embedding, dim)
	if err != nil {
		return visualFallback()
	}

	for _, tier := range visualTiers {
		if s > tier.above {
			return Contribution{
				Code:   ReasonVisual,
				Value:  tier.bonus,
				Reason: fmt.Sprintf("%s visual similarity: %d%%", tier.label, int(math.Round(s*100))),
			}
		}
	}

	return Contribution{}
}

// ScoreLocation rewards equal, non-empty location strings, compared exactly.
func ScoreLocation(source, candidate *models.Listing) Contribution {
	loc := source.Location
	if loc == "" || loc != candidate.Location {
		return Contribution{}
	}

	return Contribution{
		Code:   ReasonLocation,
		Value:  LocationBonus,
		Reason: "Same location: " + loc,
	}
}

// ScoreDateProximity rewards listings created within a week (or a month) of each other.
// The reported event dates play no part.
func ScoreDateProximity(source, candidate *models.Listing) Contribution {
	a, b := source.CreatedAt, candidate.CreatedAt
	if a.IsZero() || b.IsZero() {
		return Contribution{}
	}

	days := math.Abs(a.Sub(b).Hours()) / 24

	switch {
	case days <= 7:
		return Contribution{Code: ReasonDate, Value: DateBonusWeek, Reason: "Within 7 days"}
	case days <= 30:
		return Contribution{Code: ReasonDate, Value: DateBonusMonth, Reason: "Within 30 days"}
	default:
		return Contribution{}
	}
}

func visualFallback() Contribution {
	return Contribution{Code: ReasonVisualFallback, Value: VisualFallbackBonus, Reason: visualFallbackReason}
}

func embeddingSimilarity(a, b *models.Embedding, dim int) (float64, error) {
	if a.DecodeErr != nil {
		return 0, fmt.Errorf("%w: %w", vectors.ErrMalformedVector, a.DecodeErr)
	}

	if b.DecodeErr != nil {
		return 0, fmt.Errorf("%w: %w", vectors.ErrMalformedVector, b.DecodeErr)
	}

	if err := vectors.Validate(a.Vector, dim); err != nil {
		return 0, err
	}

	if err := vectors.Validate(b.Vector, dim); err != nil {
		return 0, err
	}

	if len(a.Vector) != len(b.Vector) {
		return 0, fmt.Errorf("%w: length %d vs %d", vectors.ErrMalformedVector, len(a.Vector), len(b.Vector))
	}

	s := vectors.CosineSimilarity(a.Vector, b.Vector)
	if math.IsNaN(s) {
		return 0, fmt.Errorf("%w: similarity is NaN", vectors.ErrMalformedVector)
	}

	return s, nil
}

// commonTokens returns the distinct lowercase whitespace tokens of a that also occur in b, in a's order.
func commonTokens(a, b string) []string {
	other := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(b)) {
		other[tok] = struct{}{}
	}

	seen := make(map[string]struct{})

	var out []string

	for _, tok := range strings.Fields(strings.ToLower(a)) {
		if _, dup := seen[tok]; dup {
			continue
		}

		seen[tok] = struct{}{}

		if _, ok := other[tok]; ok {
			out = append(out, tok)
		}
	}

	return out
}
