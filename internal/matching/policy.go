// Package matching scores pairs of lost and found listings and selects which pairs are worth scoring.
package matching

// Default policy values.
const (
	DefaultSameCategoryThreshold  = 0.25
	DefaultCrossCategoryThreshold = 0.6
	DefaultCrossCategoryCap       = 3
	DefaultMaxSameCategoryMatches = 10
)

// Policy holds the acceptance thresholds and result caps applied around scoring.
type Policy struct {
	// SameCategoryThreshold is the strict lower bound a same-category score must exceed.
	SameCategoryThreshold float64
	// CrossCategoryThreshold is the strict lower bound a cross-category score must exceed.
	CrossCategoryThreshold float64
	// CrossCategoryCap bounds how many cross-category candidates are scored per listing.
	CrossCategoryCap int
	// MaxSameCategoryMatches bounds accepted same-category matches per run; 0 means unlimited.
	MaxSameCategoryMatches int
	// EmbeddingDimension is the expected embedding length; 0 skips the check.
	EmbeddingDimension int
}

// DefaultPolicy returns the documented default policy.
func DefaultPolicy() Policy {
	return Policy{
		SameCategoryThreshold:  DefaultSameCategoryThreshold,
		CrossCategoryThreshold: DefaultCrossCategoryThreshold,
		CrossCategoryCap:       DefaultCrossCategoryCap,
		MaxSameCategoryMatches: DefaultMaxSameCategoryMatches,
	}
}

// Accepts reports whether total clears the threshold for the candidate's group.
func (p Policy) Accepts(total float64, crossCategory bool) bool {
	if crossCategory {
		return total > p.CrossCategoryThreshold
	}

	return total > p.SameCategoryThreshold
}
