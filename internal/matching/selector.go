package matching

import (
	"github.com/findback/matcher/internal/models"
)

// MatchCandidate pairs a source listing with a pool listing worth scoring.
type MatchCandidate struct {
	Source        *models.Listing
	Candidate     *models.Listing
	CrossCategory bool
}

// Selection is the output of candidate selection, split by category relationship.
type Selection struct {
	SameCategory  []MatchCandidate
	CrossCategory []MatchCandidate
	// CrossCategoryGated counts cross-category listings dropped because an embedding was missing.
	CrossCategoryGated int
	// CrossCategoryCapped counts embedding-bearing cross-category listings dropped by the cap.
	CrossCategoryCapped int
}

// SelectCandidates filters pool to listings of the opposite status, partitions them by category and
// gates cross-category candidates on both sides carrying an embedding. At most crossCap cross-category
// candidates are kept, in pool order; a negative crossCap disables the cap.
// The returned candidates point into pool.
func SelectCandidates(source *models.Listing, pool []models.Listing, crossCap int) Selection {
	var sel Selection

	want := source.Status.Opposite()
	if want == "" {
		return sel
	}

	for i := range pool {
		cand := &pool[i]
		if cand.ID == source.ID || cand.Status != want {
			continue
		}

		if cand.Category == source.Category {
			sel.SameCategory = append(sel.SameCategory, MatchCandidate{Source: source, Candidate: cand})

			continue
		}

		if !source.HasEmbedding() || !cand.HasEmbedding() {
			sel.CrossCategoryGated++

			continue
		}

		if crossCap >= 0 && len(sel.CrossCategory) >= crossCap {
			sel.CrossCategoryCapped++

			continue
		}

		sel.CrossCategory = append(sel.CrossCategory, MatchCandidate{Source: source, Candidate: cand, CrossCategory: true})
	}

	return sel
}
