package matching

import (
	"bytes"
	"cmp"
	"slices"
)

// Result is a scored candidate.
type Result struct {
	Candidate MatchCandidate
	Breakdown ScoreBreakdown
}

// Accept keeps the results that clear the policy thresholds, ranks them and applies the
// same-category cap. Cross-category results are already bounded by selection.
func Accept(results []Result, policy Policy) []Result {
	accepted := make([]Result, 0, len(results))
	for _, r := range results {
		if policy.Accepts(r.Breakdown.Total, r.Candidate.CrossCategory) {
			accepted = append(accepted, r)
		}
	}

	Rank(accepted)

	if policy.MaxSameCategoryMatches <= 0 {
		return accepted
	}

	out := accepted[:0]
	same := 0

	for _, r := range accepted {
		if !r.Candidate.CrossCategory {
			if same >= policy.MaxSameCategoryMatches {
				continue
			}

			same++
		}

		out = append(out, r)
	}

	return out
}

// Rank sorts results by score descending; ties go to the newer candidate, then the smaller id.
func Rank(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		if c := cmp.Compare(b.Breakdown.Total, a.Breakdown.Total); c != 0 {
			return c
		}

		if c := b.Candidate.Candidate.CreatedAt.Compare(a.Candidate.Candidate.CreatedAt); c != 0 {
			return c
		}

		ida, idb := a.Candidate.Candidate.ID, b.Candidate.Candidate.ID

		return bytes.Compare(ida[:], idb[:])
	})
}
