// Package vectors provides similarity utilities for embedding vectors (cosine, Euclidean, L2 normalization).
package vectors

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedVector is returned by Validate when a vector cannot be compared.
var ErrMalformedVector = errors.New("malformed vector")

// CosineSimilarity returns dot(a,b) / (|a|*|b|).
// Returns 0 when either vector is empty, the lengths differ, or either has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64

	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EuclideanDistance returns the L2 distance between a and b.
// Returns +Inf when either vector is empty or the lengths differ.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}

	var sum float64

	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}

// NormalizeL2 scales v in place to unit length. Cosine similarity is unchanged by it.
// A zero-magnitude vector is left alone and reported as false.
func NormalizeL2(v []float32) bool {
	norm := magnitude(v)
	if norm == 0 {
		return false
	}

	for i, x := range v {
		v[i] = float32(float64(x) / norm)
	}

	return true
}

// Validate checks that v is non-empty, contains only finite values and, when dim > 0, has exactly dim entries.
func Validate(v []float32, dim int) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty", ErrMalformedVector)
	}

	if dim > 0 && len(v) != dim {
		return fmt.Errorf("%w: length %d, want %d", ErrMalformedVector, len(v), dim)
	}

	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrMalformedVector, i)
		}
	}

	return nil
}

func magnitude(v []float32) float64 {
	var sum float64

	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	return math.Sqrt(sum)
}
