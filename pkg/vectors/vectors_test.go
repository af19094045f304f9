package vectors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{"identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled vectors", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1},
		{"unequal lengths", []float32{1, 2, 3}, []float32{1, 2}, 0},
		{"empty vectors", []float32{}, []float32{}, 0},
		{"nil vectors", nil, nil, 0},
		{"zero vector", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"one zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineSimilarity_SelfIsOne(t *testing.T) {
	vecs := [][]float32{
		{0.1},
		{-3, 4},
		{0.25, -0.5, 0.75, 1},
		{1e-3, 2e-3, 3e-3},
	}

	for _, v := range vecs {
		assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-6, "vector %v", v)
	}
}

func TestEuclideanDistance(t *testing.T) {
	t.Run("3-4-5 triangle", func(t *testing.T) {
		assert.InDelta(t, 5.0, EuclideanDistance([]float32{0, 0}, []float32{3, 4}), 1e-9)
	})

	t.Run("same vector is zero", func(t *testing.T) {
		assert.InDelta(t, 0.0, EuclideanDistance([]float32{1, 2}, []float32{1, 2}), 1e-9)
	})

	t.Run("unequal lengths is +Inf", func(t *testing.T) {
		assert.True(t, math.IsInf(EuclideanDistance([]float32{1}, []float32{1, 2}), 1))
	})

	t.Run("empty is +Inf", func(t *testing.T) {
		assert.True(t, math.IsInf(EuclideanDistance(nil, nil), 1))
	})
}

func TestNormalizeL2(t *testing.T) {
	t.Run("unit vector unchanged", func(t *testing.T) {
		v := []float32{1, 0, 0}
		assert.True(t, NormalizeL2(v))
		assert.Equal(t, []float32{1, 0, 0}, v)
	})

	t.Run("normalizes to unit length", func(t *testing.T) {
		vec := []float32{3, 4}
		assert.True(t, NormalizeL2(vec))

		assert.InDelta(t, 0.6, vec[0], 1e-5)
		assert.InDelta(t, 0.8, vec[1], 1e-5)
	})

	t.Run("zero vector is left alone", func(t *testing.T) {
		v := []float32{0, 0, 0}
		assert.False(t, NormalizeL2(v))
		assert.Equal(t, []float32{0, 0, 0}, v)
	})

	t.Run("cosine is invariant under normalization", func(t *testing.T) {
		a := []float32{1, 2, 3}
		b := []float32{3, 1, 2}
		before := CosineSimilarity(a, b)

		NormalizeL2(a)
		NormalizeL2(b)

		assert.InDelta(t, before, CosineSimilarity(a, b), 1e-6)
	})
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate([]float32{1, 2, 3}, 0))
	require.NoError(t, Validate([]float32{1, 2, 3}, 3))

	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	for name, tc := range map[string]struct {
		v   []float32
		dim int
	}{
		"empty":          {nil, 0},
		"wrong length":   {[]float32{1, 2}, 3},
		"nan value":      {[]float32{1, nan}, 0},
		"infinite value": {[]float32{inf}, 0},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tc.v, tc.dim), ErrMalformedVector)
		})
	}
}
