package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
	}{
		{"Identical", Vector{1, 2, 3}, Vector{1, 2, 3}, 0},
		{"Pythagorean", Vector{0, 0}, Vector{3, 4}, 5},
		{"Negative", Vector{-1, -1}, Vector{1, 1}, math.Sqrt(8)},
		{"Mismatched", Vector{1}, Vector{1, 2}, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EuclideanDistance(tt.a, tt.b)
			if math.IsInf(tt.expected, 1) {
				assert.True(t, math.IsInf(got, 1))
				return
			}
			assert.InDelta(t, tt.expected, got, 1e-12)
		})
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
	}{
		{"Identical", Vector{1, 0}, Vector{1, 0}, 0},
		{"Orthogonal", Vector{1, 0}, Vector{0, 1}, 1},
		{"Opposite", Vector{1, 0}, Vector{-1, 0}, 2},
		{"Scaled", Vector{1, 1}, Vector{5, 5}, 0},
		{"Zero vector", Vector{0, 0}, Vector{1, 1}, 2},
		{"Empty", Vector{}, Vector{}, 2},
		{"Huge identical", Vector{1e200, 1e200}, Vector{1e200, 1e200}, 0},
		{"Huge opposite", Vector{1e200, 0}, Vector{-1e200, 0}, 2},
		{"NaN component", Vector{math.NaN(), 1}, Vector{1, 1}, 2},
		{"Infinite component", Vector{math.Inf(1), 1}, Vector{1, 1}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			require.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.expected, got, 1e-12)
		})
	}
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, Euclidean, m)

	m, err = ParseMetric(" Cosine ")
	require.NoError(t, err)
	assert.Equal(t, Cosine, m)

	_, err = ParseMetric("manhattan")
	assert.Error(t, err)
}

func TestMetricDistance(t *testing.T) {
	a, b := Vector{0, 0}, Vector{3, 4}
	assert.InDelta(t, 5.0, Euclidean.Distance(a, b), 1e-12)
	assert.InDelta(t, 2.0, Cosine.Distance(a, b), 1e-12)
}
