package embedding

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Metric names a distance function over embeddings.
type Metric string

const (
	// Euclidean is the L2 distance, the metric face_recognition style models are calibrated for.
	Euclidean Metric = "euclidean"
	// Cosine is 1 - cosine similarity, for models calibrated on normalized embeddings.
	Cosine Metric = "cosine"
)

// ParseMetric parses a metric name (case-insensitive). Empty input selects Euclidean.
func ParseMetric(name string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(name))) {
	case "", Euclidean:
		return Euclidean, nil
	case Cosine:
		return Cosine, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q", name)
	}
}

// Distance computes the distance between a and b. Both vectors must have the same length.
func (m Metric) Distance(a, b Vector) float64 {
	if m == Cosine {
		return CosineDistance(a, b)
	}
	return EuclideanDistance(a, b)
}

// EuclideanDistance computes the L2 distance between two vectors of equal length.
func EuclideanDistance(a, b Vector) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	return floats.Distance(a, b, 2)
}

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
func CosineDistance(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := floats.Dot(a, b) / (normA * normB)
	if math.IsNaN(similarity) || math.IsInf(similarity, 0) {
		// The raw dot product overflowed; retry on unit vectors.
		similarity = floats.Dot(floats.ScaleTo(make([]float64, len(a)), 1/normA, a),
			floats.ScaleTo(make([]float64, len(b)), 1/normB, b))
	}
	if math.IsNaN(similarity) {
		return 2.0 // NaN or infinite components
	}
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity
}
