// Package embedding defines the face embedding vector type and the distance metrics used to compare them.
package embedding

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned for vectors that have the wrong length or contain non-finite components.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Vector is a face embedding with a fixed number of components.
type Vector []float64

// Validate checks that v has exactly dim components and that all of them are finite.
func Validate(v Vector, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("%w: got %d components, want %d", ErrDimensionMismatch, len(v), dim)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: component %d is not finite", ErrDimensionMismatch, i)
		}
	}
	return nil
}

// FromFloat32 converts a float32 embedding (as returned by the embedding server or pgvector) to a Vector.
func FromFloat32(v []float32) Vector {
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Float32 returns a float32 copy of the vector for storage backends that work in single precision.
func (v Vector) Float32() []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Clone returns a copy of the vector.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}
