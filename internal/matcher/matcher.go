// Package matcher decides whether a probe embedding belongs to a known identity.
package matcher

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// DefaultThreshold is the inclusive acceptance distance for 128-d Euclidean face embeddings.
const DefaultThreshold = 0.5

// Result is the outcome of matching one probe against a gallery.
type Result struct {
	Identity string  // Closest identity; empty when Found is false
	Found    bool    // A candidate exists (the gallery is not empty)
	Distance float64 // Distance to the closest identity, +Inf when Found is false
	Accepted bool    // Found && Distance <= threshold
}

// Match finds the closest gallery identity to probe and applies the inclusive threshold.
// An invalid probe fails with embedding.ErrDimensionMismatch before the gallery is touched.
// An empty gallery is a normal no-match result.
func Match(probe embedding.Vector, g *gallery.Gallery, threshold float64) (Result, error) {
	if g == nil {
		return Result{}, fmt.Errorf("matching probe: nil gallery")
	}
	if err := g.Validate(probe); err != nil {
		return Result{}, fmt.Errorf("matching probe: %w", err)
	}

	c, ok := g.Nearest(probe)
	if !ok {
		return Result{Distance: math.Inf(1)}, nil
	}
	return Result{
		Identity: c.Identity,
		Found:    true,
		Distance: c.Distance,
		Accepted: c.Distance <= threshold,
	}, nil
}
