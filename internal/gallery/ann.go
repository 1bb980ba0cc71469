package gallery

import (
	"sort"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-attendance/internal/embedding"
)

// HNSW parameters for face embeddings.
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 100

	// DefaultANNCandidates is how many HNSW neighbors are re-ranked with exact distances.
	DefaultANNCandidates = 32
)

// annIndex wraps an HNSW graph keyed by gallery position.
// It only narrows the candidate set; final distances and tie-breaks come from the exact scan.
type annIndex struct {
	graph *hnsw.Graph[int]
}

func newANNIndex(entries []Entry, metric embedding.Metric) *annIndex {
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	if metric == embedding.Cosine {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}

	for i := range entries {
		g.Add(hnsw.MakeNode(i, entries[i].Embedding.Float32()))
	}
	return &annIndex{graph: g}
}

// candidates returns gallery positions of the k approximate nearest neighbors, sorted ascending.
func (a *annIndex) candidates(probe embedding.Vector, k int) []int {
	neighbors := a.graph.Search(probe.Float32(), k)
	positions := make([]int, len(neighbors))
	for i, n := range neighbors {
		positions[i] = n.Key
	}
	sort.Ints(positions)
	return positions
}
