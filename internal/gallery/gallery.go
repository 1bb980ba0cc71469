// Package gallery holds the set of known identity embeddings and answers nearest-neighbor queries against it.
//
// A Gallery is an immutable snapshot. Refreshing the known faces builds a new snapshot and swaps it into a
// Store atomically, so queries that are already running keep using the snapshot they started with.
package gallery

import (
	"errors"
	"fmt"
	"math"

	"github.com/kozaktomas/face-attendance/internal/embedding"
)

// ErrEmptyIdentity is returned when a gallery entry has no identity.
var ErrEmptyIdentity = errors.New("gallery entry has empty identity")

// Entry is a single known identity and its embedding.
type Entry struct {
	Identity  string           `json:"identity" yaml:"identity"`
	Embedding embedding.Vector `json:"embedding" yaml:"embedding"`
}

// Options configures how a gallery validates and compares embeddings.
type Options struct {
	Dim    int              // Required embedding dimension
	Metric embedding.Metric // Distance metric (defaults to Euclidean)

	// ANNMinSize enables the HNSW candidate index for galleries with at least this many entries.
	// Zero keeps the exact full scan for every size.
	ANNMinSize int
	// ANNCandidates is the number of HNSW candidates re-ranked exactly (defaults to DefaultANNCandidates).
	ANNCandidates int
}

// Candidate is the closest gallery entry to a probe.
type Candidate struct {
	Identity string
	Distance float64
	Position int // Position in the gallery's iteration order
}

// Gallery is an immutable, ordered snapshot of known identities.
type Gallery struct {
	opts    Options
	entries []Entry
	index   map[string]int
	ann     *annIndex
}

func (o Options) normalized() (Options, error) {
	if o.Dim <= 0 {
		return o, fmt.Errorf("gallery dimension must be positive, got %d", o.Dim)
	}
	if o.Metric == "" {
		o.Metric = embedding.Euclidean
	}
	if o.ANNCandidates <= 0 {
		o.ANNCandidates = DefaultANNCandidates
	}
	return o, nil
}

// New builds a gallery snapshot from entries.
// Every embedding must match opts.Dim. When an identity appears more than once the last
// occurrence wins and earlier ones are dropped; survivors keep their relative input order.
func New(entries []Entry, opts Options) (*Gallery, error) {
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}

	last := make(map[string]int, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.Identity == "" {
			return nil, fmt.Errorf("%w (position %d)", ErrEmptyIdentity, i)
		}
		if err := embedding.Validate(e.Embedding, opts.Dim); err != nil {
			return nil, fmt.Errorf("identity %q: %w", e.Identity, err)
		}
		last[e.Identity] = i
	}

	g := &Gallery{
		opts:    opts,
		entries: make([]Entry, 0, len(last)),
		index:   make(map[string]int, len(last)),
	}
	for i := range entries {
		e := &entries[i]
		if last[e.Identity] != i {
			continue
		}
		g.index[e.Identity] = len(g.entries)
		g.entries = append(g.entries, Entry{Identity: e.Identity, Embedding: e.Embedding.Clone()})
	}

	if opts.ANNMinSize > 0 && len(g.entries) >= opts.ANNMinSize {
		g.ann = newANNIndex(g.entries, opts.Metric)
	}
	return g, nil
}

// Empty returns an empty gallery with the given options.
func Empty(opts Options) (*Gallery, error) {
	return New(nil, opts)
}

// Len returns the number of identities in the gallery.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// Dim returns the configured embedding dimension.
func (g *Gallery) Dim() int {
	return g.opts.Dim
}

// Metric returns the distance metric used for queries.
func (g *Gallery) Metric() embedding.Metric {
	return g.opts.Metric
}

// Options returns the options the gallery was built with.
func (g *Gallery) Options() Options {
	return g.opts
}

// Validate checks that probe can be compared against this gallery.
func (g *Gallery) Validate(probe embedding.Vector) error {
	return embedding.Validate(probe, g.opts.Dim)
}

// Identities returns the identities in iteration order.
func (g *Gallery) Identities() []string {
	ids := make([]string, len(g.entries))
	for i := range g.entries {
		ids[i] = g.entries[i].Identity
	}
	return ids
}

// Lookup returns the embedding stored for identity.
func (g *Gallery) Lookup(identity string) (embedding.Vector, bool) {
	i, ok := g.index[identity]
	if !ok {
		return nil, false
	}
	return g.entries[i].Embedding.Clone(), true
}

// Nearest returns the entry closest to probe. It returns false only for an empty gallery.
// When several entries share the minimum distance, the earliest one in iteration order wins.
// The probe must already be validated (see Validate).
func (g *Gallery) Nearest(probe embedding.Vector) (Candidate, bool) {
	if g.Len() == 0 {
		return Candidate{}, false
	}
	if g.ann != nil {
		if positions := g.ann.candidates(probe, g.opts.ANNCandidates); len(positions) > 0 {
			return g.scan(probe, positions), true
		}
	}
	return g.scan(probe, nil), true
}

// scan computes exact distances over the given positions (ascending), or over all entries when positions is nil.
func (g *Gallery) scan(probe embedding.Vector, positions []int) Candidate {
	best := Candidate{Position: -1, Distance: math.Inf(1)}
	consider := func(pos int) {
		d := g.opts.Metric.Distance(probe, g.entries[pos].Embedding)
		// Strict comparison keeps the earliest entry on ties.
		if best.Position < 0 || d < best.Distance {
			best = Candidate{Identity: g.entries[pos].Identity, Distance: d, Position: pos}
		}
	}

	if positions == nil {
		for i := range g.entries {
			consider(i)
		}
	} else {
		for _, pos := range positions {
			consider(pos)
		}
	}
	return best
}
