package gallery

import (
	"fmt"
	"sync/atomic"
)

// Store holds the current gallery snapshot. Readers never observe a partially replaced gallery.
type Store struct {
	opts    Options
	current atomic.Pointer[Gallery]
}

// NewStore creates a store holding an empty gallery.
func NewStore(opts Options) (*Store, error) {
	empty, err := Empty(opts)
	if err != nil {
		return nil, err
	}
	s := &Store{opts: empty.Options()}
	s.current.Store(empty)
	return s, nil
}

// Load builds a new snapshot from entries and swaps it in.
// On error the current snapshot is left untouched.
func (s *Store) Load(entries []Entry) error {
	g, err := New(entries, s.opts)
	if err != nil {
		return fmt.Errorf("loading gallery: %w", err)
	}
	s.current.Store(g)
	return nil
}

// Replace swaps in an already built snapshot. It must have been built with the store's dimension.
func (s *Store) Replace(g *Gallery) error {
	if g == nil {
		return fmt.Errorf("replacing gallery: nil snapshot")
	}
	if g.Dim() != s.opts.Dim {
		return fmt.Errorf("replacing gallery: dimension %d does not match store dimension %d", g.Dim(), s.opts.Dim)
	}
	s.current.Store(g)
	return nil
}

// Snapshot returns the current gallery. It is never nil.
func (s *Store) Snapshot() *Gallery {
	return s.current.Load()
}

// Options returns the options used to build snapshots.
func (s *Store) Options() Options {
	return s.opts
}
