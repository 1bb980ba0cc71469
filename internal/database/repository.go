package database

import (
	"context"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// IdentityReader provides read-only access to stored identity embeddings
type IdentityReader interface {
	gallery.Loader

	// List returns all stored identities in insertion order
	List(ctx context.Context) ([]StoredIdentity, error)
	// Count returns the total number of identities stored
	Count(ctx context.Context) (int, error)
}

// IdentityWriter provides write access to stored identity embeddings
type IdentityWriter interface {
	IdentityReader

	// Upsert stores the embedding for an identity, replacing any existing one.
	// A replaced identity keeps its original position.
	Upsert(ctx context.Context, identity string, vec embedding.Vector) error
	// Delete removes an identity. Deleting an unknown identity is not an error.
	Delete(ctx context.Context, identity string) error
}
