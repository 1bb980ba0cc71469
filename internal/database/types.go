// Package database defines the storage types and repository interfaces shared by the SQL backends.
package database

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

// StoredIdentity represents a known identity embedding stored in the database
type StoredIdentity struct {
	Seq       int64 // Insertion sequence; defines gallery order
	Identity  string
	Embedding embedding.Vector
	UpdatedAt time.Time
}

// Entry converts the stored identity to a gallery entry.
func (s StoredIdentity) Entry() gallery.Entry {
	return gallery.Entry{Identity: s.Identity, Embedding: s.Embedding}
}
