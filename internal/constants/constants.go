// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching constants
const (
	// DefaultEmbeddingDim is the embedding length produced by the face model
	DefaultEmbeddingDim = 128

	// DefaultMatchThreshold is the default maximum Euclidean distance for accepting a match.
	// The comparison is inclusive. Lower values = stricter matching
	DefaultMatchThreshold = 0.5
)

// Gallery constants
const (
	// DefaultGalleryDir is the directory of known face images, one image per identity
	DefaultGalleryDir = "known_faces"

	// DefaultGalleryManifest is the default path of a precomputed gallery manifest
	DefaultGalleryManifest = "gallery.yaml"

	// WorkerPoolSize is the default number of parallel extraction requests during gallery import
	WorkerPoolSize = 4
)

// Ledger constants
const (
	// DefaultLedgerPath is the default attendance file
	DefaultLedgerPath = "attendance.csv"

	// DefaultLedgerPeriod is the default dedup window
	DefaultLedgerPeriod = "daily"
)

// Processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) of images sent to the embedding server
	MaxImageSize = 1600
)
