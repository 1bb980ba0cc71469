package constants

import "time"

// HTTP server constants
const (
	// DefaultPort is the default HTTP port
	DefaultPort = 5000

	// RequestTimeout bounds a single HTTP request, including image extraction
	RequestTimeout = 60 * time.Second

	// DefaultRateLimit is the default sustained rate of recognition requests per client (req/s)
	DefaultRateLimit = 20

	// DefaultRateBurst is the default burst size of recognition requests per client
	DefaultRateBurst = 40
)

// File upload constants
const (
	// MaxUploadSize is the maximum image upload size in bytes (20MB)
	MaxUploadSize = 20 << 20

	// MaxEmbeddingBodySize is the maximum JSON body size of an embedding recognition request (1MB)
	MaxEmbeddingBodySize = 1 << 20
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)
