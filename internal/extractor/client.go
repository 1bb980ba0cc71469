// Package extractor talks to the external face embedding server that turns images into embeddings.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/sony/gobreaker"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	defaultTimeout      = 30 * time.Second
)

var (
	// ErrNoFaceDetected is returned when the embedding server finds no face in the image.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrInvalidImage is returned when the embedding server rejects the image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrUnavailable is returned when the embedding server cannot be reached or the circuit is open.
	ErrUnavailable = errors.New("embedding server unavailable")
)

// Options configures the embedding client.
type Options struct {
	MaxImageSize     int           // Images larger than this (width or height) are downscaled before upload; 0 disables
	Timeout          time.Duration // Per-request timeout (default 30s)
	FailureThreshold uint32        // Consecutive failures before the circuit opens (default 5)
	OpenTimeout      time.Duration // How long the circuit stays open (default 30s)
}

// Client computes face embeddings using the embedding server.
type Client struct {
	baseURL      string
	maxImageSize int
	client       *http.Client
	breaker      *gobreaker.CircuitBreaker
}

// NewClient creates a new embedding client
func NewClient(baseURL string, opts Options) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	threshold := opts.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "embedding-server",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Rejected images and abandoned requests say nothing about the server's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidImage) || errors.Is(err, ErrNoFaceDetected) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		maxImageSize: opts.MaxImageSize,
		client:       &http.Client{Timeout: opts.Timeout},
		breaker:      breaker,
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w (status %d): %s", ErrInvalidImage, resp.StatusCode, string(body))
	default:
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrUnavailable, resp.StatusCode, string(body))
	}
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	if c.maxImageSize > 0 {
		if resized, ok := resizeIfLarger(imageData, c.maxImageSize); ok {
			imageData = resized
		}
	}

	result, err := c.breaker.Execute(func() (any, error) {
		body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
		if err != nil {
			return nil, err
		}
		var faceResp FaceResponse
		if err := json.Unmarshal(body, &faceResp); err != nil {
			return nil, fmt.Errorf("%w: failed to parse response: %w", ErrUnavailable, err)
		}
		return &faceResp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	}
	return result.(*FaceResponse), nil
}

// ProbeFromImage returns the embedding of the most confident face in the image.
func (c *Client) ProbeFromImage(ctx context.Context, imageData []byte) (embedding.Vector, error) {
	resp, err := c.ComputeFaceEmbeddings(ctx, imageData)
	if err != nil {
		return nil, err
	}

	best := -1
	for i := range resp.Faces {
		if len(resp.Faces[i].Embedding) == 0 {
			continue
		}
		if best < 0 || resp.Faces[i].DetScore > resp.Faces[best].DetScore {
			best = i
		}
	}
	if best < 0 {
		return nil, ErrNoFaceDetected
	}
	return embedding.FromFloat32(resp.Faces[best].Embedding), nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	return "application/octet-stream"
}
