package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"golang.org/x/sync/errgroup"
)

// DefaultLoaderConcurrency is the number of images sent to the embedding server in parallel.
const DefaultLoaderConcurrency = 4

// Extractor computes the probe embedding of the face in an image.
type Extractor interface {
	ProbeFromImage(ctx context.Context, imageData []byte) (embedding.Vector, error)
}

// DirectoryLoader builds gallery entries from a directory of face images.
// The identity is the file name without extension. Images without a detectable face are skipped.
type DirectoryLoader struct {
	Dir         string
	Extractor   Extractor
	Concurrency int
	Logger      *slog.Logger

	// OnImage is called after each image is processed (used for progress reporting).
	OnImage func()
}

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// ImageFiles returns the image files in dir, sorted by name.
func ImageFiles(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading gallery directory: %w", err)
	}

	var files []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(de.Name()))] {
			files = append(files, filepath.Join(dir, de.Name()))
		}
	}
	return files, nil
}

// LoadEntries extracts one embedding per image. The result follows file name order.
func (l *DirectoryLoader) LoadEntries(ctx context.Context) ([]Entry, error) {
	if l.Extractor == nil {
		return nil, errors.New("directory loader needs an extractor")
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	files, err := ImageFiles(l.Dir)
	if err != nil {
		return nil, err
	}

	concurrency := l.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultLoaderConcurrency
	}

	results := make([]*Entry, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, path := range files {
		g.Go(func() error {
			defer func() {
				if l.OnImage != nil {
					l.OnImage()
				}
			}()

			data, err := os.ReadFile(path) //nolint:gosec // path comes from the configured gallery directory
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			vec, err := l.Extractor.ProbeFromImage(gctx, data)
			switch {
			case errors.Is(err, extractor.ErrNoFaceDetected), errors.Is(err, extractor.ErrInvalidImage):
				logger.Warn("skipping gallery image", "file", path, "error", err)
				return nil
			case err != nil:
				return fmt.Errorf("extracting %s: %w", path, err)
			}

			results[i] = &Entry{Identity: identity.FromFilename(path), Embedding: vec}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(results))
	for _, e := range results {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	logger.Info("gallery directory scanned", "dir", l.Dir, "images", len(files), "entries", len(entries))
	return entries, nil
}
