package gallery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest_RoundTrip(t *testing.T) {
	entries := []Entry{
		{Identity: "alice", Embedding: embedding.Vector{0.1, -0.2}},
		{Identity: "bob", Embedding: embedding.Vector{1.5, 2.25}},
	}

	for _, name := range []string{"gallery.yaml", "gallery.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, WriteManifest(path, entries))

			loader := &ManifestLoader{Path: path}
			got, err := loader.LoadEntries(context.Background())
			require.NoError(t, err)
			assert.Equal(t, entries, got)
		})
	}
}

func TestManifestLoader_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := (&ManifestLoader{Path: filepath.Join(dir, "missing.yaml")}).LoadEntries(context.Background())
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("entries: [ {identity: "), 0o600))
	_, err = (&ManifestLoader{Path: bad}).LoadEntries(context.Background())
	assert.Error(t, err)
}

// fakeExtractor maps image file contents to embeddings.
type fakeExtractor struct {
	vectors map[string]embedding.Vector
	errs    map[string]error
	calls   atomic.Int32
}

func (f *fakeExtractor) ProbeFromImage(_ context.Context, data []byte) (embedding.Vector, error) {
	f.calls.Add(1)
	key := string(data)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.vectors[key], nil
}

func writeImages(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestDirectoryLoader_LoadEntries(t *testing.T) {
	dir := writeImages(t, map[string]string{
		"carol.png":  "c",
		"alice.jpg":  "a",
		"bob.JPEG":   "b",
		"nobody.jpg": "n",
		"notes.txt":  "ignored",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o750))

	ext := &fakeExtractor{
		vectors: map[string]embedding.Vector{
			"a": {1, 0},
			"b": {0, 1},
			"c": {1, 1},
		},
		errs: map[string]error{"n": extractor.ErrNoFaceDetected},
	}

	var processed atomic.Int32
	loader := &DirectoryLoader{Dir: dir, Extractor: ext, Concurrency: 2, OnImage: func() { processed.Add(1) }}
	entries, err := loader.LoadEntries(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Identity: "alice", Embedding: embedding.Vector{1, 0}},
		{Identity: "bob", Embedding: embedding.Vector{0, 1}},
		{Identity: "carol", Embedding: embedding.Vector{1, 1}},
	}, entries)
	assert.Equal(t, int32(4), ext.calls.Load())
	assert.Equal(t, int32(4), processed.Load())
}

func TestDirectoryLoader_ExtractorFailure(t *testing.T) {
	dir := writeImages(t, map[string]string{"alice.jpg": "a"})
	ext := &fakeExtractor{errs: map[string]error{"a": extractor.ErrUnavailable}}

	_, err := (&DirectoryLoader{Dir: dir, Extractor: ext}).LoadEntries(context.Background())
	assert.ErrorIs(t, err, extractor.ErrUnavailable)
}

func TestDirectoryLoader_RequiresExtractor(t *testing.T) {
	_, err := (&DirectoryLoader{Dir: t.TempDir()}).LoadEntries(context.Background())
	assert.Error(t, err)
}

func TestDirectoryLoader_MissingDir(t *testing.T) {
	ext := &fakeExtractor{}
	_, err := (&DirectoryLoader{Dir: filepath.Join(t.TempDir(), "nope"), Extractor: ext}).LoadEntries(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, extractor.ErrNoFaceDetected))
}
