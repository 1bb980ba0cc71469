package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader supplies the full set of gallery entries. It is invoked at startup and on every refresh.
type Loader interface {
	LoadEntries(ctx context.Context) ([]Entry, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) ([]Entry, error)

// LoadEntries calls f.
func (f LoaderFunc) LoadEntries(ctx context.Context) ([]Entry, error) {
	return f(ctx)
}

// manifest is the on-disk layout of a gallery manifest.
type manifest struct {
	Entries []Entry `json:"entries" yaml:"entries"`
}

// ManifestLoader reads precomputed embeddings from a YAML or JSON manifest file.
type ManifestLoader struct {
	Path string
}

// LoadEntries reads the manifest. JSON is valid YAML, so one decoder handles both formats.
func (l *ManifestLoader) LoadEntries(ctx context.Context) ([]Entry, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("reading gallery manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing gallery manifest %s: %w", l.Path, err)
	}
	return m.Entries, nil
}

// WriteManifest writes entries to path, as JSON when the extension is .json and YAML otherwise.
func WriteManifest(path string, entries []Entry) error {
	m := manifest{Entries: entries}

	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(m, "", "  ")
	} else {
		data, err = yaml.Marshal(m)
	}
	if err != nil {
		return fmt.Errorf("encoding gallery manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing gallery manifest: %w", err)
	}
	return nil
}
