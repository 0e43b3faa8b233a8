package telemetry

import (
	"context"
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/lattice/pkg/model"
)

// File reads snapshots from a JSON file on disk. The file holds one
// whole snapshot ({"nodes": [...], "links": [...]}); each Fetch re-reads
// it, so pairing the provider with a filesystem watcher gives live
// updates as an external process rewrites the file.
type File struct {
	path string
}

// NewFile creates a provider for the given snapshot file.
func NewFile(path string) *File {
	return &File{path: path}
}

// Name implements Provider.
func (f *File) Name() string { return "file:" + f.path }

// Path returns the watched file path.
func (f *File) Path() string { return f.path }

// Fetch implements Provider.
func (f *File) Fetch(ctx context.Context, category string) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read snapshot file: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("parse snapshot file %s: %w", f.path, err)
	}
	return FilterCategory(snap, category), nil
}
