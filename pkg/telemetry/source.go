package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// SourceType identifies the kind of data source backing a provider.
type SourceType string

const (
	// SourceTypeSQLite is a telemetry database (lattice.db).
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSON is a JSON snapshot file.
	SourceTypeJSON SourceType = "json"
)

// Priority values for source types (higher = more authoritative).
const (
	PrioritySQLite = 100
	PriorityJSON   = 50
)

// Source is a discovered candidate telemetry source.
type Source struct {
	// Type identifies the source type.
	Type SourceType `json:"type"`
	// Path is the absolute path to the source file.
	Path string `json:"path"`
	// Priority determines preference when timestamps are equal.
	Priority int `json:"priority"`
	// ModTime is the last modification time of the source.
	ModTime time.Time `json:"mod_time"`
	// Valid indicates whether the source passed validation.
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed.
	ValidationError string `json:"validation_error,omitempty"`
	// NodeCount is the number of nodes in the source, set during
	// validation.
	NodeCount int `json:"node_count"`
	// Size is the file size in bytes.
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source.
func (s Source) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, nodes=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.NodeCount, status)
}

// DiscoveryOptions configures source discovery.
type DiscoveryOptions struct {
	// DataDir is the directory to scan. Falls back to $LATTICE_DATA_DIR,
	// then ./telemetry under the current directory.
	DataDir string
	// Validate opens each discovered source and probes it; invalid
	// sources are dropped from the result unless IncludeInvalid is set.
	Validate bool
	// IncludeInvalid keeps sources that failed validation in the result.
	IncludeInvalid bool
	// Logger receives discovery progress. Nil silences it.
	Logger func(msg string)
}

// DiscoverSources scans the data directory for snapshot files and
// telemetry databases, newest first.
func DiscoverSources(ctx context.Context, opts DiscoveryOptions) ([]Source, error) {
	if opts.Logger == nil {
		opts.Logger = func(string) {}
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		if envDir := os.Getenv("LATTICE_DATA_DIR"); envDir != "" {
			dataDir = envDir
		} else {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get current directory: %w", err)
			}
			dataDir = filepath.Join(cwd, "telemetry")
		}
	}

	opts.Logger(fmt.Sprintf("Discovering sources in: %s", dataDir))

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var sources []Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()

		// Skip editor backups and merge artifacts.
		if strings.Contains(name, ".backup") || strings.Contains(name, ".orig") ||
			strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".tmp") {
			continue
		}

		var typ SourceType
		var priority int
		switch {
		case strings.HasSuffix(name, ".db") || strings.HasSuffix(name, ".sqlite"):
			typ, priority = SourceTypeSQLite, PrioritySQLite
		case strings.HasSuffix(name, ".json"):
			typ, priority = SourceTypeJSON, PriorityJSON
		default:
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}
		src := Source{
			Type:     typ,
			Path:     filepath.Join(dataDir, name),
			Priority: priority,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		}
		sources = append(sources, src)
		opts.Logger(fmt.Sprintf("Found %s: %s (mod=%s)", typ, src.Path, src.ModTime.Format(time.RFC3339)))
	}

	if opts.Validate {
		if err := ValidateSources(ctx, sources); err != nil {
			return nil, err
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				} else {
					opts.Logger(fmt.Sprintf("Dropping invalid source %s: %s", s.Path, s.ValidationError))
				}
			}
			sources = valid
		}
	}

	sort.Slice(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})

	opts.Logger(fmt.Sprintf("Discovered %d sources", len(sources)))
	return sources, nil
}

// ValidateSources probes every source in parallel, filling in Valid,
// ValidationError, and NodeCount. Individual failures are recorded on
// the source, never propagated.
func ValidateSources(ctx context.Context, sources []Source) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i := range sources {
		i := i
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			sources[i].NodeCount, sources[i].ValidationError = probeSource(probeCtx, sources[i])
			sources[i].Valid = sources[i].ValidationError == ""
			return nil
		})
	}
	return g.Wait()
}

// probeSource opens the source and counts its nodes. An empty error
// string means the probe succeeded.
func probeSource(ctx context.Context, src Source) (nodes int, errMsg string) {
	switch src.Type {
	case SourceTypeSQLite:
		r, err := NewSQLite(src.Path)
		if err != nil {
			return 0, err.Error()
		}
		defer r.Close()
		n, err := r.Count(ctx)
		if err != nil {
			return 0, err.Error()
		}
		return n, ""

	case SourceTypeJSON:
		snap, err := NewFile(src.Path).Fetch(ctx, "")
		if err != nil {
			return 0, err.Error()
		}
		clean, _ := snap.Sanitize()
		if len(clean.Nodes) == 0 {
			return 0, "snapshot has no valid nodes"
		}
		return len(clean.Nodes), ""

	default:
		return 0, fmt.Sprintf("unknown source type: %s", src.Type)
	}
}

// SelectBestSource picks the freshest valid source. Sources must
// already be sorted by DiscoverSources.
func SelectBestSource(sources []Source) (Source, error) {
	for _, s := range sources {
		if s.Valid {
			return s, nil
		}
	}
	return Source{}, ErrNoSources
}

// OpenSource builds a provider for the selected source. The caller is
// responsible for closing providers that hold resources (SQLite).
func OpenSource(src Source) (Provider, error) {
	switch src.Type {
	case SourceTypeSQLite:
		return NewSQLite(src.Path)
	case SourceTypeJSON:
		return NewFile(src.Path), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", src.Type)
	}
}
