package telemetry

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/lattice/pkg/model"
)

// SQLite reads snapshots from a telemetry database written by the
// benchmark harness. The schema is two tables:
//
//	nodes(id TEXT PRIMARY KEY, label TEXT, category TEXT, fidelity REAL)
//	links(source TEXT, target TEXT, weight REAL)
//
// The database is opened read-only; the harness keeps writing while the
// viewer polls.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens the database for reading.
func NewSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open telemetry database: %w", err)
	}

	// Read-performance pragmas; failures are non-fatal.
	pragmas := []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		db.Exec(pragma)
	}

	return &SQLite{db: db, path: path}, nil
}

// Name implements Provider.
func (s *SQLite) Name() string { return "sqlite:" + s.path }

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Fetch implements Provider. A non-empty category restricts the node
// query; links against nodes outside the restriction are pruned.
func (s *SQLite) Fetch(ctx context.Context, category string) (model.Snapshot, error) {
	nodes, err := s.loadNodes(ctx, category)
	if err != nil {
		return model.Snapshot{}, err
	}
	links, err := s.loadLinks(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap := model.Snapshot{Nodes: nodes, Links: links}
	if category != "" {
		snap = FilterCategory(snap, category)
	}
	return snap, nil
}

func (s *SQLite) loadNodes(ctx context.Context, category string) ([]model.Node, error) {
	query := `SELECT id, label, category, fidelity FROM nodes ORDER BY id`
	var args []any
	if category != "" {
		query = `SELECT id, label, category, fidelity FROM nodes WHERE category = ? ORDER BY id`
		args = append(args, category)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		var n model.Node
		var label sql.NullString
		var category string
		if err := rows.Scan(&n.ID, &label, &category, &n.Fidelity); err != nil {
			continue
		}
		if label.Valid {
			n.Label = label.String
		}
		// Unknown categories flow through; snapshot sanitization is the
		// single place malformed rows get dropped.
		n.Category = model.Category(category)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func (s *SQLite) loadLinks(ctx context.Context) ([]model.Link, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, target, weight FROM links`)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var links []model.Link
	for rows.Next() {
		var l model.Link
		if err := rows.Scan(&l.Source, &l.Target, &l.Weight); err != nil {
			continue
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}

// Count returns the node count without loading the full snapshot; the
// source validator uses it as a cheap liveness probe.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
