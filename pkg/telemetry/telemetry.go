// Package telemetry supplies graph snapshots to the viewer. A Provider
// abstracts where snapshots come from: a synthetic generator, a JSON
// snapshot file, an HTTP endpoint, or a SQLite database. The package
// also discovers and validates candidate sources so the viewer can pick
// the freshest one without being told.
package telemetry

import (
	"context"
	"errors"

	"github.com/vanderheijden86/lattice/pkg/model"
)

// Provider produces the latest full graph snapshot. Fetch replaces the
// previous snapshot wholesale; reconciliation downstream turns the
// replacement into incremental changes.
type Provider interface {
	// Name identifies the provider in logs and the status bar.
	Name() string
	// Fetch returns the current snapshot, restricted to the given
	// category when it is non-empty ("" fetches everything). It must
	// honor ctx cancellation; a fetch abandoned by the caller must not
	// leave goroutines behind.
	Fetch(ctx context.Context, category string) (model.Snapshot, error)
}

// FilterCategory restricts a snapshot to one category. Links survive
// only when both endpoints do. An empty category returns the snapshot
// untouched.
func FilterCategory(snap model.Snapshot, category string) model.Snapshot {
	if category == "" {
		return snap
	}
	kept := make(map[string]bool, len(snap.Nodes))
	var nodes []model.Node
	for _, n := range snap.Nodes {
		if string(n.Category) != category {
			continue
		}
		kept[n.ID] = true
		nodes = append(nodes, n)
	}
	var links []model.Link
	for _, l := range snap.Links {
		if kept[l.Source] && kept[l.Target] {
			links = append(links, l)
		}
	}
	return model.Snapshot{Nodes: nodes, Links: links}
}

// ErrNoSources is returned when discovery finds nothing usable.
var ErrNoSources = errors.New("no valid telemetry sources discovered")
