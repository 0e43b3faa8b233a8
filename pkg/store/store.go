// Package store holds the live working set behind the graph view: the
// canonical simulation nodes and links produced by reconciliation, plus
// the user's category filter. The store is the single source of truth;
// the simulation engine only ever sees the visible projection.
package store

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/lattice/pkg/metrics"
	"github.com/vanderheijden86/lattice/pkg/model"
	"github.com/vanderheijden86/lattice/pkg/reconcile"
	"github.com/vanderheijden86/lattice/pkg/sim"
)

// Store is the canonical graph state. All methods are safe for
// concurrent use, though in practice the view owns it and mutates it
// between render ticks.
type Store struct {
	mu     sync.RWMutex
	nodes  []*sim.Node
	links  []*sim.Link
	filter model.FilterSet
}

// New returns an empty store with every category visible.
func New() *Store {
	return &Store{filter: model.NewFilterSet()}
}

// ReplaceSnapshot reconciles snap into the working set. New nodes spawn
// at spawn. The previous working set's surviving nodes keep their
// physics state; see reconcile.Merge for the full contract.
func (s *Store) ReplaceSnapshot(snap model.Snapshot, spawn r2.Vec) reconcile.Stats {
	defer metrics.Timer(metrics.Reconcile)()
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes, links, stats := reconcile.Merge(s.nodes, snap, spawn)
	s.nodes = nodes
	s.links = links
	return stats
}

// ApplyJitter applies delta to every visible live node's fidelity,
// clamped to the valid range. Hidden and exiting nodes are skipped.
func (s *Store) ApplyJitter(delta func(*sim.Node) float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.nodes {
		if !n.Alive() || !s.filter.Has(n.Category) {
			continue
		}
		n.Fidelity = model.ClampFidelity(n.Fidelity + delta(n))
	}
}

// Toggle flips a category's visibility. Disabling the last enabled
// category is a no-op; the return value reports whether anything
// changed (and therefore whether the engine needs a re-seed).
func (s *Store) Toggle(c model.Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.Toggle(c)
}

// Filter returns a copy of the current filter set.
func (s *Store) Filter() model.FilterSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter.Clone()
}

// Visible returns the filtered projection: live nodes whose category is
// enabled, exiting nodes regardless of category (so their fade-out
// ticks to completion), and links whose endpoints are both visible and
// live. The backing slices are fresh; the node pointers are shared so
// physics state flows through.
func (s *Store) Visible() ([]*sim.Node, []*sim.Link) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*sim.Node, 0, len(s.nodes))
	in := make(map[*sim.Node]bool, len(s.nodes))
	for _, n := range s.nodes {
		if !n.Alive() || s.filter.Has(n.Category) {
			nodes = append(nodes, n)
			in[n] = true
		}
	}
	links := make([]*sim.Link, 0, len(s.links))
	for _, l := range s.links {
		if in[l.Source] && in[l.Target] && l.Source.Alive() && l.Target.Alive() {
			links = append(links, l)
		}
	}
	return nodes, links
}

// Prune drops nodes whose exit ramp has completed, along with their
// links, and returns how many were removed. The view calls this after
// each simulation tick.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.nodes[:0]
	removed := 0
	for _, n := range s.nodes {
		if n.Phase == sim.PhaseExiting && n.Ramp <= 0 {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	if removed == 0 {
		s.nodes = kept
		return 0
	}
	s.nodes = kept

	in := make(map[*sim.Node]bool, len(s.nodes))
	for _, n := range s.nodes {
		in[n] = true
	}
	links := s.links[:0]
	for _, l := range s.links {
		if in[l.Source] && in[l.Target] {
			links = append(links, l)
		}
	}
	s.links = links
	return removed
}

// Counts returns the canonical node and link totals (including hidden
// categories, excluding exiting bodies).
func (s *Store) Counts() (nodes, links int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		if n.Alive() {
			nodes++
		}
	}
	return nodes, len(s.links)
}
