// Package reconcile merges an incoming telemetry snapshot into the live
// simulation working set. The merge is keyed by node id and preserves
// position, velocity, and pin state for surviving ids so the layout
// never jumps when data is replaced wholesale.
package reconcile

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/lattice/pkg/model"
	"github.com/vanderheijden86/lattice/pkg/sim"
)

// DashedWeightThreshold is the weight below which a link renders dashed
// to signal low confidence.
const DashedWeightThreshold = 4.0

// Stats summarizes one reconciliation pass.
type Stats struct {
	Added   int // nodes spawned at the surface center
	Removed int // nodes scheduled for exit
	Updated int // surviving nodes refreshed in place
	Links   int // links kept after endpoint resolution
	Dropped int // malformed snapshot entries discarded
}

// LinkOpacity derives render opacity from link weight.
func LinkOpacity(weight float64) float64 {
	op := 0.15 + weight/40
	if op > 0.7 {
		op = 0.7
	}
	return op
}

// LinkStroke derives stroke width from link weight.
func LinkStroke(weight float64) float64 {
	return 1.5 + weight/8
}

// Merge folds snap into the current working set and returns the next
// one. Surviving ids keep their exact *sim.Node (and therefore their
// position/velocity/pin state) with attributes refreshed in place; new
// ids spawn at spawn with zero velocity and an entrance ramp; ids
// absent from the snapshot are scheduled for an exit ramp and excluded
// from the logical graph immediately. Links are rebuilt against the
// merged set, keeping only those whose endpoints both survived.
// Merging the same snapshot twice produces no movement beyond the
// forces' own convergence.
func Merge(current []*sim.Node, snap model.Snapshot, spawn r2.Vec) ([]*sim.Node, []*sim.Link, Stats) {
	clean, dropped := snap.Sanitize()
	stats := Stats{Dropped: dropped}

	live := make(map[string]*sim.Node, len(current))
	for _, n := range current {
		if n.Alive() {
			live[n.ID] = n
		}
	}

	incoming := make(map[string]bool, len(clean.Nodes))
	merged := make([]*sim.Node, 0, len(clean.Nodes))
	byID := make(map[string]*sim.Node, len(clean.Nodes))

	for _, in := range clean.Nodes {
		incoming[in.ID] = true
		if existing, ok := live[in.ID]; ok {
			// Attributes refresh in place; physics state is untouched.
			existing.Node = in
			merged = append(merged, existing)
			byID[in.ID] = existing
			stats.Updated++
			continue
		}
		n := &sim.Node{
			Node:  in,
			Pos:   spawn,
			Phase: sim.PhaseEntering,
		}
		merged = append(merged, n)
		byID[in.ID] = n
		stats.Added++
	}

	// Schedule exits for ids the snapshot no longer contains, and carry
	// over nodes already mid-exit so their fade-out completes. A body
	// mid-exit whose id reappeared was respawned fresh above; the old
	// body finishes fading alongside it.
	for _, n := range current {
		switch {
		case n.Alive() && !incoming[n.ID]:
			n.Phase = sim.PhaseExiting
			n.Pinned = false
			merged = append(merged, n)
			stats.Removed++
		case !n.Alive():
			merged = append(merged, n)
		}
	}

	links := make([]*sim.Link, 0, len(clean.Links))
	for _, l := range clean.Links {
		src, ok := byID[l.Source]
		if !ok {
			continue
		}
		dst, ok := byID[l.Target]
		if !ok {
			continue
		}
		links = append(links, &sim.Link{
			Source:  src,
			Target:  dst,
			Weight:  l.Weight,
			Opacity: LinkOpacity(l.Weight),
			Stroke:  LinkStroke(l.Weight),
			Dashed:  l.Weight < DashedWeightThreshold,
		})
	}
	stats.Links = len(links)

	return merged, links, stats
}
