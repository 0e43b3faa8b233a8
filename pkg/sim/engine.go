// Package sim implements the 2D force-directed layout engine behind the
// lattice graph view. The engine owns a working set of simulation nodes
// and resolved links and advances them one tick at a time; reconciliation
// (pkg/reconcile) swaps the working set underneath it without resetting
// the continuity of surviving nodes.
package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/lattice/pkg/model"
)

// Tuning constants. The entrance/exit ramp and reheat bounds are fixed,
// tested values; see the engine tests before changing them.
const (
	// RampDuration is how long a node takes to fade in on entry or fade
	// out before removal.
	RampDuration = 400e-3 // seconds

	// linkDistance is the target separation the link spring pulls
	// connected nodes toward.
	linkDistance = 9.0

	// chargeStrength scales pairwise repulsion.
	chargeStrength = 30.0

	// centerStrength pulls the whole system toward the surface center.
	centerStrength = 0.05

	// collideMargin keeps node circles from touching.
	collideMargin = 0.6

	// alphaMin is the kinetic floor below which forces stop being
	// applied; ramps keep ticking so exits still complete.
	alphaMin = 0.005

	// alphaDecay cools the simulation each tick.
	alphaDecay = 0.03

	// reheatAlpha is the bounded energy bump applied after a topology
	// change so the layout resettles instead of snapping.
	reheatAlpha = 0.45

	// velocityDecay is per-tick velocity damping.
	velocityDecay = 0.35
)

// Phase tracks a node's lifecycle inside the simulation.
type Phase int

const (
	// PhaseLive is a fully present node.
	PhaseLive Phase = iota
	// PhaseEntering ramps radius/opacity from 0 after first appearance.
	PhaseEntering
	// PhaseExiting ramps to 0 before the node is dropped.
	PhaseExiting
)

// Node is a simulation node: the telemetry attributes plus transient
// physics state. Physics state survives snapshot replacement for
// unchanged ids; attributes are refreshed in place.
type Node struct {
	model.Node

	Pos r2.Vec
	Vel r2.Vec

	// Pinned holds the node at PinPos with zero effective mass while
	// the user drags it.
	Pinned bool
	PinPos r2.Vec

	Phase Phase
	// Ramp is the entrance/exit visibility multiplier in [0,1].
	Ramp float64
}

// Radius derives the node's circle radius from fidelity.
func (n *Node) Radius() float64 {
	return 1.0 + n.Fidelity/40.0
}

// Alive reports whether the node is still part of the logical graph
// (exiting nodes are only kept for their fade-out).
func (n *Node) Alive() bool {
	return n.Phase != PhaseExiting
}

// Link is a resolved edge between two simulation nodes, carrying the
// render style derived from its weight.
type Link struct {
	Source *Node
	Target *Node
	Weight float64

	Opacity float64
	Stroke  float64
	Dashed  bool
}

// Engine runs the force integration. It is owned by exactly one graph
// view and is not safe for concurrent use; the view applies all
// mutations between ticks.
type Engine struct {
	width    float64
	height   float64
	nodes    []*Node
	links    []*Link
	byID     map[string]*Node
	alpha    float64
	disposed bool
}

// New creates an engine for a surface of the given size.
func New(width, height float64) *Engine {
	return &Engine{
		width:  width,
		height: height,
		byID:   make(map[string]*Node),
		alpha:  1.0,
	}
}

// Resize updates the surface bounds; the centering force follows.
func (e *Engine) Resize(width, height float64) {
	e.width = width
	e.height = height
}

// Center returns the surface center, where new nodes spawn.
func (e *Engine) Center() r2.Vec {
	return r2.Vec{X: e.width / 2, Y: e.height / 2}
}

// Nodes returns the current working set. Callers must not retain the
// slice across a Reseed.
func (e *Engine) Nodes() []*Node { return e.nodes }

// Links returns the current resolved links.
func (e *Engine) Links() []*Link { return e.links }

// NodeByID looks up a live simulation node.
func (e *Engine) NodeByID(id string) (*Node, bool) {
	n, ok := e.byID[id]
	return n, ok
}

// Reseed replaces the working set. This is a warm restart: callers pass
// the *same* Node pointers for surviving ids (pkg/reconcile guarantees
// this), so position, velocity, and pin state carry over untouched.
// Reseed reheats the simulation so the new topology visibly resettles.
func (e *Engine) Reseed(nodes []*Node, links []*Link) {
	if e.disposed {
		return
	}
	e.nodes = nodes
	e.links = links
	e.byID = make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		if n.Alive() {
			e.byID[n.ID] = n
		}
	}
	e.Reheat()
}

// Reheat raises the simulation temperature, bounded by reheatAlpha so a
// burst of topology changes cannot wind the system up past the bound.
func (e *Engine) Reheat() {
	if e.alpha < reheatAlpha {
		e.alpha = reheatAlpha
	}
}

// Alpha exposes the current temperature, mainly for tests.
func (e *Engine) Alpha() float64 { return e.alpha }

// Pin holds the node at pos, removing it from free simulation.
func (e *Engine) Pin(id string, pos r2.Vec) bool {
	n, ok := e.byID[id]
	if !ok {
		return false
	}
	n.Pinned = true
	n.PinPos = pos
	n.Vel = r2.Vec{}
	e.Reheat()
	return true
}

// MovePin updates a pinned node's held position.
func (e *Engine) MovePin(id string, pos r2.Vec) {
	if n, ok := e.byID[id]; ok && n.Pinned {
		n.PinPos = pos
	}
}

// Unpin releases the node back into free simulation.
func (e *Engine) Unpin(id string) {
	if n, ok := e.byID[id]; ok {
		n.Pinned = false
	}
}

// NodeAt returns the topmost node whose circle contains the point, with
// a small slop so thin nodes stay clickable.
func (e *Engine) NodeAt(p r2.Vec) (*Node, bool) {
	const slop = 1.5
	var best *Node
	bestD := math.MaxFloat64
	for _, n := range e.nodes {
		if !n.Alive() {
			continue
		}
		d := math.Hypot(n.Pos.X-p.X, n.Pos.Y-p.Y)
		if d <= n.Radius()+slop && d < bestD {
			best, bestD = n, d
		}
	}
	return best, best != nil
}

// Dispose stops the engine permanently. Ticks after Dispose are no-ops.
func (e *Engine) Dispose() {
	e.disposed = true
	e.nodes = nil
	e.links = nil
	e.byID = nil
}

// Disposed reports whether Dispose has been called.
func (e *Engine) Disposed() bool { return e.disposed }

// Tick advances the simulation by dt seconds: applies forces scaled by
// the current temperature, integrates, resolves collisions, and advances
// entrance/exit ramps. Exited nodes are dropped from the working set.
func (e *Engine) Tick(dt float64) {
	if e.disposed || dt <= 0 {
		return
	}

	// Pinned nodes track the held position even after the layout has
	// cooled below alphaMin, so a long drag never stalls.
	for _, n := range e.nodes {
		if n.Pinned {
			n.Pos = n.PinPos
			n.Vel = r2.Vec{}
		}
	}

	if e.alpha > alphaMin {
		e.applyLinkForce()
		e.applyCharge()
		e.applyCenter()
		e.integrate(dt)
		e.resolveCollisions()
		e.alpha *= 1 - alphaDecay
	}

	e.advanceRamps(dt)
}

func (e *Engine) applyLinkForce() {
	for _, l := range e.links {
		s, t := l.Source, l.Target
		d := r2.Sub(t.Pos, s.Pos)
		dist := math.Hypot(d.X, d.Y)
		if dist == 0 {
			continue
		}
		// Spring displacement toward the target separation, split
		// between both endpoints.
		k := (dist - linkDistance) / dist * e.alpha * 0.5
		push := r2.Scale(k, d)
		if !s.Pinned {
			s.Vel = r2.Add(s.Vel, push)
		}
		if !t.Pinned {
			t.Vel = r2.Sub(t.Vel, push)
		}
	}
}

func (e *Engine) applyCharge() {
	for i, a := range e.nodes {
		for _, b := range e.nodes[i+1:] {
			d := r2.Sub(b.Pos, a.Pos)
			distSq := d.X*d.X + d.Y*d.Y
			if distSq < 1e-6 {
				// Coincident nodes (fresh spawns at center): nudge
				// deterministically so repulsion can take over.
				d = r2.Vec{X: 0.01 * float64(i+1), Y: 0.013}
				distSq = d.X*d.X + d.Y*d.Y
			}
			f := chargeStrength * e.alpha / distSq
			push := r2.Scale(f, d)
			if !a.Pinned {
				a.Vel = r2.Sub(a.Vel, push)
			}
			if !b.Pinned {
				b.Vel = r2.Add(b.Vel, push)
			}
		}
	}
}

func (e *Engine) applyCenter() {
	c := e.Center()
	for _, n := range e.nodes {
		if n.Pinned {
			continue
		}
		n.Vel = r2.Add(n.Vel, r2.Scale(centerStrength*e.alpha, r2.Sub(c, n.Pos)))
	}
}

func (e *Engine) integrate(dt float64) {
	// dt is normalized against the nominal frame so tuning constants
	// behave the same across frame rates.
	step := dt / (1.0 / 30.0)
	for _, n := range e.nodes {
		if n.Pinned {
			n.Pos = n.PinPos
			n.Vel = r2.Vec{}
			continue
		}
		n.Vel = r2.Scale(1-velocityDecay, n.Vel)
		n.Pos = r2.Add(n.Pos, r2.Scale(step, n.Vel))
	}
}

func (e *Engine) resolveCollisions() {
	for i, a := range e.nodes {
		for _, b := range e.nodes[i+1:] {
			minDist := a.Radius() + b.Radius() + collideMargin
			d := r2.Sub(b.Pos, a.Pos)
			dist := math.Hypot(d.X, d.Y)
			if dist >= minDist || dist == 0 {
				continue
			}
			overlap := (minDist - dist) / dist
			shift := r2.Scale(overlap*0.5, d)
			switch {
			case a.Pinned && b.Pinned:
				// Both held: leave them.
			case a.Pinned:
				b.Pos = r2.Add(b.Pos, r2.Scale(2, shift))
			case b.Pinned:
				a.Pos = r2.Sub(a.Pos, r2.Scale(2, shift))
			default:
				a.Pos = r2.Sub(a.Pos, shift)
				b.Pos = r2.Add(b.Pos, shift)
			}
		}
	}
}

func (e *Engine) advanceRamps(dt float64) {
	step := dt / RampDuration
	kept := e.nodes[:0]
	removed := false
	for _, n := range e.nodes {
		switch n.Phase {
		case PhaseEntering:
			n.Ramp += step
			if n.Ramp >= 1 {
				n.Ramp = 1
				n.Phase = PhaseLive
			}
		case PhaseExiting:
			n.Ramp -= step
			if n.Ramp <= 0 {
				removed = true
				continue // dropped from the working set
			}
		}
		kept = append(kept, n)
	}
	e.nodes = kept

	if removed {
		links := e.links[:0]
		for _, l := range e.links {
			if containsNode(e.nodes, l.Source) && containsNode(e.nodes, l.Target) {
				links = append(links, l)
			}
		}
		e.links = links
	}
}

func containsNode(nodes []*Node, n *Node) bool {
	for _, m := range nodes {
		if m == n {
			return true
		}
	}
	return false
}
