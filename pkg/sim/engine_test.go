package sim

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/lattice/pkg/model"
)

const frame = 1.0 / 30.0

func liveNode(id string, x, y float64) *Node {
	return &Node{
		Node: model.Node{ID: id, Category: model.CategoryAgent, Fidelity: 50},
		Pos:  r2.Vec{X: x, Y: y},
		Ramp: 1,
	}
}

func TestReseedKeepsContinuity(t *testing.T) {
	e := New(80, 24)
	a := liveNode("a", 10, 5)
	a.Vel = r2.Vec{X: 0.3, Y: 0}
	e.Reseed([]*Node{a}, nil)

	b := liveNode("b", 30, 5)
	e.Reseed([]*Node{a, b}, nil)

	got, ok := e.NodeByID("a")
	if !ok || got != a {
		t.Fatal("surviving node lost across reseed")
	}
	if got.Pos != (r2.Vec{X: 10, Y: 5}) || got.Vel != (r2.Vec{X: 0.3, Y: 0}) {
		t.Fatalf("reseed disturbed physics state: pos=%v vel=%v", got.Pos, got.Vel)
	}
}

func TestReheatIsBounded(t *testing.T) {
	e := New(80, 24)
	for e.Alpha() > alphaMin {
		e.Tick(frame)
	}
	cooled := e.Alpha()
	if cooled >= reheatAlpha {
		t.Fatalf("engine did not cool below the reheat bound: alpha=%v", cooled)
	}

	e.Reheat()
	if e.Alpha() != reheatAlpha {
		t.Fatalf("reheat alpha = %v, want %v", e.Alpha(), reheatAlpha)
	}
	// Repeated reheats must not wind the system up further.
	e.Reheat()
	e.Reheat()
	if e.Alpha() != reheatAlpha {
		t.Fatalf("stacked reheats raised alpha to %v", e.Alpha())
	}
}

func TestPinHoldsNodeThroughTicks(t *testing.T) {
	e := New(80, 24)
	a := liveNode("a", 10, 5)
	b := liveNode("b", 12, 5)
	e.Reseed([]*Node{a, b}, []*Link{{Source: a, Target: b, Weight: 5}})

	hold := r2.Vec{X: 40, Y: 12}
	if !e.Pin("a", hold) {
		t.Fatal("pin on live node failed")
	}
	for i := 0; i < 20; i++ {
		e.Tick(frame)
	}
	if a.Pos != hold {
		t.Fatalf("pinned node drifted to %v", a.Pos)
	}
	if a.Vel != (r2.Vec{}) {
		t.Fatalf("pinned node accumulated velocity %v", a.Vel)
	}

	moved := r2.Vec{X: 50, Y: 14}
	e.MovePin("a", moved)
	e.Tick(frame)
	if a.Pos != moved {
		t.Fatalf("pin did not follow the drag: pos=%v", a.Pos)
	}

	e.Unpin("a")
	for i := 0; i < 30; i++ {
		e.Tick(frame)
	}
	if a.Pos == moved {
		t.Fatal("released node never resumed simulating")
	}
}

func TestPinFollowsDragAfterCooling(t *testing.T) {
	e := New(80, 24)
	a := liveNode("a", 10, 5)
	b := liveNode("b", 12, 5)
	e.Reseed([]*Node{a, b}, []*Link{{Source: a, Target: b, Weight: 5}})

	if !e.Pin("a", r2.Vec{X: 10, Y: 5}) {
		t.Fatal("pin on live node failed")
	}
	// Run well past the point where alpha decays below its floor, as
	// happens during a slow, multi-second drag.
	for i := 0; i < 400; i++ {
		e.Tick(frame)
	}
	if e.Alpha() > alphaMin {
		t.Fatalf("layout did not cool: alpha=%v", e.Alpha())
	}

	moved := r2.Vec{X: 50, Y: 14}
	e.MovePin("a", moved)
	e.Tick(frame)
	if a.Pos != moved {
		t.Fatalf("pin stopped following once cooled: pos=%v want %v", a.Pos, moved)
	}
}

func TestPinUnknownID(t *testing.T) {
	e := New(80, 24)
	if e.Pin("ghost", r2.Vec{}) {
		t.Fatal("pin on missing id reported success")
	}
}

func TestEntranceRampCompletes(t *testing.T) {
	e := New(80, 24)
	n := &Node{
		Node:  model.Node{ID: "n", Category: model.CategoryQuantum, Fidelity: 60},
		Pos:   e.Center(),
		Phase: PhaseEntering,
	}
	e.Reseed([]*Node{n}, nil)

	ticks := int(math.Ceil(RampDuration/frame)) + 1
	for i := 0; i < ticks; i++ {
		e.Tick(frame)
	}
	if n.Phase != PhaseLive || n.Ramp != 1 {
		t.Fatalf("entrance ramp stuck: phase=%v ramp=%v", n.Phase, n.Ramp)
	}
}

func TestExitRampDropsNodeAndItsLinks(t *testing.T) {
	e := New(80, 24)
	a := liveNode("a", 10, 5)
	b := liveNode("b", 20, 5)
	e.Reseed([]*Node{a, b}, []*Link{{Source: a, Target: b, Weight: 5}})

	b.Phase = PhaseExiting
	ticks := int(math.Ceil(RampDuration/frame)) + 1
	for i := 0; i < ticks; i++ {
		e.Tick(frame)
	}

	if len(e.Nodes()) != 1 || e.Nodes()[0] != a {
		t.Fatalf("working set after exit = %d nodes", len(e.Nodes()))
	}
	if len(e.Links()) != 0 {
		t.Fatal("link to an exited node survived")
	}
}

func TestCollisionsSeparateOverlappingNodes(t *testing.T) {
	e := New(80, 24)
	a := liveNode("a", 40, 12)
	b := liveNode("b", 40.1, 12)
	e.Reseed([]*Node{a, b}, nil)

	for i := 0; i < 60; i++ {
		e.Tick(frame)
	}
	dist := math.Hypot(b.Pos.X-a.Pos.X, b.Pos.Y-a.Pos.Y)
	if min := a.Radius() + b.Radius(); dist < min {
		t.Fatalf("nodes still overlapping: dist=%v min=%v", dist, min)
	}
}

func TestNodeAtHitTest(t *testing.T) {
	e := New(80, 24)
	a := liveNode("a", 10, 5)
	far := liveNode("far", 60, 20)
	e.Reseed([]*Node{a, far}, nil)

	got, ok := e.NodeAt(r2.Vec{X: 10.5, Y: 5})
	if !ok || got != a {
		t.Fatalf("hit test at node center missed: got %v", got)
	}
	if _, ok := e.NodeAt(r2.Vec{X: 35, Y: 12}); ok {
		t.Fatal("hit test in empty space reported a node")
	}
}

func TestDisposeStopsEverything(t *testing.T) {
	e := New(80, 24)
	a := liveNode("a", 10, 5)
	e.Reseed([]*Node{a}, nil)
	e.Dispose()

	if !e.Disposed() {
		t.Fatal("dispose flag not set")
	}
	e.Tick(frame) // must be a no-op, not a panic
	e.Reseed([]*Node{liveNode("b", 1, 1)}, nil)
	if len(e.Nodes()) != 0 {
		t.Fatal("reseed after dispose repopulated the engine")
	}
}

func TestChargeSeparatesCoincidentSpawns(t *testing.T) {
	e := New(80, 24)
	c := e.Center()
	nodes := make([]*Node, 4)
	for i := range nodes {
		nodes[i] = &Node{
			Node:  model.Node{ID: string(rune('a' + i)), Category: model.CategoryAgent, Fidelity: 50},
			Pos:   c,
			Phase: PhaseEntering,
		}
	}
	e.Reseed(nodes, nil)

	for i := 0; i < 90; i++ {
		e.Tick(frame)
	}
	for i, a := range nodes {
		for _, b := range nodes[i+1:] {
			if a.Pos == b.Pos {
				t.Fatalf("nodes %s and %s never separated", a.ID, b.ID)
			}
		}
	}
}
