// Package analysis computes topology metrics over the live graph for
// the hover overlay and the status bar.
package analysis

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/vanderheijden86/lattice/pkg/metrics"
	"github.com/vanderheijden86/lattice/pkg/sim"
)

// Connectivity summarizes the link topology of the visible graph.
type Connectivity struct {
	// Components is the number of connected components.
	Components int
	// LargestComponent is the node count of the biggest component.
	LargestComponent int
	// Isolated is the number of nodes with no links.
	Isolated int

	degree    map[string]int
	component map[string]int
}

// Degree returns the link count of a node.
func (c Connectivity) Degree(id string) int { return c.degree[id] }

// ComponentSize returns the size of the component containing id, zero
// for unknown ids.
func (c Connectivity) ComponentSize(id string) int { return c.component[id] }

// Compute builds connectivity stats for the given working set. Exiting
// nodes are ignored; they are already out of the logical graph.
func Compute(nodes []*sim.Node, links []*sim.Link) Connectivity {
	defer metrics.Timer(metrics.Connectivity)()
	c := Connectivity{
		degree:    make(map[string]int, len(nodes)),
		component: make(map[string]int, len(nodes)),
	}

	g := simple.NewUndirectedGraph()
	toID := make(map[string]int64, len(nodes))
	fromID := make(map[int64]string, len(nodes))
	var next int64
	for _, n := range nodes {
		if !n.Alive() {
			continue
		}
		toID[n.ID] = next
		fromID[next] = n.ID
		g.AddNode(simple.Node(next))
		c.degree[n.ID] = 0
		next++
	}

	for _, l := range links {
		if !l.Source.Alive() || !l.Target.Alive() {
			continue
		}
		a, ok := toID[l.Source.ID]
		if !ok {
			continue
		}
		b, ok := toID[l.Target.ID]
		if !ok || a == b {
			continue
		}
		g.SetEdge(simple.Edge{F: simple.Node(a), T: simple.Node(b)})
		c.degree[l.Source.ID]++
		c.degree[l.Target.ID]++
	}

	for _, comp := range topo.ConnectedComponents(g) {
		c.Components++
		if len(comp) > c.LargestComponent {
			c.LargestComponent = len(comp)
		}
		for _, gn := range comp {
			c.component[fromID[gn.ID()]] = len(comp)
		}
	}
	for _, d := range c.degree {
		if d == 0 {
			c.Isolated++
		}
	}
	return c
}
