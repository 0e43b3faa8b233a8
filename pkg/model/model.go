// Package model defines the core data types for lattice: telemetry graph
// nodes, links, and snapshots as delivered by a telemetry provider.
package model

import (
	"strings"
)

// Category is the node grouping taxonomy. Every node belongs to exactly
// one category; the filter set selects which categories are rendered.
type Category string

const (
	CategoryQuantum    Category = "quantum"
	CategoryAgent      Category = "agent"
	CategoryError      Category = "error"
	CategoryProvenance Category = "provenance"
	CategoryPolicy     Category = "policy"
	CategoryHardware   Category = "hardware"
)

// Categories lists all known categories in display order.
var Categories = []Category{
	CategoryQuantum,
	CategoryAgent,
	CategoryError,
	CategoryProvenance,
	CategoryPolicy,
	CategoryHardware,
}

// ParseCategory normalizes a raw category string. Returns false for
// unknown categories so callers can drop malformed nodes.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.TrimSpace(strings.ToLower(raw)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Fidelity bounds. Fidelity is the node's benchmark quality metric and is
// clamped to this range everywhere it is written.
const (
	FidelityMin = 10.0
	FidelityMax = 100.0
)

// ClampFidelity clamps v to [FidelityMin, FidelityMax].
func ClampFidelity(v float64) float64 {
	if v < FidelityMin {
		return FidelityMin
	}
	if v > FidelityMax {
		return FidelityMax
	}
	return v
}

// Node is one telemetry graph node. ID is the identity key across
// snapshot replacements; everything else may be refreshed in place.
type Node struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	Fidelity float64  `json:"val"`
}

// Link is a weighted edge between two nodes, referenced by id.
type Link struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// Snapshot is the complete external description of the graph at one
// point in time. It has no identity of its own; it replaces the live
// working set via reconciliation.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Sanitize returns a copy of the snapshot with malformed entries dropped
// and duplicate node ids resolved (the later entry in iteration order
// wins). Fidelity is clamped, links must reference ids present in the
// sanitized node set, and negative weights are rejected. The returned
// count is the number of dropped entries.
func (s Snapshot) Sanitize() (Snapshot, int) {
	dropped := 0

	index := make(map[string]int, len(s.Nodes))
	nodes := make([]Node, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.ID == "" {
			dropped++
			continue
		}
		cat, ok := ParseCategory(string(n.Category))
		if !ok {
			dropped++
			continue
		}
		n.Category = cat
		n.Fidelity = ClampFidelity(n.Fidelity)
		if n.Label == "" {
			n.Label = n.ID
		}
		if at, seen := index[n.ID]; seen {
			nodes[at] = n // later entry wins
			continue
		}
		index[n.ID] = len(nodes)
		nodes = append(nodes, n)
	}

	links := make([]Link, 0, len(s.Links))
	for _, l := range s.Links {
		if l.Source == "" || l.Target == "" || l.Weight < 0 {
			dropped++
			continue
		}
		if _, ok := index[l.Source]; !ok {
			dropped++
			continue
		}
		if _, ok := index[l.Target]; !ok {
			dropped++
			continue
		}
		links = append(links, l)
	}

	return Snapshot{Nodes: nodes, Links: links}, dropped
}

// NodeByID builds an id-keyed index over the snapshot's nodes.
func (s Snapshot) NodeByID() map[string]Node {
	m := make(map[string]Node, len(s.Nodes))
	for _, n := range s.Nodes {
		m[n.ID] = n
	}
	return m
}
