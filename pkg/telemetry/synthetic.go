package telemetry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/vanderheijden86/lattice/pkg/model"
)

// Synthetic churn tuning. Per fetch, roughly removeChance of the
// population departs and the generator tops the population back up to
// its target size, so entrances and exits both occur continuously.
const (
	syntheticRemoveChance = 0.06
	syntheticWalkStep     = 3.0
	syntheticLinkFactor   = 1.4 // links per node, on average
)

var categoryIDPrefix = map[model.Category]string{
	model.CategoryQuantum:    "qubit",
	model.CategoryAgent:      "agent",
	model.CategoryError:      "fault",
	model.CategoryProvenance: "trace",
	model.CategoryPolicy:     "policy",
	model.CategoryHardware:   "hw",
}

// Synthetic generates an evolving benchmark topology without any
// external system. Identical seeds produce identical fetch sequences,
// which the tests rely on.
type Synthetic struct {
	mu    sync.Mutex
	rng   *rand.Rand
	size  int
	seq   int
	nodes []model.Node
	links []model.Link
}

// NewSynthetic creates a generator targeting size nodes.
func NewSynthetic(seed int64, size int) *Synthetic {
	if size < 2 {
		size = 2
	}
	return &Synthetic{
		rng:  rand.New(rand.NewSource(seed)),
		size: size,
	}
}

// Name implements Provider.
func (s *Synthetic) Name() string { return "synthetic" }

// Fetch advances the generator one step and returns the new snapshot.
// Fidelity random-walks, a few nodes depart, and the population is
// topped back up with fresh ids so the graph keeps changing shape.
func (s *Synthetic) Fetch(ctx context.Context, category string) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.walkFidelity()
	s.removeSome()
	s.topUp()
	s.reweaveLinks()

	// Callers own the returned snapshot; hand out copies.
	snap := model.Snapshot{
		Nodes: append([]model.Node(nil), s.nodes...),
		Links: append([]model.Link(nil), s.links...),
	}
	return FilterCategory(snap, category), nil
}

func (s *Synthetic) walkFidelity() {
	for i := range s.nodes {
		delta := (s.rng.Float64()*2 - 1) * syntheticWalkStep
		s.nodes[i].Fidelity = model.ClampFidelity(s.nodes[i].Fidelity + delta)
	}
}

func (s *Synthetic) removeSome() {
	if len(s.nodes) == 0 {
		return
	}
	kept := s.nodes[:0]
	for _, n := range s.nodes {
		if s.rng.Float64() < syntheticRemoveChance {
			continue
		}
		kept = append(kept, n)
	}
	// Never drain completely; the viewer should always have something.
	if len(kept) == 0 {
		kept = s.nodes[:1]
	}
	s.nodes = kept
}

func (s *Synthetic) topUp() {
	for len(s.nodes) < s.size {
		cat := model.Categories[s.rng.Intn(len(model.Categories))]
		s.seq++
		s.nodes = append(s.nodes, model.Node{
			ID:       fmt.Sprintf("%s-%d", categoryIDPrefix[cat], s.seq),
			Label:    fmt.Sprintf("%s %d", cat, s.seq),
			Category: cat,
			Fidelity: model.FidelityMin + s.rng.Float64()*(model.FidelityMax-model.FidelityMin),
		})
	}
}

// reweaveLinks rebuilds the link set against the surviving population.
// Existing pair weights drift rather than being re-rolled, so link
// styling changes smoothly between fetches.
func (s *Synthetic) reweaveLinks() {
	prev := make(map[[2]string]float64, len(s.links))
	for _, l := range s.links {
		prev[[2]string{l.Source, l.Target}] = l.Weight
	}

	want := int(float64(len(s.nodes)) * syntheticLinkFactor)
	seen := make(map[[2]string]bool, want)
	links := make([]model.Link, 0, want)
	// Bounded attempts: tiny populations can have fewer distinct pairs
	// than the target link count.
	for tries := 0; len(links) < want && tries < want*20; tries++ {
		a := s.nodes[s.rng.Intn(len(s.nodes))].ID
		b := s.nodes[s.rng.Intn(len(s.nodes))].ID
		if a == b {
			continue
		}
		key := [2]string{a, b}
		if seen[key] || seen[[2]string{b, a}] {
			continue
		}
		seen[key] = true

		w, ok := prev[key]
		if !ok {
			w, ok = prev[[2]string{b, a}]
		}
		if ok {
			w = clampWeight(w + (s.rng.Float64()*2-1)*2)
		} else {
			w = clampWeight(s.rng.Float64() * 24)
		}
		links = append(links, model.Link{Source: a, Target: b, Weight: w})
	}
	s.links = links
}

func clampWeight(w float64) float64 {
	if w < 0.5 {
		return 0.5
	}
	return w
}
