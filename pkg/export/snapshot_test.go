package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/lattice/pkg/model"
	"github.com/vanderheijden86/lattice/pkg/sim"

	"gonum.org/v1/gonum/spatial/r2"
)

func testGraph() ([]*sim.Node, []*sim.Link) {
	a := &sim.Node{
		Node: model.Node{ID: "q-1", Label: "alpha", Category: model.CategoryQuantum, Fidelity: 80},
		Pos:  r2.Vec{X: 10, Y: 5},
		Ramp: 1,
	}
	b := &sim.Node{
		Node: model.Node{ID: "a-1", Label: "beta", Category: model.CategoryAgent, Fidelity: 40},
		Pos:  r2.Vec{X: 30, Y: 12},
		Ramp: 1,
	}
	link := &sim.Link{Source: a, Target: b, Weight: 3, Opacity: 0.22, Stroke: 1.9, Dashed: true}
	return []*sim.Node{a, b}, []*sim.Link{link}
}

func TestWriteSVG(t *testing.T) {
	nodes, links := testGraph()
	path := filepath.Join(t.TempDir(), "out.svg")

	if err := WriteSVG(path, nodes, links, 60, 20); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	out := string(data)
	for _, want := range []string{"<svg", "alpha", "beta", "#8BE9FD", "#50FA7B", "stroke-dasharray"} {
		if !strings.Contains(out, want) {
			t.Errorf("svg output missing %q", want)
		}
	}
}

func TestWritePNG(t *testing.T) {
	nodes, links := testGraph()
	path := filepath.Join(t.TempDir(), "out.png")

	if err := WritePNG(path, nodes, links, 60, 20); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("png output is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Fatal("output is not a png")
	}
}

func TestTimestampedPath(t *testing.T) {
	p := TimestampedPath("/tmp", "svg")
	if filepath.Dir(p) != "/tmp" {
		t.Fatalf("dir = %s", filepath.Dir(p))
	}
	base := filepath.Base(p)
	if !strings.HasPrefix(base, "lattice-") || !strings.HasSuffix(base, ".svg") {
		t.Fatalf("unexpected name %s", base)
	}
}
