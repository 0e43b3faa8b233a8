package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vanderheijden86/lattice/pkg/model"
)

func TestSyntheticIsDeterministic(t *testing.T) {
	ctx := context.Background()
	a := NewSynthetic(7, 24)
	b := NewSynthetic(7, 24)

	for step := 0; step < 5; step++ {
		snapA, err := a.Fetch(ctx, "")
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		snapB, _ := b.Fetch(ctx, "")
		if len(snapA.Nodes) != len(snapB.Nodes) || len(snapA.Links) != len(snapB.Links) {
			t.Fatalf("step %d diverged: %d/%d nodes, %d/%d links",
				step, len(snapA.Nodes), len(snapB.Nodes), len(snapA.Links), len(snapB.Links))
		}
		for i := range snapA.Nodes {
			if snapA.Nodes[i] != snapB.Nodes[i] {
				t.Fatalf("step %d node %d diverged: %+v vs %+v", step, i, snapA.Nodes[i], snapB.Nodes[i])
			}
		}
	}
}

func TestSyntheticSnapshotsAreWellFormed(t *testing.T) {
	ctx := context.Background()
	s := NewSynthetic(42, 30)

	for step := 0; step < 10; step++ {
		snap, err := s.Fetch(ctx, "")
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if len(snap.Nodes) != 30 {
			t.Fatalf("step %d: population = %d, want topped up to 30", step, len(snap.Nodes))
		}
		if _, dropped := snap.Sanitize(); dropped != 0 {
			t.Fatalf("step %d: generator emitted %d malformed entries", step, dropped)
		}
		seen := make(map[string]bool)
		for _, n := range snap.Nodes {
			if seen[n.ID] {
				t.Fatalf("step %d: duplicate id %q", step, n.ID)
			}
			seen[n.ID] = true
			if n.Fidelity < model.FidelityMin || n.Fidelity > model.FidelityMax {
				t.Fatalf("step %d: fidelity %v out of range for %s", step, n.Fidelity, n.ID)
			}
		}
	}
}

func TestSyntheticHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSynthetic(1, 10).Fetch(ctx, ""); err == nil {
		t.Fatal("fetch with cancelled context succeeded")
	}
}

const sampleSnapshot = `{
	"nodes": [
		{"id": "a1", "label": "agent-1", "category": "agent", "val": 50},
		{"id": "q1", "label": "qubit-1", "category": "quantum", "val": 70}
	],
	"links": [
		{"source": "a1", "target": "q1", "weight": 12}
	]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "run.json", sampleSnapshot)

	snap, err := NewFile(path).Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snap.Nodes) != 2 || len(snap.Links) != 1 {
		t.Fatalf("got %d nodes / %d links", len(snap.Nodes), len(snap.Links))
	}
	if snap.Nodes[1].Fidelity != 70 {
		t.Fatalf("fidelity decoded as %v, want 70", snap.Nodes[1].Fidelity)
	}
}

func TestFetchRestrictedToCategory(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "run.json", sampleSnapshot)

	snap, err := NewFile(path).Fetch(context.Background(), "agent")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snap.Nodes) != 1 || snap.Nodes[0].ID != "a1" {
		t.Fatalf("got nodes %+v, want just a1", snap.Nodes)
	}
	// The a1-q1 link crosses the category boundary and must go too.
	if len(snap.Links) != 0 {
		t.Fatalf("got %d links, want 0", len(snap.Links))
	}
}

func TestFileProviderErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewFile(filepath.Join(dir, "missing.json")).Fetch(context.Background(), ""); err == nil {
		t.Fatal("fetch of missing file succeeded")
	}
	bad := writeFile(t, dir, "bad.json", `{"nodes": [`)
	if _, err := NewFile(bad).Fetch(context.Background(), ""); err == nil {
		t.Fatal("fetch of malformed file succeeded")
	}
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleSnapshot))
	}))
	defer srv.Close()

	snap, err := NewHTTP(srv.URL, time.Second).Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snap.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(snap.Nodes))
	}
}

func TestHTTPProviderForwardsCategory(t *testing.T) {
	var gotCategory string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCategory = r.URL.Query().Get("category")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleSnapshot))
	}))
	defer srv.Close()

	snap, err := NewHTTP(srv.URL, time.Second).Fetch(context.Background(), "quantum")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotCategory != "quantum" {
		t.Fatalf("endpoint saw category %q, want quantum", gotCategory)
	}
	// The endpoint here ignores the parameter; the provider still
	// enforces the restriction on what it hands back.
	if len(snap.Nodes) != 1 || snap.Nodes[0].ID != "q1" {
		t.Fatalf("got nodes %+v, want just q1", snap.Nodes)
	}
}

func TestHTTPProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no run active", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewHTTP(srv.URL, time.Second).Fetch(context.Background(), ""); err == nil {
		t.Fatal("fetch of failing endpoint succeeded")
	}
}

func TestDiscoverAndSelect(t *testing.T) {
	dir := t.TempDir()
	old := writeFile(t, dir, "old.json", sampleSnapshot)
	writeFile(t, dir, "broken.json", `not json`)
	writeFile(t, dir, "skipme.tmp", sampleSnapshot)
	fresh := writeFile(t, dir, "fresh.json", sampleSnapshot)

	// Make the freshness ordering explicit instead of racing mtimes.
	base := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, base, base); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(fresh, base.Add(time.Minute), base.Add(time.Minute)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	sources, err := DiscoverSources(context.Background(), DiscoveryOptions{
		DataDir:  dir,
		Validate: true,
	})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d valid sources, want 2: %v", len(sources), sources)
	}

	best, err := SelectBestSource(sources)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if best.Path != fresh {
		t.Fatalf("selected %s, want freshest %s", best.Path, fresh)
	}
	if best.NodeCount != 2 {
		t.Fatalf("validation counted %d nodes, want 2", best.NodeCount)
	}

	p, err := OpenSource(best)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := p.Fetch(context.Background(), ""); err != nil {
		t.Fatalf("fetch from opened source: %v", err)
	}
}

func TestSelectBestSourceEmpty(t *testing.T) {
	if _, err := SelectBestSource(nil); err != ErrNoSources {
		t.Fatalf("err = %v, want ErrNoSources", err)
	}
}
