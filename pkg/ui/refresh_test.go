package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vanderheijden86/lattice/pkg/model"

	tea "github.com/charmbracelet/bubbletea"
)

// fakeProvider counts fetches and can block until released, so tests
// can hold a fetch in flight deterministically.
type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Fetch(ctx context.Context, category string) (model.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return model.Snapshot{}, ctx.Err()
		}
	}
	if f.err != nil {
		return model.Snapshot{}, f.err
	}
	return model.Snapshot{
		Nodes: []model.Node{{
			ID:       fmt.Sprintf("n-%d", n),
			Label:    "node",
			Category: model.CategoryAgent,
			Fidelity: 60,
		}},
	}, nil
}

func (f *fakeProvider) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestRefresher(t *testing.T, p *fakeProvider) *Refresher {
	t.Helper()
	r, err := NewRefresher(RefresherConfig{
		Provider:        p,
		RefreshInterval: time.Hour,
		JitterInterval:  -1,
		FetchTimeout:    2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}
	return r
}

func waitForMsg(t *testing.T, r *Refresher) tea.Msg {
	t.Helper()
	select {
	case msg := <-r.Messages():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresher message")
		return nil
	}
}

func TestRefresherDeliversFirstSnapshot(t *testing.T) {
	p := &fakeProvider{}
	r := newTestRefresher(t, p)
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()

	msg, ok := waitForMsg(t, r).(SnapshotMsg)
	if !ok {
		t.Fatalf("expected SnapshotMsg, got %T", msg)
	}
	if msg.Version != 1 {
		t.Errorf("version = %d, want 1", msg.Version)
	}
	if msg.Source != "fake" {
		t.Errorf("source = %q", msg.Source)
	}
	if len(msg.Snapshot.Nodes) != 1 {
		t.Errorf("nodes = %d, want 1", len(msg.Snapshot.Nodes))
	}
}

func TestTriggersDropWhileFetchInFlight(t *testing.T) {
	p := &fakeProvider{
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	r := newTestRefresher(t, p)
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()

	// Wait until the initial fetch is in flight, then pile on triggers.
	<-p.started
	r.TriggerRefresh()
	r.TriggerRefresh()
	r.TriggerRefresh()
	close(p.release)

	if _, ok := waitForMsg(t, r).(SnapshotMsg); !ok {
		t.Fatal("expected SnapshotMsg from the in-flight fetch")
	}

	// Triggers that landed mid-fetch are dropped, not queued: no
	// follow-up call may happen.
	time.Sleep(50 * time.Millisecond)
	if got := p.count(); got != 1 {
		t.Errorf("network calls = %d, want exactly 1 (mid-fetch triggers must be dropped)", got)
	}

	// The refresher is idle again; a fresh trigger fetches normally.
	r.TriggerRefresh()
	if _, ok := waitForMsg(t, r).(SnapshotMsg); !ok {
		t.Fatal("expected SnapshotMsg after the drop window closed")
	}
	if got := p.count(); got != 2 {
		t.Errorf("network calls after idle trigger = %d, want 2", got)
	}
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	p := &fakeProvider{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	r := newTestRefresher(t, p)
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-p.started
	r.Stop()
	close(p.release)

	select {
	case msg := <-r.Messages():
		t.Fatalf("unexpected message after stop: %#v", msg)
	case <-time.After(100 * time.Millisecond):
	}
	if r.Version() != 0 {
		t.Errorf("version = %d, want 0", r.Version())
	}
}

func TestFetchErrorIsRecoverable(t *testing.T) {
	p := &fakeProvider{err: errors.New("backend down")}
	r := newTestRefresher(t, p)
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()

	msg, ok := waitForMsg(t, r).(SnapshotErrorMsg)
	if !ok {
		t.Fatalf("expected SnapshotErrorMsg, got %T", msg)
	}
	if !msg.Recoverable {
		t.Error("fetch errors should be recoverable")
	}
	if r.LastError() == nil {
		t.Error("LastError not recorded")
	}
}

func TestJitterTicksArrive(t *testing.T) {
	p := &fakeProvider{}
	r, err := NewRefresher(RefresherConfig{
		Provider:        p,
		RefreshInterval: time.Hour,
		JitterInterval:  10 * time.Millisecond,
		FetchTimeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-r.Messages():
			if _, ok := msg.(JitterMsg); ok {
				return
			}
		case <-deadline:
			t.Fatal("no jitter tick arrived")
		}
	}
}

func TestStartAfterStopFails(t *testing.T) {
	p := &fakeProvider{}
	r := newTestRefresher(t, p)
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Stop()
	if err := r.Start(); err == nil {
		t.Fatal("expected error starting a stopped refresher")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	p := &fakeProvider{}
	r := newTestRefresher(t, p)
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop()
	if err := r.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
}
