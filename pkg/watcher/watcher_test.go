package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func waitChanged(t *testing.T, w *Watcher, timeout time.Duration) bool {
	t.Helper()
	select {
	case <-w.Changed():
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestWatcherSignalsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "run.json", `{"nodes":[]}`)

	w, err := New(path, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	// Give the watch a moment to attach before mutating.
	time.Sleep(50 * time.Millisecond)
	writeTempFile(t, dir, "run.json", `{"nodes":[{"id":"a"}]}`)

	if !waitChanged(t, w, 3*time.Second) {
		t.Fatal("no change signal after rewrite")
	}
}

func TestWatcherCoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "run.json", "0")

	w, err := New(path, WithDebounce(100*time.Millisecond))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		writeTempFile(t, dir, "run.json", "burst")
		time.Sleep(10 * time.Millisecond)
	}

	if !waitChanged(t, w, 3*time.Second) {
		t.Fatal("no change signal after burst")
	}
	// The burst fell inside one debounce window; no second signal
	// should be pending.
	select {
	case <-w.Changed():
		t.Fatal("burst produced more than one signal")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherPollingFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "run.json", "0")

	w, err := New(path,
		WithForcePoll(true),
		WithPollInterval(20*time.Millisecond),
		WithDebounce(20*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("forced polling not in effect")
	}

	// Size change guarantees detection even on coarse mtime clocks.
	writeTempFile(t, dir, "run.json", "0123456789")

	if !waitChanged(t, w, 3*time.Second) {
		t.Fatal("polling never noticed the change")
	}
}

func TestWatcherReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "run.json", "0")

	var removed atomic.Bool
	w, err := New(path,
		WithForcePoll(true),
		WithPollInterval(20*time.Millisecond),
		WithOnError(func(err error) {
			if err == ErrFileRemoved {
				removed.Store(true)
			}
		}),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if removed.Load() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("removal never reported")
}

func TestWatcherStartTwice(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "run.json", "0")

	w, err := New(path, WithForcePoll(true))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != ErrAlreadyStarted {
		t.Fatalf("second start err = %v, want ErrAlreadyStarted", err)
	}
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var fired atomic.Bool
	d.Trigger(func() { fired.Store(true) })
	d.Cancel()
	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Fatal("cancelled debounce still fired")
	}
}
