// Package ui provides the terminal user interface for lattice.
// This file implements the Refresher, which fetches telemetry snapshots
// off the UI thread and drives the periodic fidelity jitter.
package ui

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/lattice/pkg/metrics"
	"github.com/vanderheijden86/lattice/pkg/model"
	"github.com/vanderheijden86/lattice/pkg/telemetry"
	"github.com/vanderheijden86/lattice/pkg/watcher"
)

// WorkerState represents the current state of the refresher.
type WorkerState int

const (
	// WorkerIdle means the refresher is waiting for the next interval.
	WorkerIdle WorkerState = iota
	// WorkerFetching means a snapshot fetch is in flight.
	WorkerFetching
	// WorkerStopped means the refresher has been stopped.
	WorkerStopped
)

// WorkerLogLevel controls refresher log verbosity.
type WorkerLogLevel int

const (
	LogLevelNone WorkerLogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

func (l WorkerLogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	default:
		return "none"
	}
}

func parseWorkerLogLevel(raw string) WorkerLogLevel {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "none", "off", "0":
		return LogLevelNone
	case "error", "err", "1":
		return LogLevelError
	case "warn", "warning", "2":
		return LogLevelWarn
	case "info", "3":
		return LogLevelInfo
	case "debug", "4":
		return LogLevelDebug
	default:
		return LogLevelWarn
	}
}

// SnapshotMsg is sent to the UI when a fetch completes.
type SnapshotMsg struct {
	Snapshot  model.Snapshot
	Source    string
	FetchedAt time.Time
	Version   uint64
	Elapsed   time.Duration
}

// SnapshotErrorMsg is sent to the UI when a fetch fails. The previous
// working set stays on screen; the UI flags the sync as stale.
type SnapshotErrorMsg struct {
	Err         error
	Recoverable bool
}

// JitterMsg tells the UI to apply one fidelity jitter step to the
// visible nodes.
type JitterMsg struct {
	At time.Time
}

// RefresherConfig configures the Refresher. Zero values use defaults,
// overridable through LATTICE_* environment variables.
type RefresherConfig struct {
	Provider telemetry.Provider

	// Category restricts every fetch to one category. Empty means all.
	Category string

	// RefreshInterval is the snapshot poll period (default 5s).
	RefreshInterval time.Duration
	// JitterInterval is the fidelity jitter period (default 800ms).
	// Negative disables jitter entirely.
	JitterInterval time.Duration
	// FetchTimeout bounds a single provider fetch (default 10s).
	FetchTimeout time.Duration
	// MessageBuffer is the worker -> UI channel size (default 8).
	MessageBuffer int

	// WatchPath, when set, watches the file and refreshes on change in
	// addition to the interval. Used with the file provider.
	WatchPath string
}

// Refresher owns the two timers behind the live view: the snapshot
// refresh interval and the fidelity jitter interval. Fetches are
// single-flight; triggers that land while a fetch is in flight are
// dropped. A generation counter discards results from fetches that
// were superseded before they landed.
type Refresher struct {
	provider     telemetry.Provider
	category     string
	refreshEvery time.Duration
	jitterEvery  time.Duration
	fetchTimeout time.Duration

	mu         sync.RWMutex
	state      WorkerState
	started    bool
	generation uint64
	lastError  error

	version atomic.Uint64
	dropped atomic.Int64

	logLevel WorkerLogLevel

	watcher *watcher.Watcher
	msgCh   chan tea.Msg

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher creates a refresher for the given provider.
func NewRefresher(cfg RefresherConfig) (*Refresher, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("refresher needs a telemetry provider")
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = envDurationMilliseconds("LATTICE_REFRESH_MS", 5*time.Second)
	}
	if cfg.JitterInterval == 0 {
		cfg.JitterInterval = envDurationMilliseconds("LATTICE_JITTER_MS", 800*time.Millisecond)
	} else if cfg.JitterInterval < 0 {
		cfg.JitterInterval = 0
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = envDurationMilliseconds("LATTICE_FETCH_TIMEOUT_MS", 10*time.Second)
	}
	if cfg.MessageBuffer <= 0 {
		cfg.MessageBuffer = envPositiveIntOr("LATTICE_CHANNEL_BUFFER", 8)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Refresher{
		provider:     cfg.Provider,
		category:     cfg.Category,
		refreshEvery: cfg.RefreshInterval,
		jitterEvery:  cfg.JitterInterval,
		fetchTimeout: cfg.FetchTimeout,
		state:        WorkerIdle,
		logLevel:     parseWorkerLogLevel(os.Getenv("LATTICE_LOG_LEVEL")),
		msgCh:        make(chan tea.Msg, cfg.MessageBuffer),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	if cfg.WatchPath != "" {
		fw, err := watcher.New(cfg.WatchPath)
		if err != nil {
			cancel()
			return nil, err
		}
		r.watcher = fw
	}

	return r, nil
}

// Messages returns the worker -> UI message channel. The channel is
// owned by the refresher and never closed; use Done() to stop waiting.
func (r *Refresher) Messages() <-chan tea.Msg {
	if r == nil {
		return nil
	}
	return r.msgCh
}

// Done is closed when the refresher is stopped.
func (r *Refresher) Done() <-chan struct{} {
	if r == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.ctx.Done()
}

// State returns the current worker state.
func (r *Refresher) State() WorkerState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// LastError returns the most recent fetch error, nil after a success.
func (r *Refresher) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastError
}

// Version returns how many snapshots have been delivered.
func (r *Refresher) Version() uint64 { return r.version.Load() }

// Start begins the refresh and jitter timers and performs an immediate
// first fetch. Idempotent; returns an error after Stop.
func (r *Refresher) Start() error {
	r.mu.Lock()
	if r.state == WorkerStopped {
		r.mu.Unlock()
		return fmt.Errorf("refresher has been stopped")
	}
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	r.mu.Unlock()

	if r.watcher != nil {
		if err := r.watcher.Start(); err != nil {
			r.mu.Lock()
			r.started = false
			r.mu.Unlock()
			return err
		}
	}

	r.logEvent(LogLevelInfo, "refresher_start", map[string]any{
		"source":     r.provider.Name(),
		"refresh_ms": r.refreshEvery.Milliseconds(),
		"jitter_ms":  r.jitterEvery.Milliseconds(),
	})

	go r.loop()
	r.TriggerRefresh()
	return nil
}

// Stop halts both timers and the watcher. After Stop, no further
// messages are delivered: results from fetches still in flight fail the
// generation check and are dropped. Idempotent.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if r.state == WorkerStopped {
		r.mu.Unlock()
		return
	}
	r.state = WorkerStopped
	r.generation++
	wasStarted := r.started
	r.mu.Unlock()

	r.cancel()
	if r.watcher != nil {
		r.watcher.Stop()
	}

	if wasStarted {
		select {
		case <-r.done:
		case <-time.After(5 * time.Second):
			r.logEvent(LogLevelWarn, "shutdown_timeout", nil)
		}
	}
	r.logEvent(LogLevelInfo, "refresher_stop", nil)
}

// TriggerRefresh requests a fetch now. While one is already in flight
// further triggers are dropped outright, not queued: a burst of
// triggers (interval tick + file change + manual key) costs exactly one
// network call and the next interval tick picks up anything newer.
func (r *Refresher) TriggerRefresh() {
	r.mu.Lock()
	switch r.state {
	case WorkerStopped:
		r.mu.Unlock()
		return
	case WorkerFetching:
		n := r.dropped.Add(1)
		r.mu.Unlock()
		r.logEvent(LogLevelDebug, "trigger_dropped", map[string]any{"count": n})
		return
	}
	r.mu.Unlock()

	go r.fetch()
}

// loop drives the two tickers. Both are torn down together when the
// context is cancelled; neither can outlive the refresher.
func (r *Refresher) loop() {
	defer close(r.done)
	defer func() {
		if rec := recover(); rec != nil {
			r.logEvent(LogLevelError, "loop_panic", map[string]any{
				"panic": fmt.Sprintf("%v", rec),
				"stack": string(debug.Stack()),
			})
		}
	}()

	refreshTicker := time.NewTicker(r.refreshEvery)
	defer refreshTicker.Stop()

	var jitterCh <-chan time.Time
	if r.jitterEvery > 0 {
		jitterTicker := time.NewTicker(r.jitterEvery)
		defer jitterTicker.Stop()
		jitterCh = jitterTicker.C
	}

	var watchCh <-chan struct{}
	if r.watcher != nil {
		watchCh = r.watcher.Changed()
	}

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-refreshTicker.C:
			r.TriggerRefresh()

		case t := <-jitterCh:
			r.send(JitterMsg{At: t})

		case <-watchCh:
			r.logEvent(LogLevelDebug, "file_change", nil)
			r.TriggerRefresh()
		}
	}
}

// fetch performs one provider fetch and delivers the result. Exactly
// one fetch runs at a time; see TriggerRefresh.
func (r *Refresher) fetch() {
	r.mu.Lock()
	if r.state != WorkerIdle {
		r.mu.Unlock()
		return
	}
	r.state = WorkerFetching
	gen := r.generation
	r.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(r.ctx, r.fetchTimeout)
	snap, err := r.provider.Fetch(ctx, r.category)
	cancel()
	elapsed := time.Since(start)
	metrics.SnapshotFetch.Record(elapsed)

	r.mu.Lock()
	// A stop or restart happened while this fetch was in flight; its
	// result no longer belongs to the current view.
	if r.generation != gen || r.state == WorkerStopped {
		r.mu.Unlock()
		r.logEvent(LogLevelDebug, "fetch_stale", map[string]any{"generation": gen})
		return
	}
	r.state = WorkerIdle
	r.lastError = err
	r.mu.Unlock()

	if err != nil {
		r.logEvent(LogLevelWarn, "fetch_failed", map[string]any{
			"source": r.provider.Name(),
			"error":  err.Error(),
		})
		r.send(SnapshotErrorMsg{Err: err, Recoverable: true})
	} else {
		version := r.version.Add(1)
		r.logEvent(LogLevelInfo, "snapshot_fetched", map[string]any{
			"source":   r.provider.Name(),
			"nodes":    len(snap.Nodes),
			"links":    len(snap.Links),
			"version":  version,
			"fetch_ms": float64(elapsed.Microseconds()) / 1000.0,
		})
		r.send(SnapshotMsg{
			Snapshot:  snap,
			Source:    r.provider.Name(),
			FetchedAt: time.Now(),
			Version:   version,
			Elapsed:   elapsed,
		})
	}
}

func (r *Refresher) send(msg tea.Msg) {
	if r == nil || msg == nil {
		return
	}
	for {
		select {
		case r.msgCh <- msg:
			return
		case <-r.ctx.Done():
			return
		default:
		}

		// Channel is full; drop an older message so the newest wins.
		select {
		case <-r.msgCh:
		default:
		}
	}
}

func (r *Refresher) logEvent(level WorkerLogLevel, event string, fields map[string]any) {
	if r == nil || level == LogLevelNone {
		return
	}
	if r.logLevel == LogLevelNone || level > r.logLevel {
		return
	}

	payload := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level.String(),
		"component": "refresher",
		"event":     event,
	}
	for k, v := range fields {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("refresher: failed to marshal log event %s: %v", event, err)
		return
	}
	log.Printf("%s", b)
}

func envPositiveInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envPositiveIntOr(name string, fallback int) int {
	n, ok := envPositiveInt(name)
	if !ok {
		return fallback
	}
	return n
}

func envDurationMilliseconds(name string, fallback time.Duration) time.Duration {
	n, ok := envPositiveInt(name)
	if !ok {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}
