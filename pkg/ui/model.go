package ui

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vanderheijden86/lattice/pkg/analysis"
	"github.com/vanderheijden86/lattice/pkg/export"
	"github.com/vanderheijden86/lattice/pkg/metrics"
	"github.com/vanderheijden86/lattice/pkg/model"
	"github.com/vanderheijden86/lattice/pkg/sim"
	"github.com/vanderheijden86/lattice/pkg/store"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Frame pacing for the force simulation. The engine integrates with a
// fixed step, so the tick cadence is also the physics step.
const (
	frameInterval   = time.Second / 30
	jitterAmplitude = 1.0
	statusTTL       = 3 * time.Second
)

// Layout constants: one header line, one status line, one help line.
// The inspector strip borrows canvas rows while a node is hovered.
const (
	headerHeight    = 1
	footerHeight    = 2
	inspectorHeight = 5
)

type frameMsg time.Time

type clearStatusMsg struct{}

// keyMap declares every binding the view responds to. Category toggles
// are handled by digit lookup rather than one binding per category.
type keyMap struct {
	Quit       key.Binding
	Refresh    key.Binding
	Reheat     key.Binding
	Copy       key.Binding
	ExportSVG  key.Binding
	ExportPNG  key.Binding
	Help       key.Binding
	Dismiss    key.Binding
	Categories key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Reheat: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "reheat"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy id"),
		),
		ExportSVG: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "export svg"),
		),
		ExportPNG: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "export png"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "dismiss"),
		),
		Categories: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6"),
			key.WithHelp("1-6", "toggle category"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Categories, k.Refresh, k.Copy, k.ExportSVG, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Categories, k.Refresh, k.Reheat},
		{k.Copy, k.ExportSVG, k.ExportPNG},
		{k.Help, k.Dismiss, k.Quit},
	}
}

// Model is the root bubbletea model. It owns the canonical node store,
// the force engine, the canvas, and the background refresher, and wires
// their lifecycles together: snapshots reconcile into the store, the
// store's visible projection reseeds the engine, and every frame tick
// advances the physics before the next render.
type Model struct {
	theme     Theme
	keys      keyMap
	help      help.Model
	store     *store.Store
	engine    *sim.Engine
	view      GraphView
	refresher *Refresher
	rng       *rand.Rand

	width  int
	height int

	source    string
	lastSync  time.Time
	version   uint64
	syncState string
	stale     bool

	statusMsg string
	showHelp  bool
	helpView  string

	hover   *sim.Node
	dragID  string
	conn    analysis.Connectivity
	connHot bool

	quitting bool
}

// NewModel builds the root model around an already-configured
// refresher. The refresher is started by Init, not here.
func NewModel(r *Refresher) Model {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	h := help.New()
	h.Styles.ShortKey = theme.MutedText
	h.Styles.ShortDesc = theme.MutedText
	return Model{
		theme:     theme,
		keys:      defaultKeyMap(),
		help:      h,
		store:     store.New(),
		engine:    sim.New(80, 24),
		view:      NewGraphView(theme),
		refresher: r,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		syncState: "connecting",
	}
}

func (m Model) Init() tea.Cmd {
	if err := m.refresher.Start(); err != nil {
		return func() tea.Msg {
			return SnapshotErrorMsg{Err: err, Recoverable: false}
		}
	}
	return tea.Batch(listenRefresher(m.refresher.Messages()), frameTick())
}

// listenRefresher blocks on the refresher's message channel and
// surfaces the next message. The handler re-arms it after each receive.
func listenRefresher(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func flash(msg string) (string, tea.Cmd) {
	return msg, tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.helpView = ""
		return m, nil

	case SnapshotMsg:
		stats := m.store.ReplaceSnapshot(msg.Snapshot, m.engine.Center())
		m.source = msg.Source
		m.lastSync = msg.FetchedAt
		m.version = msg.Version
		m.stale = false
		m.syncState = "live"
		m.reseed()
		if stats.Dropped > 0 {
			var cmd tea.Cmd
			m.statusMsg, cmd = flash(fmt.Sprintf("dropped %d malformed entries", stats.Dropped))
			return m, tea.Batch(listenRefresher(m.refresher.Messages()), cmd)
		}
		return m, listenRefresher(m.refresher.Messages())

	case SnapshotErrorMsg:
		// Keep rendering the last good frame; just flag staleness.
		m.stale = true
		m.syncState = "sync failed"
		if !msg.Recoverable {
			m.syncState = "source lost"
		}
		return m, listenRefresher(m.refresher.Messages())

	case JitterMsg:
		m.store.ApplyJitter(func(*sim.Node) float64 {
			return (m.rng.Float64()*2 - 1) * jitterAmplitude
		})
		return m, listenRefresher(m.refresher.Messages())

	case frameMsg:
		if m.quitting {
			return m, nil
		}
		tick := metrics.Timer(metrics.SimTick)
		m.engine.Tick(frameInterval.Seconds())
		tick()
		if m.store.Prune() > 0 && m.hover != nil && !m.hover.Alive() {
			m.hover = nil
			m.layout()
		}
		return m, frameTick()

	case clearStatusMsg:
		m.statusMsg = ""
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes the help overlay, quit still quits.
		if key.Matches(msg, m.keys.Quit) {
			return m.shutdown()
		}
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.shutdown()

	case key.Matches(msg, m.keys.Categories):
		return m.toggleCategory(msg.String())

	case key.Matches(msg, m.keys.Refresh):
		m.refresher.TriggerRefresh()
		var cmd tea.Cmd
		m.statusMsg, cmd = flash("refresh requested")
		return m, cmd

	case key.Matches(msg, m.keys.Reheat):
		m.engine.Reheat()
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if m.hover == nil {
			return m, nil
		}
		var cmd tea.Cmd
		if err := clipboard.WriteAll(m.hover.ID); err != nil {
			m.statusMsg, cmd = flash("clipboard unavailable")
		} else {
			m.statusMsg, cmd = flash(fmt.Sprintf("copied %s", m.hover.ID))
		}
		return m, cmd

	case key.Matches(msg, m.keys.ExportSVG):
		return m.export("svg")

	case key.Matches(msg, m.keys.ExportPNG):
		return m.export("png")

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		if m.helpView == "" {
			m.helpView = renderHelpContent(m.width)
		}
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		if m.hover != nil {
			m.hover = nil
			m.layout()
		}
		return m, nil
	}
	return m, nil
}

func (m Model) toggleCategory(digit string) (tea.Model, tea.Cmd) {
	idx := int(digit[0] - '1')
	if idx < 0 || idx >= len(model.Categories) {
		return m, nil
	}
	cat := model.Categories[idx]
	if !m.store.Toggle(cat) {
		var cmd tea.Cmd
		m.statusMsg, cmd = flash("at least one category must stay visible")
		return m, cmd
	}
	if m.hover != nil && m.hover.Category == cat {
		m.hover = nil
		m.layout()
	}
	m.reseed()
	return m, nil
}

func (m Model) export(format string) (tea.Model, tea.Cmd) {
	nodes, links := m.store.Visible()
	path := export.TimestampedPath(".", format)
	w, h := float64(m.view.Width()), float64(m.view.Height())
	var err error
	switch format {
	case "png":
		err = export.WritePNG(path, nodes, links, w, h)
	default:
		err = export.WriteSVG(path, nodes, links, w, h)
	}
	var cmd tea.Cmd
	if err != nil {
		m.statusMsg, cmd = flash(fmt.Sprintf("export failed: %v", err))
	} else {
		m.statusMsg, cmd = flash(fmt.Sprintf("saved %s", path))
	}
	return m, cmd
}

func (m Model) shutdown() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.refresher.Stop()
	m.engine.Dispose()
	return m, tea.Quit
}

// reseed pushes the store's visible projection into the engine. Called
// after every mutation of the logical graph so the physics always runs
// over exactly what is on screen (plus bodies still fading out).
func (m *Model) reseed() {
	nodes, links := m.store.Visible()
	m.engine.Reseed(nodes, links)
	m.connHot = false
	if m.hover != nil {
		if _, ok := m.engine.NodeByID(m.hover.ID); !ok {
			m.hover = nil
			m.layout()
		}
	}
}

// connectivity lazily recomputes component stats for the inspector.
func (m *Model) connectivity() analysis.Connectivity {
	if !m.connHot {
		m.conn = analysis.Compute(m.engine.Nodes(), m.engine.Links())
		m.connHot = true
	}
	return m.conn
}

// layout sizes the canvas from the window, reserving the header and
// footer rows and, while a node is hovered, the inspector strip. The
// engine bounds follow so the centering force keeps the graph on
// screen.
func (m *Model) layout() {
	h := m.height - headerHeight - footerHeight
	if m.hover != nil {
		h -= inspectorHeight
	}
	if h < 1 {
		h = 1
	}
	w := m.width
	if w < 1 {
		w = 1
	}
	m.view.SetSize(w, h)
	m.engine.Resize(float64(w), float64(h))
	m.help.Width = w
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "loading…"
	}
	if m.showHelp {
		return m.renderHelp()
	}

	nodes, links := m.store.Visible()
	render := metrics.Timer(metrics.FrameRender)
	canvas := m.view.Render(nodes, links)
	render()

	sections := []string{m.renderHeader(), canvas}
	if m.hover != nil {
		sections = append(sections, m.renderInspector())
	}
	sections = append(sections, m.renderStatus(), m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := m.theme.Header.Render("lattice")
	var filters string
	fs := m.store.Filter()
	for i, c := range model.Categories {
		label := fmt.Sprintf(" %d %s ", i+1, c)
		if fs.Has(c) {
			filters += m.theme.NodeStyle(c, false).Render(label)
		} else {
			filters += m.theme.MutedText.Render(label)
		}
	}
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(filters)
	if gap < 1 {
		gap = 1
	}
	return title + padRight("", gap) + filters
}

func (m Model) renderStatus() string {
	nodes, links := m.store.Counts()
	left := fmt.Sprintf(" %s │ %d nodes │ %d links │ synced %s",
		truncate(m.sourceLabel(), 32), nodes, links, FormatTimeRel(m.lastSync))
	style := m.theme.StatusBar
	if m.stale {
		left += " │ " + m.syncState
		style = m.theme.StatusWarn
	}
	if m.statusMsg != "" {
		left += " │ " + m.statusMsg
	}
	return style.Render(padRight(truncate(left, m.width), m.width))
}

func (m Model) sourceLabel() string {
	if m.source == "" {
		return m.syncState
	}
	return m.source
}

func (m Model) renderInspector() string {
	n := m.hover
	conn := m.connectivity()
	line1 := fmt.Sprintf("%s  %s",
		m.theme.NodeStyle(n.Category, false).Render(n.Label),
		m.theme.MutedText.Render(n.ID))
	line2 := fmt.Sprintf("%s  fidelity %3.0f %s",
		string(n.Category), n.Fidelity, fidelityBar(n.Fidelity, 20))
	line3 := fmt.Sprintf("degree %d  component %d of %d",
		conn.Degree(n.ID), conn.ComponentSize(n.ID), conn.Components)
	body := lipgloss.JoinVertical(lipgloss.Left, line1, line2, line3)
	return m.theme.Overlay.Width(m.width - 2).Render(body)
}
