package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/lattice/pkg/sim"
)

// handleMouse maps terminal mouse events onto the simulation: press
// grabs the node under the cursor and pins it, motion drags the pin,
// release lets the node rejoin free simulation. Plain motion with no
// button down drives the hover inspector.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	p := m.canvasPoint(msg.X, msg.Y)

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		n, ok := m.engine.NodeAt(p)
		if !ok {
			// Clicking empty space dismisses the inspector.
			if m.hover != nil {
				m.hover = nil
				m.layout()
			}
			return m, nil
		}
		m.dragID = n.ID
		m.engine.Pin(n.ID, p)
		m.setHover(n)
		return m, nil

	case tea.MouseActionMotion:
		if m.dragID != "" {
			m.engine.MovePin(m.dragID, p)
			return m, nil
		}
		n, ok := m.engine.NodeAt(p)
		if !ok {
			// Moving off a node dismisses the inspector.
			if m.hover != nil {
				m.hover = nil
				m.layout()
			}
			return m, nil
		}
		if m.hover == nil || m.hover.ID != n.ID {
			m.setHover(n)
		}
		return m, nil

	case tea.MouseActionRelease:
		if m.dragID != "" {
			m.engine.Unpin(m.dragID)
			m.dragID = ""
		}
		return m, nil
	}
	return m, nil
}

// canvasPoint translates window coordinates to simulation coordinates.
// The canvas starts below the header, so only the y axis shifts.
func (m Model) canvasPoint(x, y int) r2.Vec {
	return r2.Vec{X: float64(x), Y: float64(y - headerHeight)}
}

// setHover swaps the inspected node and re-runs layout, since the
// inspector strip changes the canvas height.
func (m *Model) setHover(n *sim.Node) {
	hadHover := m.hover != nil
	m.hover = n
	if !hadHover {
		m.layout()
	}
}
