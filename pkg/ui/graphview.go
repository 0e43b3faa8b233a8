package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/lattice/pkg/model"
	"github.com/vanderheijden86/lattice/pkg/sim"
)

// cellAspect compensates for terminal cells being roughly twice as tall
// as they are wide: a circle in world space rasterizes to an ellipse
// half as tall in rows as it is wide in columns.
const cellAspect = 2.0

// canvas z-order: links under node bodies under labels.
const (
	zLink = iota + 1
	zNode
	zLabel
)

// styleID indexes the view's style palette so cells stay tiny and runs
// of identically styled cells can be batched per render line.
type styleID uint8

const (
	styleNone styleID = iota
	styleLink
	styleLinkDim
	stylePinned
	styleLabel
	styleNodeBase // + categoryIndex, then +len(categories) for dim
)

type cell struct {
	ch    rune
	style styleID
	z     int8
}

// GraphView rasterizes the simulation working set onto a cell grid.
// World coordinates are terminal columns/rows; the engine is sized to
// the same surface, so no scaling happens here.
type GraphView struct {
	theme   Theme
	palette []lipgloss.Style
	catIdx  map[model.Category]int
	width   int
	height  int
	grid    []cell
}

// NewGraphView creates a view with the given theme.
func NewGraphView(theme Theme) GraphView {
	g := GraphView{
		theme:  theme,
		catIdx: make(map[model.Category]int, len(model.Categories)),
	}
	g.palette = make([]lipgloss.Style, 0, int(styleNodeBase)+2*len(model.Categories))
	g.palette = append(g.palette,
		lipgloss.NewStyle(), // styleNone, unused
		theme.LinkStyle(false),
		theme.LinkStyle(true),
		theme.PinnedStyle(),
		theme.MutedText,
	)
	for i, c := range model.Categories {
		g.catIdx[c] = i
		g.palette = append(g.palette, theme.NodeStyle(c, false))
	}
	for _, c := range model.Categories {
		g.palette = append(g.palette, theme.NodeStyle(c, true))
	}
	return g
}

func (g *GraphView) nodeStyleID(c model.Category, dim bool) styleID {
	i, ok := g.catIdx[c]
	if !ok {
		return styleLabel
	}
	if dim {
		i += len(model.Categories)
	}
	return styleNodeBase + styleID(i)
}

// SetSize resizes the render surface.
func (g *GraphView) SetSize(width, height int) {
	g.width = width
	g.height = height
	g.grid = make([]cell, width*height)
}

// Width and Height report the current surface size in cells.
func (g *GraphView) Width() int  { return g.width }
func (g *GraphView) Height() int { return g.height }

func (g *GraphView) set(x, y int, ch rune, style styleID, z int8) {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return
	}
	i := y*g.width + x
	if g.grid[i].z >= z {
		return
	}
	g.grid[i] = cell{ch: ch, style: style, z: z}
}

// Render draws links then nodes onto the grid and returns the frame as
// height lines of width cells.
func (g *GraphView) Render(nodes []*sim.Node, links []*sim.Link) string {
	if g.width <= 0 || g.height <= 0 {
		return ""
	}
	for i := range g.grid {
		g.grid[i] = cell{}
	}

	for _, l := range links {
		g.drawLink(l)
	}
	for _, n := range nodes {
		g.drawNode(n)
	}

	var sb strings.Builder
	sb.Grow(g.width*g.height + g.height)
	var run strings.Builder
	for y := 0; y < g.height; y++ {
		runStyle := styleNone
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if runStyle == styleNone {
				sb.WriteString(run.String())
			} else {
				sb.WriteString(g.palette[runStyle].Render(run.String()))
			}
			run.Reset()
		}
		for x := 0; x < g.width; x++ {
			c := g.grid[y*g.width+x]
			ch := c.ch
			if c.z == 0 {
				ch = ' '
				c.style = styleNone
			}
			if c.style != runStyle {
				flush()
				runStyle = c.style
			}
			run.WriteRune(ch)
		}
		flush()
		if y < g.height-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (g *GraphView) drawLink(l *sim.Link) {
	x0, y0 := int(math.Round(l.Source.Pos.X)), int(math.Round(l.Source.Pos.Y))
	x1, y1 := int(math.Round(l.Target.Pos.X)), int(math.Round(l.Target.Pos.Y))

	style := styleLink
	if l.Dashed || l.Opacity < 0.35 {
		style = styleLinkDim
	}

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	ch := linkGlyph(x1-x0, y1-y0, l.Stroke)
	step := 0
	x, y := x0, y0
	for {
		// Dashed links skip alternate cells.
		if !l.Dashed || step%2 == 0 {
			g.set(x, y, ch, style, zLink)
		}
		step++
		if x == x1 && y == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// linkGlyph picks a line rune from the segment direction; heavy strokes
// use a denser rune.
func linkGlyph(dx, dy int, stroke float64) rune {
	heavy := stroke >= 3.0
	adx, ady := abs(dx), abs(dy)
	switch {
	case ady*3 < adx: // near horizontal
		if heavy {
			return '━'
		}
		return '─'
	case adx*3 < ady*2: // near vertical (aspect-corrected)
		if heavy {
			return '┃'
		}
		return '│'
	case (dx > 0) == (dy > 0):
		return '╲'
	default:
		return '╱'
	}
}

func (g *GraphView) drawNode(n *sim.Node) {
	cx := int(math.Round(n.Pos.X))
	cy := int(math.Round(n.Pos.Y))

	// Entrance and exit ramps scale the drawn radius.
	r := n.Radius() * rampScale(n)
	if r < 0.5 {
		r = 0.5
	}

	dim := n.Phase != sim.PhaseLive
	style := g.nodeStyleID(n.Category, dim)
	body := '●'
	if dim {
		body = '◌'
	}
	if n.Pinned {
		style = stylePinned
		body = '◉'
	}

	rx := int(r)
	ry := int(r / cellAspect)
	for dy := -ry; dy <= ry; dy++ {
		for dx := -rx; dx <= rx; dx++ {
			fx := float64(dx)
			fy := float64(dy) * cellAspect
			if fx*fx+fy*fy > r*r {
				continue
			}
			g.set(cx+dx, cy+dy, body, style, zNode)
		}
	}
	// Center cell always lands, even for sub-cell radii.
	g.set(cx, cy, body, style, zNode)

	if n.Label != "" && n.Phase == sim.PhaseLive {
		g.drawLabel(cx+rx+1, cy, n.Label)
	}
}

func (g *GraphView) drawLabel(x, y int, label string) {
	avail := g.width - x
	if avail < 4 {
		return
	}
	if avail > 18 {
		avail = 18
	}
	for i, ch := range truncate(label, avail) {
		g.set(x+i, y, ch, styleLabel, zLabel)
	}
}

// rampScale maps a node's lifecycle to a radius multiplier: entering
// grows from 0 to 1, exiting shrinks back to 0, live stays at 1.
func rampScale(n *sim.Node) float64 {
	switch n.Phase {
	case sim.PhaseEntering, sim.PhaseExiting:
		return n.Ramp
	default:
		return 1
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
