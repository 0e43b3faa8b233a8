package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/lattice/pkg/model"
)

// TermProfile holds the detected terminal color profile. Computed once
// at package init so every style helper can branch without
// re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ansiFallback maps categories onto the basic 16-color palette for
// terminals that cannot do 256 colors.
var ansiFallback = map[model.Category]lipgloss.ANSIColor{
	model.CategoryQuantum:    lipgloss.ANSIColor(6),
	model.CategoryAgent:      lipgloss.ANSIColor(2),
	model.CategoryError:      lipgloss.ANSIColor(1),
	model.CategoryProvenance: lipgloss.ANSIColor(3),
	model.CategoryPolicy:     lipgloss.ANSIColor(5),
	model.CategoryHardware:   lipgloss.ANSIColor(4),
}

// Theme holds every style the graph view renders with. Styles are
// created once at startup, never per frame.
type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Category colors
	Quantum    lipgloss.AdaptiveColor
	Agent      lipgloss.AdaptiveColor
	Error      lipgloss.AdaptiveColor
	Provenance lipgloss.AdaptiveColor
	Policy     lipgloss.AdaptiveColor
	Hardware   lipgloss.AdaptiveColor

	// UI elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Stale     lipgloss.AdaptiveColor

	// Styles
	Base       lipgloss.Style
	Header     lipgloss.Style
	StatusBar  lipgloss.Style
	StatusWarn lipgloss.Style
	MutedText  lipgloss.Style
	Overlay    lipgloss.Style

	nodeStyles   map[model.Category]lipgloss.Style
	dimStyles    map[model.Category]lipgloss.Style
	linkStyle    lipgloss.Style
	linkDim      lipgloss.Style
	pinnedAccent lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive).
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}, // Purple
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}, // Gray
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"}, // Dim

		Quantum:    lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}, // Cyan
		Agent:      lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}, // Green
		Error:      lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}, // Red
		Provenance: lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}, // Orange
		Policy:     lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}, // Purple
		Hardware:   lipgloss.AdaptiveColor{Light: "#2684FF", Dark: "#4C9AFF"}, // Blue

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Stale:     lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})
	t.Header = r.NewStyle().Bold(true).Foreground(t.Primary)
	t.StatusBar = r.NewStyle().Foreground(t.Subtext)
	t.StatusWarn = r.NewStyle().Bold(true).Foreground(t.Stale)
	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.Overlay = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)

	t.nodeStyles = make(map[model.Category]lipgloss.Style, len(model.Categories))
	t.dimStyles = make(map[model.Category]lipgloss.Style, len(model.Categories))
	for _, c := range model.Categories {
		var color lipgloss.TerminalColor = t.CategoryColor(c)
		if TermProfile < colorprofile.ANSI256 {
			color = ansiFallback[c]
		}
		t.nodeStyles[c] = r.NewStyle().Foreground(color)
		t.dimStyles[c] = r.NewStyle().Foreground(color).Faint(true)
	}
	t.linkStyle = r.NewStyle().Foreground(t.Secondary)
	t.linkDim = r.NewStyle().Foreground(t.Secondary).Faint(true)
	t.pinnedAccent = r.NewStyle().Bold(true).Foreground(t.Primary)

	return t
}

// CategoryColor returns the adaptive color for a node category.
func (t Theme) CategoryColor(c model.Category) lipgloss.AdaptiveColor {
	switch c {
	case model.CategoryQuantum:
		return t.Quantum
	case model.CategoryAgent:
		return t.Agent
	case model.CategoryError:
		return t.Error
	case model.CategoryProvenance:
		return t.Provenance
	case model.CategoryPolicy:
		return t.Policy
	case model.CategoryHardware:
		return t.Hardware
	default:
		return t.Muted
	}
}

// NodeStyle returns the render style for a node. Dim is used while a
// node ramps in or out.
func (t Theme) NodeStyle(c model.Category, dim bool) lipgloss.Style {
	m := t.nodeStyles
	if dim {
		m = t.dimStyles
	}
	if s, ok := m[c]; ok {
		return s
	}
	return t.MutedText
}

// LinkStyle returns the render style for a link; dim renders low-weight
// and fading links.
func (t Theme) LinkStyle(dim bool) lipgloss.Style {
	if dim {
		return t.linkDim
	}
	return t.linkStyle
}

// PinnedStyle marks the node currently held by a drag.
func (t Theme) PinnedStyle() lipgloss.Style { return t.pinnedAccent }
