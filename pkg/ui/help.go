package ui

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const helpMarkdown = `# lattice

Live force-directed view of benchmark telemetry.

## Filters

| Key | Category |
|-----|------------|
| 1 | quantum |
| 2 | agent |
| 3 | error |
| 4 | provenance |
| 5 | policy |
| 6 | hardware |

At least one category always stays visible. Hidden nodes keep their
position and pin state and snap back where they were when re-enabled.

## Graph

- **mouse drag** — grab a node and hold it in place
- **mouse move** — inspect the node under the cursor
- **space** — reheat the simulation
- **r** — request an immediate data refresh

## Session

- **y** — copy the inspected node's id
- **s** / **S** — export the current layout as SVG / PNG
- **esc** — dismiss the inspector
- **q** — quit
`

// renderHelpContent runs the markdown through glamour at the given
// width. Update caches the result on the model; a resize clears it.
func renderHelpContent(width int) string {
	wrap := width - 4
	if wrap > 76 {
		wrap = 76
	}
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return out
}

func (m Model) renderHelp() string {
	content := m.helpView
	if content == "" {
		content = helpMarkdown
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
