// Package export renders the live graph layout to static images. The
// simulation runs in terminal cell coordinates; the exporters scale
// those to pixels so the saved image matches what was on screen.
package export

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/vanderheijden86/lattice/pkg/model"
	"github.com/vanderheijden86/lattice/pkg/sim"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"
)

// Terminal cells are roughly twice as tall as wide; the pixel scale
// keeps the exported aspect ratio faithful to the on-screen layout.
const (
	cellPxX = 10.0
	cellPxY = 20.0
	padPx   = 24
)

// categoryColors mirrors the terminal theme's dark-background palette.
var categoryColors = map[model.Category]string{
	model.CategoryQuantum:    "#8BE9FD",
	model.CategoryAgent:      "#50FA7B",
	model.CategoryError:      "#FF5555",
	model.CategoryProvenance: "#FFB86C",
	model.CategoryPolicy:     "#BD93F9",
	model.CategoryHardware:   "#4C9AFF",
}

const (
	backdropHex = "#1E1F29"
	linkHex     = "#6272A4"
	labelHex    = "#F8F8F2"
)

// TimestampedPath builds a collision-safe output path in dir.
func TimestampedPath(dir, format string) string {
	name := fmt.Sprintf("lattice-%s.%s", time.Now().Format("20060102-150405"), format)
	return filepath.Join(dir, name)
}

// WriteSVG renders the layout as a vector image. Width and height are
// the canvas size in cells.
func WriteSVG(path string, nodes []*sim.Node, links []*sim.Link, width, height float64) error {
	w, h := pixelSize(width, height)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer file.Close()

	canvas := svg.New(file)
	canvas.Start(w, h)
	canvas.Rect(0, 0, w, h, "fill:"+backdropHex)

	for _, l := range links {
		x1, y1 := pixelPoint(l.Source.Pos.X, l.Source.Pos.Y)
		x2, y2 := pixelPoint(l.Target.Pos.X, l.Target.Pos.Y)
		style := fmt.Sprintf("stroke:%s;stroke-width:%.1f;stroke-opacity:%.2f",
			linkHex, l.Stroke, l.Opacity)
		if l.Dashed {
			style += ";stroke-dasharray:6,4"
		}
		canvas.Line(x1, y1, x2, y2, style)
	}

	for _, n := range nodes {
		cx, cy := pixelPoint(n.Pos.X, n.Pos.Y)
		r := nodePx(n)
		fill := categoryColors[n.Category]
		if fill == "" {
			fill = labelHex
		}
		opacity := 1.0
		if n.Phase != sim.PhaseLive {
			opacity = math.Max(n.Ramp, 0.15)
		}
		canvas.Circle(cx, cy, r, fmt.Sprintf("fill:%s;fill-opacity:%.2f", fill, opacity))
		if n.Pinned {
			canvas.Circle(cx, cy, r+3, fmt.Sprintf("fill:none;stroke:%s;stroke-width:1.5", labelHex))
		}
		if n.Label != "" && n.Phase == sim.PhaseLive {
			canvas.Text(cx+r+6, cy+4, n.Label,
				fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", labelHex))
		}
	}

	canvas.End()
	return nil
}

// WritePNG renders the layout as a raster image. Width and height are
// the canvas size in cells.
func WritePNG(path string, nodes []*sim.Node, links []*sim.Link, width, height float64) error {
	w, h := pixelSize(width, height)
	dc := gg.NewContext(w, h)

	dc.SetColor(hexColor(backdropHex, 255))
	dc.Clear()

	for _, l := range links {
		x1, y1 := pixelPointF(l.Source.Pos.X, l.Source.Pos.Y)
		x2, y2 := pixelPointF(l.Target.Pos.X, l.Target.Pos.Y)
		dc.SetColor(hexColor(linkHex, uint8(l.Opacity*255)))
		dc.SetLineWidth(l.Stroke)
		if l.Dashed {
			dc.SetDash(6, 4)
		} else {
			dc.SetDash()
		}
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
	}
	dc.SetDash()

	dc.SetFontFace(basicfont.Face7x13)
	for _, n := range nodes {
		cx, cy := pixelPointF(n.Pos.X, n.Pos.Y)
		r := float64(nodePx(n))
		fill := categoryColors[n.Category]
		if fill == "" {
			fill = labelHex
		}
		alpha := uint8(255)
		if n.Phase != sim.PhaseLive {
			alpha = uint8(math.Max(n.Ramp, 0.15) * 255)
		}
		dc.SetColor(hexColor(fill, alpha))
		dc.DrawCircle(cx, cy, r)
		dc.Fill()
		if n.Pinned {
			dc.SetColor(hexColor(labelHex, 255))
			dc.SetLineWidth(1.5)
			dc.DrawCircle(cx, cy, r+3)
			dc.Stroke()
		}
		if n.Label != "" && n.Phase == sim.PhaseLive {
			dc.SetColor(hexColor(labelHex, 255))
			dc.DrawStringAnchored(n.Label, cx+r+6, cy, 0, 0.5)
		}
	}

	return dc.SavePNG(path)
}

func pixelSize(width, height float64) (int, int) {
	return int(width*cellPxX) + 2*padPx, int(height*cellPxY) + 2*padPx
}

func pixelPoint(x, y float64) (int, int) {
	return int(x*cellPxX) + padPx, int(y*cellPxY) + padPx
}

func pixelPointF(x, y float64) (float64, float64) {
	return x*cellPxX + padPx, y*cellPxY + padPx
}

// nodePx scales the simulation radius to pixels, never below a dot.
func nodePx(n *sim.Node) int {
	scale := 1.0
	if n.Phase != sim.PhaseLive {
		scale = n.Ramp
	}
	r := int(n.Radius() * scale * cellPxX)
	if r < 2 {
		r = 2
	}
	return r
}

func hexColor(hex string, alpha uint8) color.Color {
	var r, g, b uint8
	fmt.Sscanf(hex, "#%02X%02X%02X", &r, &g, &b)
	return color.NRGBA{R: r, G: g, B: b, A: alpha}
}
