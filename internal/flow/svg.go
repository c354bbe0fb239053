package flow

import (
	"fmt"
	"html"
	"math"
	"strings"
)

// RenderOptions controls the SVG canvas.
type RenderOptions struct {
	Width  int
	Height int
}

// DefaultRenderOptions is a canvas that fits a report page.
var DefaultRenderOptions = RenderOptions{Width: 960, Height: 540}

var categoryColors = map[Category]string{
	CategoryRevenue: "#2E86AB",
	CategoryCost:    "#E63946",
	CategoryProfit:  "#2A9D8F",
	CategoryLoss:    "#6C757D",
}

const (
	svgMargin   = 24.0
	svgTitleH   = 28.0
	nodeWidth   = 14.0
	nodePadding = 12.0
)

type nodeBox struct {
	x, y, h float64
	in, out float64 // consumed link thickness on each side
}

// RenderSVG draws g as a left-to-right Sankey diagram. Nodes are placed in
// columns by their longest distance from a source; link thickness is
// proportional to the edge value.
func RenderSVG(g Graph, opts RenderOptions) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("rendering flow graph: %w", err)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultRenderOptions
	}
	w, h := float64(opts.Width), float64(opts.Height)

	depth := columnsOf(g)
	maxDepth := 0
	for _, d := range depth {
		maxDepth = max(maxDepth, d)
	}

	// A node is as tall as the larger of its inflow and outflow.
	inSum := make([]float64, len(g.Nodes))
	outSum := make([]float64, len(g.Nodes))
	for _, e := range g.Edges {
		outSum[e.Source] += e.Value
		inSum[e.Target] += e.Value
	}
	value := make([]float64, len(g.Nodes))
	for i := range g.Nodes {
		value[i] = math.Max(inSum[i], outSum[i])
	}

	columns := make([][]int, maxDepth+1)
	for i, d := range depth {
		columns[d] = append(columns[d], i)
	}

	top := svgMargin + svgTitleH
	innerH := h - top - svgMargin
	scale := math.Inf(1)
	for _, col := range columns {
		var total float64
		for _, n := range col {
			total += value[n]
		}
		if total <= 0 {
			continue
		}
		avail := innerH - float64(len(col)-1)*nodePadding
		scale = math.Min(scale, math.Max(avail, 1)/total)
	}
	if math.IsInf(scale, 1) {
		scale = 0
	}

	boxes := make([]nodeBox, len(g.Nodes))
	colStep := 0.0
	if maxDepth > 0 {
		colStep = (w - 2*svgMargin - nodeWidth) / float64(maxDepth)
	}
	for d, col := range columns {
		used := -nodePadding
		for _, n := range col {
			used += math.Max(value[n]*scale, 1) + nodePadding
		}
		y := top + math.Max((innerH-used)/2, 0)
		for _, n := range col {
			bh := math.Max(value[n]*scale, 1)
			boxes[n] = nodeBox{x: svgMargin + float64(d)*colStep, y: y, h: bh}
			y += bh + nodePadding
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="Helvetica, Arial, sans-serif" font-size="11">`+"\n",
		opts.Width, opts.Height, opts.Width, opts.Height)
	sb.WriteString(`<rect width="100%" height="100%" fill="#ffffff"/>` + "\n")
	if g.Title != "" {
		fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" font-size="15" font-weight="bold">%s</text>`+"\n",
			svgMargin, svgMargin+8, html.EscapeString(g.Title))
	}

	sb.WriteString(`<g fill="none" stroke-opacity="0.35">` + "\n")
	for _, e := range g.Edges {
		src, dst := &boxes[e.Source], &boxes[e.Target]
		thick := e.Value * scale
		sy := src.y + src.out + thick/2
		ty := dst.y + dst.in + thick/2
		src.out += thick
		dst.in += thick

		x0, x1 := src.x+nodeWidth, dst.x
		xm := (x0 + x1) / 2
		fmt.Fprintf(&sb, `<path d="M%.1f,%.1f C%.1f,%.1f %.1f,%.1f %.1f,%.1f" stroke="%s" stroke-width="%.1f"><title>%s → %s: %s</title></path>`+"\n",
			x0, sy, xm, sy, xm, ty, x1, ty,
			colorOf(g.Nodes[e.Target].Category), math.Max(thick, 1),
			html.EscapeString(g.Nodes[e.Source].Label), html.EscapeString(g.Nodes[e.Target].Label), FormatMillions(e.Value))
	}
	sb.WriteString("</g>\n")

	for i, n := range g.Nodes {
		b := boxes[i]
		fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>`+"\n",
			b.x, b.y, nodeWidth, b.h, colorOf(n.Category))

		// Labels sit right of the node, except in the last column.
		lx, anchor := b.x+nodeWidth+4, "start"
		if depth[i] == maxDepth && maxDepth > 0 {
			lx, anchor = b.x-4, "end"
		}
		fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" dy="0.35em" text-anchor="%s">%s %s</text>`+"\n",
			lx, b.y+b.h/2, anchor, html.EscapeString(n.Label), FormatMillions(value[i]))
	}
	sb.WriteString("</svg>\n")
	return []byte(sb.String()), nil
}

// columnsOf assigns each node the length of the longest path reaching it.
// Relaxation is bounded by the node count, so a cyclic input still
// terminates (with a distorted but finite layout).
func columnsOf(g Graph) []int {
	depth := make([]int, len(g.Nodes))
	limit := len(g.Nodes) - 1
	for range g.Nodes {
		changed := false
		for _, e := range g.Edges {
			if d := depth[e.Source] + 1; d > depth[e.Target] && d <= limit {
				depth[e.Target] = d
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return depth
}

func colorOf(c Category) string {
	if col, ok := categoryColors[c]; ok {
		return col
	}
	return "#999999"
}

// FormatMillions renders an amount in millions for labels: "$4.6B", "$180M".
func FormatMillions(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("$%.1fT", v/1_000_000)
	case v >= 1000:
		return fmt.Sprintf("$%.1fB", v/1000)
	case v >= 1:
		return fmt.Sprintf("$%.0fM", v)
	default:
		return fmt.Sprintf("$%.0fK", v*1000)
	}
}
