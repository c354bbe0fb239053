// Package service contains the orchestration behind both front-ends:
// document ingestion, section views, flow diagrams and report export.
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/h2non/bimg"
)

// Rasterizer turns rendered diagrams into PNG. It uses bimg (Go bindings
// for libvips), so libvips must be installed, with librsvg for SVG input.
type Rasterizer struct {
	background *bimg.Color
}

// NewRasterizer creates a Rasterizer. An empty background keeps the
// transparent canvas; otherwise it is a hex color such as "ffffff".
func NewRasterizer(background string) (*Rasterizer, error) {
	r := &Rasterizer{}
	if background == "" {
		return r, nil
	}
	red, green, blue, err := parseHexColor(background)
	if err != nil {
		return nil, err
	}
	r.background = &bimg.Color{R: red, G: green, B: blue}
	return r, nil
}

// SVGSupported reports whether the local libvips can read SVG.
func SVGSupported() bool {
	return bimg.IsTypeSupported(bimg.SVG)
}

// Rasterize converts image data (SVG, or anything libvips reads) into a PNG
// of the given width. Height follows the source aspect ratio. A width of
// zero keeps the source size.
func (r *Rasterizer) Rasterize(data []byte, width int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("rasterizing: empty input")
	}

	opts := bimg.Options{
		Width:          width,
		Type:           bimg.PNG,
		Enlarge:        true,
		Interpretation: bimg.InterpretationSRGB,
	}
	if r.background != nil {
		// Flattens the alpha channel onto the background.
		opts.Background = *r.background
	}

	out, err := bimg.NewImage(data).Process(opts)
	if err != nil {
		return nil, fmt.Errorf("rasterizing to %dpx: %w", width, err)
	}
	return out, nil
}

// parseHexColor converts a hex color string (with or without #) to RGB values.
func parseHexColor(hex string) (uint8, uint8, uint8, error) {
	hex = strings.TrimPrefix(hex, "#")

	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid hex color: %q (expected 6 characters)", hex)
	}

	var r, g, b uint8
	_, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parsing hex color %q: %w", hex, err)
	}

	return r, g, b, nil
}
