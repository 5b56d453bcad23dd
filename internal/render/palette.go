package render

import (
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"heatloss-engine/internal/models"
)

// Palette selects the color mapping of a chart. Every palette draws the same
// structure; only the colors change.
type Palette string

const (
	// PaletteStandard uses the familiar ten-color categorical set
	PaletteStandard Palette = "standard"
	// PaletteColorblind uses the Okabe–Ito set, distinguishable under the
	// common forms of color vision deficiency
	PaletteColorblind Palette = "colorblind"
)

// Materials take colors in order of first appearance in the wall, cycling
// when a wall has more materials than the palette has colors.
var paletteColors = map[Palette][]string{
	PaletteStandard: {
		"1f77b4", "ff7f0e", "2ca02c", "d62728", "9467bd",
		"8c564b", "e377c2", "bcbd22", "17becf",
	},
	PaletteColorblind: {
		"e69f00", // orange
		"56b4e9", // sky blue
		"009e73", // bluish green
		"f0e442", // yellow
		"0072b2", // blue
		"d55e00", // vermillion
		"cc79a7", // reddish purple
	},
}

// Surface films are drawn in a neutral tone so they never compete with materials
var surfaceColors = map[Palette]string{
	PaletteStandard:   "c7c7c7",
	PaletteColorblind: "999999",
}

// UnknownPaletteError is returned for a palette name that is not supported
type UnknownPaletteError struct {
	Requested string
}

func (e *UnknownPaletteError) Error() string {
	return fmt.Sprintf("unknown palette %q, expected one of %s", e.Requested, strings.Join(paletteNames(), ", "))
}

func (e *UnknownPaletteError) Kind() models.ErrorKind { return models.ErrorKindInput }
func (e *UnknownPaletteError) IsTransient() bool      { return false }

// Palettes lists the supported palettes
func Palettes() []Palette {
	return []Palette{PaletteStandard, PaletteColorblind}
}

func paletteNames() []string {
	names := make([]string, 0, len(paletteColors))
	for _, p := range Palettes() {
		names = append(names, string(p))
	}
	return names
}

// ParsePalette converts an option string to a Palette. Empty means standard.
func ParsePalette(s string) (Palette, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	switch normalized {
	case "":
		return PaletteStandard, nil
	case "colourblind", "colorblind_safe", "okabe_ito":
		return PaletteColorblind, nil
	}
	for _, p := range Palettes() {
		if Palette(normalized) == p {
			return p, nil
		}
	}
	return "", &UnknownPaletteError{Requested: s}
}

// Hex returns the hex color of the i-th material in first-appearance order
func (p Palette) Hex(i int) string {
	colors, ok := paletteColors[p]
	if !ok {
		colors = paletteColors[PaletteStandard]
	}
	return colors[i%len(colors)]
}

// SurfaceHex returns the color used for the surface film bars
func (p Palette) SurfaceHex() string {
	if c, ok := surfaceColors[p]; ok {
		return c
	}
	return surfaceColors[PaletteStandard]
}

func chartColor(hex string) drawing.Color {
	return drawing.ColorFromHex(hex)
}
