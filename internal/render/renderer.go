// Package render draws the solution chart of a question: one stacked bar per
// series term of the resistance network, sized by resistance rather than
// physical thickness, next to a text panel carrying every number the student
// is asked for.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	imgcolor "image/color"
	"image/draw"
	"image/png"

	chart "github.com/wcharczuk/go-chart/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"heatloss-engine/internal/models"
)

// ContentType of Chart.PNG
const ContentType = "image/png"

// Default canvas size of the bar chart part of the image, in pixels
const (
	DefaultWidth  = 720
	DefaultHeight = 520
)

const (
	barWidth       = 56
	barSpacing     = 22
	panelPadding   = 14
	panelLineSkip  = 16
	swatchSize     = 10
	swatchGap      = 6
	minChartWidth  = 320
	minChartHeight = 240
)

// ErrInconsistentInput is returned when the solution does not belong to the wall
var ErrInconsistentInput = errors.New("solution does not match wall parameters")

// Options controls image size and colors
type Options struct {
	Width   int
	Height  int
	Palette Palette
}

// DefaultOptions returns the standard palette at the default size
func DefaultOptions() Options {
	return Options{Width: DefaultWidth, Height: DefaultHeight, Palette: PaletteStandard}
}

// Renderer turns a wall and its solution into a Chart. It holds no mutable
// state and may be shared between goroutines.
type Renderer struct {
	opts Options
}

// New creates a renderer; zero option fields fall back to the defaults
func New(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.Palette == "" {
		opts.Palette = def.Palette
	}
	if opts.Width < minChartWidth {
		opts.Width = minChartWidth
	}
	if opts.Height < minChartHeight {
		opts.Height = minChartHeight
	}
	return &Renderer{opts: opts}
}

// Options returns the effective options
func (r *Renderer) Options() Options {
	return r.opts
}

// WithPalette returns a renderer identical to r but for the palette
func (r *Renderer) WithPalette(p Palette) *Renderer {
	opts := r.opts
	opts.Palette = p
	return New(opts)
}

// Chart is a rendered solution image plus the values written on it
type Chart struct {
	PNG         []byte
	Width       int
	Height      int
	Palette     Palette
	Annotations Annotations
}

// Render draws the resistance stack of params. Numbers are taken from
// solution as-is, so the annotations always equal the resolver's values.
func (r *Renderer) Render(params *models.WallParameters, solution *models.ThermalSolution) (*Chart, error) {
	if params == nil || solution == nil {
		return nil, fmt.Errorf("%w: missing wall or solution", ErrInconsistentInput)
	}
	if len(solution.LayerResistances) != len(params.Layers) {
		return nil, fmt.Errorf("%w: %d layer resistances for %d layers",
			ErrInconsistentInput, len(solution.LayerResistances), len(params.Layers))
	}

	ann := annotate(params, solution, r.opts.Palette)

	sbc := chart.StackedBarChart{
		Title:      "Thermal resistance (m2K/W): " + params.Construction,
		Width:      r.opts.Width,
		Height:     r.opts.Height,
		BarSpacing: barSpacing,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		Bars:       bars(ann.Segments),
	}
	if len(sbc.Bars) == 0 {
		return nil, fmt.Errorf("%w: nothing to draw", ErrInconsistentInput)
	}

	var buf bytes.Buffer
	if err := sbc.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("rendering bar chart: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decoding bar chart: %w", err)
	}

	composed := drawPanel(img, ann.panel)

	var out bytes.Buffer
	if err := png.Encode(&out, composed); err != nil {
		return nil, fmt.Errorf("encoding chart: %w", err)
	}

	bounds := composed.Bounds()
	return &Chart{
		PNG:         out.Bytes(),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Palette:     r.opts.Palette,
		Annotations: ann,
	}, nil
}

// bars groups segments into one stacked bar per series term, skipping
// zero-valued terms such as a disabled surface film.
func bars(segments []Segment) []chart.StackedBar {
	var out []chart.StackedBar
	index := make(map[string]int)
	for _, s := range segments {
		if s.Value <= 0 {
			continue
		}
		i, ok := index[s.Bar]
		if !ok {
			i = len(out)
			index[s.Bar] = i
			out = append(out, chart.StackedBar{Name: s.Bar, Width: barWidth})
		}
		c := chartColor(s.Color)
		out[i].Values = append(out[i].Values, chart.Value{
			Label: s.Label,
			Value: s.Value,
			Style: chart.Style{
				FillColor:   c,
				StrokeColor: chartColor("ffffff"),
				StrokeWidth: 1,
			},
		})
	}
	return out
}

// drawPanel widens img and writes the annotation lines to its right, in the
// same way a hint is overlaid on a rendered go-chart image.
func drawPanel(img image.Image, lines []panelLine) image.Image {
	face := basicfont.Face7x13

	textWidth := 0
	for _, l := range lines {
		if w := font.MeasureString(face, l.text).Ceil(); w > textWidth {
			textWidth = w
		}
	}
	panelWidth := textWidth + swatchSize + swatchGap + 2*panelPadding

	src := img.Bounds()
	height := src.Dy()
	if need := len(lines)*panelLineSkip + 2*panelPadding; need > height {
		height = need
	}

	canvas := image.NewRGBA(image.Rect(0, 0, src.Dx()+panelWidth, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, 0, src.Dx(), src.Dy()), img, src.Min, draw.Src)

	textCol := image.NewUniform(imgcolor.RGBA{R: 33, G: 33, B: 33, A: 255})
	dr := &font.Drawer{Dst: canvas, Src: textCol, Face: face}
	ascent := face.Metrics().Ascent.Ceil()

	x := src.Dx() + panelPadding
	for i, l := range lines {
		baseline := panelPadding + (i+1)*panelLineSkip
		if l.swatch != "" {
			top := baseline - ascent + (ascent-swatchSize)/2
			rect := image.Rect(x, top, x+swatchSize, top+swatchSize)
			draw.Draw(canvas, rect, image.NewUniform(chartColor(l.swatch)), image.Point{}, draw.Src)
		}
		dr.Dot = fixed.P(x+swatchSize+swatchGap, baseline)
		dr.DrawString(l.text)
	}
	return canvas
}
