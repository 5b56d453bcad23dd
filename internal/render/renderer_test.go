package render

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatloss-engine/internal/catalog"
	"heatloss-engine/internal/models"
	"heatloss-engine/internal/sampler"
	"heatloss-engine/internal/thermal"
)

func sampledWall(t *testing.T, kind models.QuestionKind, n int, seed int64) (*models.WallParameters, *models.ThermalSolution) {
	t.Helper()
	c, err := catalog.LoadEmbedded(kind)
	require.NoError(t, err)
	wall, err := sampler.New(c, sampler.NewSource(seed)).Sample(n)
	require.NoError(t, err)
	sol, err := thermal.Resolve(wall)
	require.NoError(t, err)
	return wall, sol
}

func TestRender_ProducesPNG(t *testing.T) {
	wall, sol := sampledWall(t, models.KindHeatLoss, 4, 11)

	chart, err := New(DefaultOptions()).Render(wall, sol)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(chart.PNG))
	require.NoError(t, err)
	assert.Equal(t, chart.Width, cfg.Width)
	assert.Equal(t, chart.Height, cfg.Height)
	assert.Greater(t, cfg.Width, DefaultWidth, "annotation panel widens the image")
	assert.GreaterOrEqual(t, cfg.Height, DefaultHeight)
	assert.Equal(t, PaletteStandard, chart.Palette)
}

func TestRender_AnnotationsMatchSolutionExactly(t *testing.T) {
	for _, kind := range models.AllKinds() {
		for _, n := range catalog.SupportedLayerCounts() {
			wall, sol := sampledWall(t, kind, n, int64(n)*7)

			chart, err := New(DefaultOptions()).Render(wall, sol)
			require.NoError(t, err)

			ann := chart.Annotations
			assert.Equal(t, sol.TotalResistance, ann.TotalResistance)
			assert.Equal(t, sol.UValue, ann.UValue)
			assert.Equal(t, sol.HeatLoss, ann.HeatLoss)
			assert.Equal(t, sol.Direction, ann.Direction)
			assert.Equal(t, sol.Area, ann.Area)
			assert.Equal(t, wall.LengthM, ann.LengthM)
			assert.Equal(t, wall.HeightM, ann.HeightM)
			assert.Equal(t, wall.InsideTempC, ann.InsideTempC)
			assert.Equal(t, wall.OutsideTempC, ann.OutsideTempC)
		}
	}
}

func TestRender_SameInputSameAnnotations(t *testing.T) {
	wall, sol := sampledWall(t, models.KindThermalBridging, 5, 3)
	r := New(DefaultOptions())

	first, err := r.Render(wall, sol)
	require.NoError(t, err)
	second, err := r.Render(wall, sol)
	require.NoError(t, err)

	assert.Equal(t, first.Annotations, second.Annotations)
}

func TestRender_OneBarPerSeriesTerm(t *testing.T) {
	wall, sol := sampledWall(t, models.KindThermalBridging, 4, 5)

	chart, err := New(DefaultOptions()).Render(wall, sol)
	require.NoError(t, err)

	perBar := make(map[string]float64)
	var order []string
	for _, s := range chart.Annotations.Segments {
		if _, ok := perBar[s.Bar]; !ok {
			order = append(order, s.Bar)
		}
		perBar[s.Bar] += s.Value
	}

	require.Len(t, order, len(wall.Layers)+2)
	assert.Equal(t, OutsideSurfaceBar, order[0])
	assert.Equal(t, InsideSurfaceBar, order[len(order)-1])

	for i, r := range sol.LayerResistances {
		assert.InDelta(t, r, perBar[order[i+1]], 1e-9, "bar %s", order[i+1])
	}
}

func TestRender_MixedLayerSegmentsLabeledWithConductivity(t *testing.T) {
	wall, sol := sampledWall(t, models.KindThermalBridging, 3, 1)

	chart, err := New(DefaultOptions()).Render(wall, sol)
	require.NoError(t, err)

	mixed := 0
	for i, layer := range wall.Layers {
		if layer.Kind != models.LayerMixed {
			continue
		}
		bar := fmt.Sprintf("L%d", i+1)
		var segments []Segment
		for _, s := range chart.Annotations.Segments {
			if s.Bar == bar {
				segments = append(segments, s)
			}
		}
		require.Len(t, segments, len(layer.SubPaths))
		for j, s := range segments {
			mixed++
			assert.Equal(t, layer.SubPaths[j].Material, s.Material)
			assert.Equal(t, layer.SubPaths[j].Fraction, s.Fraction)
			if s.Conductivity != nil {
				assert.Contains(t, s.Label, "k=")
			}
		}
	}
	assert.Positive(t, mixed)
}

func TestRender_ColorblindPaletteKeepsStructure(t *testing.T) {
	wall, sol := sampledWall(t, models.KindThermalBridging, 5, 9)

	standard, err := New(DefaultOptions()).Render(wall, sol)
	require.NoError(t, err)
	colorblind, err := New(Options{Palette: PaletteColorblind}).Render(wall, sol)
	require.NoError(t, err)

	require.Len(t, colorblind.Annotations.Segments, len(standard.Annotations.Segments))
	assert.Equal(t, standard.Annotations.Lines, colorblind.Annotations.Lines)

	okabeIto := paletteColors[PaletteColorblind]
	for i, s := range colorblind.Annotations.Segments {
		std := standard.Annotations.Segments[i]
		assert.Equal(t, std.Bar, s.Bar)
		assert.Equal(t, std.Label, s.Label)
		assert.Equal(t, std.Value, s.Value)
		if s.Material != "" {
			assert.Contains(t, okabeIto, s.Color)
			assert.NotEqual(t, std.Color, s.Color)
		} else {
			assert.Equal(t, PaletteColorblind.SurfaceHex(), s.Color)
		}
	}
}

func TestRender_LinesCarryTheAnswers(t *testing.T) {
	wall := &models.WallParameters{
		Construction: "Test wall",
		LengthM:      5,
		HeightM:      2,
		InsideTempC:  20,
		OutsideTempC: 0,
		Layers: []models.ResolvedLayer{
			{Kind: models.LayerSimple, Material: "a", FixedResistance: ptr(1.0)},
			{Kind: models.LayerSimple, Material: "b", FixedResistance: ptr(2.0)},
			{Kind: models.LayerSimple, Material: "c", FixedResistance: ptr(0.5)},
		},
	}
	sol, err := thermal.Resolve(wall)
	require.NoError(t, err)

	chart, err := New(DefaultOptions()).Render(wall, sol)
	require.NoError(t, err)

	text := strings.Join(chart.Annotations.Lines, "\n")
	assert.Contains(t, text, "R total = 3.500 m2K/W")
	assert.Contains(t, text, "U = 1/R total = 0.286 W/m2K")
	assert.Contains(t, text, "Q = U x A x dT = 57.1 W (heat loss)")
	assert.Contains(t, text, "Wall: 5.00 m x 2.00 m, area 10.00 m2")
	assert.Contains(t, text, "Inside 20 C, outside 0 C")
}

func TestRender_InconsistentInput(t *testing.T) {
	wall, sol := sampledWall(t, models.KindHeatLoss, 3, 2)
	r := New(DefaultOptions())

	_, err := r.Render(nil, sol)
	assert.ErrorIs(t, err, ErrInconsistentInput)

	truncated := *sol
	truncated.LayerResistances = sol.LayerResistances[:1]
	_, err = r.Render(wall, &truncated)
	assert.ErrorIs(t, err, ErrInconsistentInput)
}

func TestBars_SkipsZeroTerms(t *testing.T) {
	segments := []Segment{
		{Bar: OutsideSurfaceBar, Value: 0, Color: "999999"},
		{Bar: "L1", Value: 1.2, Color: "e69f00"},
		{Bar: "L2", Value: 0.3, Color: "56b4e9"},
		{Bar: "L2", Value: 0.9, Color: "009e73"},
		{Bar: InsideSurfaceBar, Value: 0, Color: "999999"},
	}

	got := bars(segments)
	require.Len(t, got, 2)
	assert.Equal(t, "L1", got[0].Name)
	assert.Len(t, got[1].Values, 2)
}

func TestNew_Defaults(t *testing.T) {
	r := New(Options{})
	assert.Equal(t, DefaultOptions(), r.Options())

	small := New(Options{Width: 10, Height: 10})
	assert.Equal(t, minChartWidth, small.Options().Width)
	assert.Equal(t, minChartHeight, small.Options().Height)

	assert.Equal(t, PaletteColorblind, r.WithPalette(PaletteColorblind).Options().Palette)
}

func TestParsePalette(t *testing.T) {
	tests := []struct {
		input   string
		want    Palette
		wantErr bool
	}{
		{"", PaletteStandard, false},
		{"standard", PaletteStandard, false},
		{"colorblind", PaletteColorblind, false},
		{" Colourblind ", PaletteColorblind, false},
		{"okabe_ito", PaletteColorblind, false},
		{"neon", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePalette(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, models.IsCallerError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPalette_HexCycles(t *testing.T) {
	n := len(paletteColors[PaletteColorblind])
	assert.Equal(t, PaletteColorblind.Hex(0), PaletteColorblind.Hex(n))
	assert.Equal(t, PaletteStandard.Hex(1), Palette("unknown").Hex(1))
}

func ptr(v float64) *float64 { return &v }
