package render

import (
	"fmt"

	"heatloss-engine/internal/models"
	"heatloss-engine/internal/thermal"
)

// Bar names of the two surface film terms
const (
	OutsideSurfaceBar = "Rso"
	InsideSurfaceBar  = "Rsi"
)

// Segment is one colored block of a stacked bar. A simple layer or a surface
// film is a single segment; a mixed layer has one segment per sub-path with
// Value = Fraction × layer resistance.
type Segment struct {
	Bar          string   `json:"bar"`
	Label        string   `json:"label"`
	Material     string   `json:"material,omitempty"`
	Conductivity *float64 `json:"k,omitempty"`
	Fraction     float64  `json:"fraction"`
	Value        float64  `json:"value"`
	Color        string   `json:"color"`
}

// Annotations are the numbers written on a chart. They are copied from the
// solution and never recomputed.
type Annotations struct {
	Construction    string                   `json:"construction"`
	LengthM         float64                  `json:"length_m"`
	HeightM         float64                  `json:"height_m"`
	Area            float64                  `json:"area_m2"`
	InsideTempC     float64                  `json:"t_inside_c"`
	OutsideTempC    float64                  `json:"t_outside_c"`
	TotalResistance float64                  `json:"total_resistance"`
	UValue          float64                  `json:"u_value"`
	HeatLoss        float64                  `json:"heat_loss_w"`
	Direction       models.HeatFlowDirection `json:"direction"`
	Segments        []Segment                `json:"segments"`
	Lines           []string                 `json:"lines"`

	panel []panelLine
}

type panelLine struct {
	text   string
	swatch string
}

func annotate(params *models.WallParameters, sol *models.ThermalSolution, palette Palette) Annotations {
	ann := Annotations{
		Construction:    params.Construction,
		LengthM:         params.LengthM,
		HeightM:         params.HeightM,
		Area:            sol.Area,
		InsideTempC:     params.InsideTempC,
		OutsideTempC:    params.OutsideTempC,
		TotalResistance: sol.TotalResistance,
		UValue:          sol.UValue,
		HeatLoss:        sol.HeatLoss,
		Direction:       sol.Direction,
	}

	flow := "heat loss"
	if sol.Direction == models.HeatFlowGain {
		flow = "heat gain"
	}

	ann.line("", "Construction: %s", params.Construction)
	ann.line("", "Wall: %.2f m x %.2f m, area %.2f m2", params.LengthM, params.HeightM, sol.Area)
	ann.line("", "Inside %g C, outside %g C, dT %g K", params.InsideTempC, params.OutsideTempC, sol.DeltaT)
	ann.line("", "R total = %.3f m2K/W", sol.TotalResistance)
	ann.line("", "U = 1/R total = %.3f W/m2K", sol.UValue)
	ann.line("", "Q = U x A x dT = %.1f W (%s)", sol.HeatLoss, flow)
	ann.line("", "")
	ann.line("", "Resistances, outside to inside (m2K/W):")

	colors := make(map[string]string)
	materialColor := func(key string) string {
		if c, ok := colors[key]; ok {
			return c
		}
		c := palette.Hex(len(colors))
		colors[key] = c
		return c
	}

	surface := palette.SurfaceHex()
	ann.segment(Segment{Bar: OutsideSurfaceBar, Label: thermal.OutsideSurfaceLabel, Fraction: 1, Value: sol.SurfaceOutside, Color: surface})
	ann.line(surface, "%s  %s: %.3f", OutsideSurfaceBar, thermal.OutsideSurfaceLabel, sol.SurfaceOutside)

	for i, layer := range params.Layers {
		bar := fmt.Sprintf("L%d", i+1)
		r := sol.LayerResistances[i]

		if layer.Kind != models.LayerMixed {
			c := materialColor(layer.Material)
			ann.segment(Segment{
				Bar:          bar,
				Label:        materialLabel(layer.Material, layer.Conductivity, layer.FixedResistance),
				Material:     layer.Material,
				Conductivity: layer.Conductivity,
				Fraction:     1,
				Value:        r,
				Color:        c,
			})
			ann.line(c, "%s  %s: %.3f", bar, describeLayer(layer), r)
			continue
		}

		ann.line("", "%s  %s: %.3f", bar, describeLayer(layer), r)
		for _, p := range layer.SubPaths {
			c := materialColor(p.Material)
			label := materialLabel(p.Material, p.Conductivity, p.FixedResistance)
			ann.segment(Segment{
				Bar:          bar,
				Label:        label,
				Material:     p.Material,
				Conductivity: p.Conductivity,
				Fraction:     p.Fraction,
				Value:        p.Fraction * r,
				Color:        c,
			})
			ann.line(c, "    %s, %.1f%% of area, R path %.3f", label, p.Fraction*100, p.Resistance)
		}
	}

	ann.segment(Segment{Bar: InsideSurfaceBar, Label: thermal.InsideSurfaceLabel, Fraction: 1, Value: sol.SurfaceInside, Color: surface})
	ann.line(surface, "%s  %s: %.3f", InsideSurfaceBar, thermal.InsideSurfaceLabel, sol.SurfaceInside)

	return ann
}

func (a *Annotations) line(swatch, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	a.Lines = append(a.Lines, text)
	a.panel = append(a.panel, panelLine{text: text, swatch: swatch})
}

func (a *Annotations) segment(s Segment) {
	a.Segments = append(a.Segments, s)
}

// materialLabel names a material with its conductivity or tabulated R
func materialLabel(key string, k, r *float64) string {
	switch {
	case k != nil:
		return fmt.Sprintf("%s k=%g", models.DisplayName(key), *k)
	case r != nil:
		return fmt.Sprintf("%s R=%g", models.DisplayName(key), *r)
	default:
		return models.DisplayName(key)
	}
}

func describeLayer(layer models.ResolvedLayer) string {
	if layer.FixedResistance != nil {
		return materialLabel(layer.Material, layer.Conductivity, layer.FixedResistance)
	}
	if layer.Kind == models.LayerMixed {
		return fmt.Sprintf("%s, %.1f mm", layer.Label(), layer.ThicknessM*1000)
	}
	return fmt.Sprintf("%s, %.1f mm", materialLabel(layer.Material, layer.Conductivity, nil), layer.ThicknessM*1000)
}
