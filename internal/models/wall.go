package models

import "math"

// LayerKind tags a ResolvedLayer as single-material or parallel-path
type LayerKind string

const (
	LayerSimple LayerKind = "simple"
	LayerMixed  LayerKind = "mixed"
)

// PathRole names the part a sub-path plays inside a mixed layer
type PathRole string

const (
	RoleStructural           PathRole = "structural"
	RoleInsulation           PathRole = "insulation"
	RoleAdditionalInsulation PathRole = "additional_insulation"
)

// SubPath is one parallel heat path through a mixed layer
type SubPath struct {
	Role            PathRole `json:"role"`
	Material        string   `json:"material"`
	Fraction        float64  `json:"fraction"`
	Conductivity    *float64 `json:"k,omitempty"`
	FixedResistance *float64 `json:"fixed_r,omitempty"`
	Resistance      float64  `json:"resistance"`
}

// ResolvedLayer is the sampled, concrete instance of a LayerSpec.
// Resistance is filled in by the thermal resolver.
type ResolvedLayer struct {
	Kind            LayerKind `json:"kind"`
	Material        string    `json:"material"`
	ThicknessM      float64   `json:"thickness_m"`
	Conductivity    *float64  `json:"k,omitempty"`
	FixedResistance *float64  `json:"fixed_r,omitempty"`
	Resistance      float64   `json:"resistance"`
	SubPaths        []SubPath `json:"sub_paths,omitempty"`
}

// Label is the human readable name used in prompts and charts
func (l ResolvedLayer) Label() string {
	if l.Kind != LayerMixed {
		return DisplayName(l.Material)
	}
	label := DisplayName(l.Material)
	for _, p := range l.SubPaths {
		if p.Role != RoleStructural {
			label += " & " + DisplayName(p.Material)
		}
	}
	return label
}

// StructuralFraction returns the area fraction of the structural path, 0 for simple layers
func (l ResolvedLayer) StructuralFraction() float64 {
	for _, p := range l.SubPaths {
		if p.Role == RoleStructural {
			return p.Fraction
		}
	}
	return 0
}

// FractionSum adds the area fractions of all sub-paths
func (l ResolvedLayer) FractionSum() float64 {
	var sum float64
	for _, p := range l.SubPaths {
		sum += p.Fraction
	}
	return sum
}

// WallParameters is everything a student is given for one question
type WallParameters struct {
	Kind         QuestionKind       `json:"kind"`
	Construction string             `json:"construction"`
	LengthM      float64            `json:"length_m"`
	HeightM      float64            `json:"height_m"`
	InsideTempC  float64            `json:"t_inside_c"`
	OutsideTempC float64            `json:"t_outside_c"`
	Surface      SurfaceResistances `json:"surface_resistances"`
	Layers       []ResolvedLayer    `json:"layers"`
}

// Area returns the wall area in m²
func (w *WallParameters) Area() float64 {
	return w.LengthM * w.HeightM
}

// TemperatureDifference returns T_inside - T_outside, signed
func (w *WallParameters) TemperatureDifference() float64 {
	return w.InsideTempC - w.OutsideTempC
}

// HeatFlowDirection says whether the wall loses or gains heat
type HeatFlowDirection string

const (
	HeatFlowLoss HeatFlowDirection = "loss"
	HeatFlowGain HeatFlowDirection = "gain"
)

// LayerContribution is one series term of the resistance network
type LayerContribution struct {
	Label      string  `json:"label"`
	Resistance float64 `json:"resistance"`
	Share      float64 `json:"share"`
}

// ThermalSolution is the derived, read-only answer to a question.
// HeatLoss is always a magnitude; Direction carries the sign.
type ThermalSolution struct {
	LayerResistances []float64           `json:"layer_resistances"`
	SurfaceInside    float64             `json:"surface_inside"`
	SurfaceOutside   float64             `json:"surface_outside"`
	TotalResistance  float64             `json:"total_resistance"`
	UValue           float64             `json:"u_value"`
	Area             float64             `json:"area_m2"`
	DeltaT           float64             `json:"delta_t"`
	HeatLoss         float64             `json:"heat_loss_w"`
	Direction        HeatFlowDirection   `json:"direction"`
	Contributions    []LayerContribution `json:"contributions"`
}

// SignedHeatFlow returns Q with heat gain reported as a negative number
func (s *ThermalSolution) SignedHeatFlow() float64 {
	if s.Direction == HeatFlowGain {
		return -math.Abs(s.HeatLoss)
	}
	return s.HeatLoss
}
