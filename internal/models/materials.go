package models

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// QuestionKind selects which family of practice problem is generated
type QuestionKind string

const (
	// KindHeatLoss is a plain multi-layer wall, every layer a single material
	KindHeatLoss QuestionKind = "heat_loss"
	// KindThermalBridging is a wall where some layers mix framing and insulation
	KindThermalBridging QuestionKind = "thermal_bridging"
)

// AllKinds lists every supported question kind in display order
func AllKinds() []QuestionKind {
	return []QuestionKind{KindHeatLoss, KindThermalBridging}
}

// ParseQuestionKind converts a request string into a QuestionKind.
// Dashes are accepted in place of underscores ("thermal-bridging").
func ParseQuestionKind(s string) (QuestionKind, error) {
	normalized := QuestionKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, k := range AllKinds() {
		if normalized == k {
			return k, nil
		}
	}
	return "", &UnknownKindError{Requested: s}
}

// Material is one entry of the conductivity/resistance table.
// Exactly one of Conductivity (W/m·K) or Resistance (m²K/W) is set.
type Material struct {
	Key          string   `json:"key" db:"material_key"`
	Conductivity *float64 `json:"k,omitempty" db:"conductivity"`
	Resistance   *float64 `json:"r,omitempty" db:"resistance"`
}

// NewConductiveMaterial builds a material whose resistance depends on thickness
func NewConductiveMaterial(key string, k float64) Material {
	return Material{Key: key, Conductivity: &k}
}

// NewFixedResistanceMaterial builds a material with a tabulated resistance
func NewFixedResistanceMaterial(key string, r float64) Material {
	return Material{Key: key, Resistance: &r}
}

// Validate checks the k XOR R rule and that the defined value is usable
func (m Material) Validate() error {
	switch {
	case m.Conductivity != nil && m.Resistance != nil:
		return &UnknownMaterialError{Key: m.Key, Reason: "both conductivity and resistance are defined"}
	case m.Conductivity == nil && m.Resistance == nil:
		return &UnknownMaterialError{Key: m.Key, Reason: "neither conductivity nor resistance is defined"}
	case m.Conductivity != nil && !positiveFinite(*m.Conductivity):
		return &UnknownMaterialError{Key: m.Key, Reason: fmt.Sprintf("conductivity %v must be a positive finite number", *m.Conductivity)}
	case m.Resistance != nil && !positiveFinite(*m.Resistance):
		return &UnknownMaterialError{Key: m.Key, Reason: fmt.Sprintf("resistance %v must be a positive finite number", *m.Resistance)}
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// IsFixedResistance reports whether thickness is irrelevant for this material
func (m Material) IsFixedResistance() bool {
	return m.Resistance != nil
}

// DisplayName turns a catalog key such as "metal_frame" into "Metal Frame"
func (m Material) DisplayName() string {
	return DisplayName(m.Key)
}

// DisplayName title-cases an underscore separated catalog key
func DisplayName(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// LayerSpec is one entry of a construction template. It is either a
// SimpleLayerSpec or a MixedLayerSpec.
type LayerSpec interface {
	// Materials returns every material key the layer references
	Materials() []string
	isLayerSpec()
}

// SimpleLayerSpec is a layer made of a single material
type SimpleLayerSpec struct {
	Material string `json:"material"`
}

func (s SimpleLayerSpec) Materials() []string { return []string{s.Material} }
func (SimpleLayerSpec) isLayerSpec()          {}

// MixedLayerSpec is a parallel-path layer: a structural element occupying
// PercentageRange percent of the area, insulation filling the gaps, and
// optionally an additional insulation taking a share of those gaps.
type MixedLayerSpec struct {
	Structural      string                    `json:"structural"`
	Insulation      string                    `json:"insulation"`
	PercentageRange [2]float64                `json:"percentage_range"`
	Additional      *AdditionalInsulationSpec `json:"additional_insulation,omitempty"`
}

func (m MixedLayerSpec) Materials() []string {
	keys := []string{m.Structural, m.Insulation}
	if m.Additional != nil {
		keys = append(keys, m.Additional.Material)
	}
	return keys
}

func (MixedLayerSpec) isLayerSpec() {}

// AdditionalInsulationSpec splits the non-structural remainder of a mixed
// layer. ShareRange is the percentage of that remainder it occupies.
type AdditionalInsulationSpec struct {
	Material   string     `json:"material"`
	ShareRange [2]float64 `json:"share_range"`
}

// ConstructionTemplate is a named, ordered wall build-up for one layer count.
// Layers run from the outside face to the inside face.
type ConstructionTemplate struct {
	Name       string      `json:"name"`
	LayerCount int         `json:"layer_count"`
	Layers     []LayerSpec `json:"-"`
}

// HasMixedLayers reports whether any layer is a parallel-path layer
func (t ConstructionTemplate) HasMixedLayers() bool {
	for _, l := range t.Layers {
		if _, ok := l.(MixedLayerSpec); ok {
			return true
		}
	}
	return false
}

// SurfaceResistances are the boundary air-film resistances (m²K/W).
// They are never folded into layer R-values.
type SurfaceResistances struct {
	Inside  float64 `json:"inside" yaml:"inside" db:"inside_resistance"`
	Outside float64 `json:"outside" yaml:"outside" db:"outside_resistance"`
}
