// Package sampler turns a catalog construction template into the concrete
// wall of one question: thicknesses, framing fractions, dimensions and
// temperatures, all drawn from an injected random source.
//
// A Sampler is request-local. math/rand.Rand is not goroutine-safe, so give
// every request its own Source (see NewSource) instead of sharing one.
package sampler

import (
	"fmt"
	"math"
	"math/rand"

	"heatloss-engine/internal/catalog"
	"heatloss-engine/internal/models"
)

// Source is the randomness a Sampler consumes. *math/rand.Rand satisfies it.
type Source interface {
	// Intn returns a uniform int in [0, n)
	Intn(n int) int
	// Float64 returns a uniform float in [0, 1)
	Float64() float64
}

// NewSource returns a deterministic source for seed
func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Documented bounds for the randomly drawn wall geometry and climate
const (
	MinLengthM      = 3.0
	MaxLengthM      = 10.0
	MinHeightM      = 2.4
	MaxHeightM      = 3.5
	MinInsideTempC  = 18
	MaxInsideTempC  = 24
	MinOutsideTempC = -10
	MaxOutsideTempC = 15

	// Lengths and heights are quoted to the centimetre
	dimensionDecimals = 2
	mmPerMetre        = 1000.0
)

// Ranges bounds the drawn dimensions (m) and temperatures (whole °C), inclusive
type Ranges struct {
	LengthM      [2]float64
	HeightM      [2]float64
	InsideTempC  [2]int
	OutsideTempC [2]int
}

// DefaultRanges returns the documented realistic bounds
func DefaultRanges() Ranges {
	return Ranges{
		LengthM:      [2]float64{MinLengthM, MaxLengthM},
		HeightM:      [2]float64{MinHeightM, MaxHeightM},
		InsideTempC:  [2]int{MinInsideTempC, MaxInsideTempC},
		OutsideTempC: [2]int{MinOutsideTempC, MaxOutsideTempC},
	}
}

// Validate checks every range is ordered and the dimensions are positive
func (r Ranges) Validate() error {
	switch {
	case !(r.LengthM[0] > 0) || r.LengthM[0] > r.LengthM[1]:
		return fmt.Errorf("invalid length range %v", r.LengthM)
	case !(r.HeightM[0] > 0) || r.HeightM[0] > r.HeightM[1]:
		return fmt.Errorf("invalid height range %v", r.HeightM)
	case r.InsideTempC[0] > r.InsideTempC[1]:
		return fmt.Errorf("invalid inside temperature range %v", r.InsideTempC)
	case r.OutsideTempC[0] > r.OutsideTempC[1]:
		return fmt.Errorf("invalid outside temperature range %v", r.OutsideTempC)
	}
	return nil
}

// Option configures a Sampler
type Option func(*Sampler)

// WithRanges overrides the default geometry and climate bounds
func WithRanges(r Ranges) Option {
	return func(s *Sampler) { s.ranges = r }
}

// Sampler draws WallParameters from one catalog
type Sampler struct {
	catalog *catalog.Catalog
	rng     Source
	ranges  Ranges
}

// New creates a sampler reading templates from c and randomness from rng
func New(c *catalog.Catalog, rng Source, opts ...Option) *Sampler {
	s := &Sampler{
		catalog: c,
		rng:     rng,
		ranges:  DefaultRanges(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample picks a template for numLayers and instantiates every layer of it.
// Layer order follows the template (outside face first). Resistances are
// left at zero for the thermal resolver to fill in.
func (s *Sampler) Sample(numLayers int) (*models.WallParameters, error) {
	if err := s.ranges.Validate(); err != nil {
		return nil, &models.ConfigurationError{Source: string(s.catalog.Kind()), Message: "sampling ranges", Err: err}
	}

	templates, err := s.catalog.Templates(numLayers)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, &models.ConfigurationError{
			Source:  string(s.catalog.Kind()),
			Message: fmt.Sprintf("no construction registered for %d layers", numLayers),
		}
	}

	tmpl := templates[s.rng.Intn(len(templates))]

	layers := make([]models.ResolvedLayer, 0, len(tmpl.Layers))
	for _, spec := range tmpl.Layers {
		layer, err := s.sampleLayer(spec)
		if err != nil {
			return nil, fmt.Errorf("construction %q: %w", tmpl.Name, err)
		}
		layers = append(layers, layer)
	}

	return &models.WallParameters{
		Kind:         s.catalog.Kind(),
		Construction: tmpl.Name,
		LengthM:      round(s.uniform(s.ranges.LengthM[0], s.ranges.LengthM[1]), dimensionDecimals),
		HeightM:      round(s.uniform(s.ranges.HeightM[0], s.ranges.HeightM[1]), dimensionDecimals),
		InsideTempC:  float64(s.intBetween(s.ranges.InsideTempC[0], s.ranges.InsideTempC[1])),
		OutsideTempC: float64(s.intBetween(s.ranges.OutsideTempC[0], s.ranges.OutsideTempC[1])),
		Surface:      s.catalog.Surface(),
		Layers:       layers,
	}, nil
}

func (s *Sampler) sampleLayer(spec models.LayerSpec) (models.ResolvedLayer, error) {
	switch spec := spec.(type) {
	case models.SimpleLayerSpec:
		return s.sampleSimple(spec)
	case models.MixedLayerSpec:
		return s.sampleMixed(spec)
	default:
		return models.ResolvedLayer{}, fmt.Errorf("unsupported layer spec %T", spec)
	}
}

func (s *Sampler) sampleSimple(spec models.SimpleLayerSpec) (models.ResolvedLayer, error) {
	material, err := s.catalog.Lookup(spec.Material)
	if err != nil {
		return models.ResolvedLayer{}, err
	}
	thickness, err := s.drawThickness(spec.Material)
	if err != nil {
		return models.ResolvedLayer{}, err
	}

	return models.ResolvedLayer{
		Kind:            models.LayerSimple,
		Material:        material.Key,
		ThicknessM:      thickness,
		Conductivity:    material.Conductivity,
		FixedResistance: material.Resistance,
	}, nil
}

func (s *Sampler) sampleMixed(spec models.MixedLayerSpec) (models.ResolvedLayer, error) {
	// Sub-paths fill the depth of the structural element
	thickness, err := s.drawThickness(spec.Structural)
	if err != nil {
		return models.ResolvedLayer{}, err
	}

	structural := s.uniform(spec.PercentageRange[0], spec.PercentageRange[1]) / 100
	remainder := 1 - structural
	var additional float64
	if spec.Additional != nil {
		additional = remainder * s.uniform(spec.Additional.ShareRange[0], spec.Additional.ShareRange[1]) / 100
	}
	// Computed last so the fractions always sum to one
	insulation := 1 - structural - additional

	paths := []struct {
		role     models.PathRole
		key      string
		fraction float64
	}{
		{models.RoleStructural, spec.Structural, structural},
		{models.RoleInsulation, spec.Insulation, insulation},
	}
	if spec.Additional != nil {
		paths = append(paths, struct {
			role     models.PathRole
			key      string
			fraction float64
		}{models.RoleAdditionalInsulation, spec.Additional.Material, additional})
	}

	layer := models.ResolvedLayer{
		Kind:       models.LayerMixed,
		Material:   spec.Structural,
		ThicknessM: thickness,
		SubPaths:   make([]models.SubPath, 0, len(paths)),
	}
	for _, p := range paths {
		material, err := s.catalog.Lookup(p.key)
		if err != nil {
			return models.ResolvedLayer{}, err
		}
		layer.SubPaths = append(layer.SubPaths, models.SubPath{
			Role:            p.role,
			Material:        material.Key,
			Fraction:        p.fraction,
			Conductivity:    material.Conductivity,
			FixedResistance: material.Resistance,
		})
	}

	return layer, nil
}

// drawThickness picks one standard thickness by index and converts it to metres
func (s *Sampler) drawThickness(key string) (float64, error) {
	options, err := s.catalog.Thicknesses(key)
	if err != nil {
		return 0, err
	}
	if len(options) == 0 {
		return 0, &models.ConfigurationError{
			Source:  string(s.catalog.Kind()),
			Message: fmt.Sprintf("material %q has no standard thicknesses", key),
		}
	}
	return options[s.rng.Intn(len(options))] / mmPerMetre, nil
}

// uniform draws from [lo, hi]; a zero-width range returns lo exactly
func (s *Sampler) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Sampler) intBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Intn(hi-lo+1)
}

func round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
