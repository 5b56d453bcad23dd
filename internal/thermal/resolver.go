// Package thermal resolves a sampled wall into its steady-state thermal
// solution: per-layer resistances, the series total, U-value and heat flow.
//
// Layers combine in series. A mixed layer is first collapsed into a single
// resistance with the area-weighted parallel-path law. Surface films are
// added as explicit series terms (outside film first, inside film last, the
// same order as the layers). Every function here is pure.
package thermal

import (
	"errors"
	"fmt"
	"math"

	"heatloss-engine/internal/models"
)

// FractionTolerance is how far the area fractions of a mixed layer may drift from 1
const FractionTolerance = 1e-6

// Labels used for the surface film terms in contributions and charts
const (
	OutsideSurfaceLabel = "External Surface (Rso)"
	InsideSurfaceLabel  = "Internal Surface (Rsi)"
)

// ErrMalformedNetwork is returned for structurally invalid input such as an
// empty wall or mismatched fraction and resistance lists.
var ErrMalformedNetwork = errors.New("malformed resistance network")

// LayerResistance returns d/k for a conductive material and the tabulated R
// for a fixed-resistance one (thickness is ignored).
func LayerResistance(m models.Material, thicknessM float64) (float64, error) {
	var r float64
	switch {
	case m.Resistance != nil && m.Conductivity != nil:
		return 0, &models.UnknownMaterialError{Key: m.Key, Reason: "both conductivity and resistance are defined"}
	case m.Resistance != nil:
		r = *m.Resistance
	case m.Conductivity != nil:
		if *m.Conductivity == 0 {
			return 0, &models.DivisionError{Quantity: fmt.Sprintf("resistance of %q (zero conductivity)", m.Key)}
		}
		r = thicknessM / *m.Conductivity
	default:
		return 0, &models.UnknownMaterialError{Key: m.Key, Reason: "neither conductivity nor resistance is defined"}
	}

	if !positiveFinite(r) {
		return 0, &models.InvalidResistanceError{Material: m.Key, Resistance: r}
	}
	return r, nil
}

// Parallel combines area-weighted parallel paths: R = 1 / Σ(f_i / R_i).
// Fractions must lie in [0, 1] and sum to 1; every R_i must be positive.
func Parallel(fractions, resistances []float64) (float64, error) {
	if len(fractions) == 0 || len(fractions) != len(resistances) {
		return 0, fmt.Errorf("%w: %d fractions for %d resistances", ErrMalformedNetwork, len(fractions), len(resistances))
	}

	var fractionSum, conductance float64
	for i, f := range fractions {
		if f < 0 || f > 1 || math.IsNaN(f) {
			return 0, fmt.Errorf("%w: fraction %v of path %d outside [0, 1]", ErrMalformedNetwork, f, i)
		}
		r := resistances[i]
		if !positiveFinite(r) {
			return 0, &models.InvalidResistanceError{Material: fmt.Sprintf("parallel path %d", i), Resistance: r}
		}
		fractionSum += f
		conductance += f / r
	}

	if math.Abs(fractionSum-1) > FractionTolerance {
		return 0, fmt.Errorf("%w: fractions sum to %v, expected 1", ErrMalformedNetwork, fractionSum)
	}
	if conductance == 0 {
		return 0, &models.DivisionError{Quantity: "parallel resistance"}
	}
	return 1 / conductance, nil
}

// Series adds resistances. Terms may be zero (a disabled surface film) but
// never negative or non-finite.
func Series(resistances []float64) (float64, error) {
	var total float64
	for i, r := range resistances {
		if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return 0, &models.InvalidResistanceError{Material: fmt.Sprintf("series term %d", i), Resistance: r}
		}
		total += r
	}
	return total, nil
}

// UValue returns the thermal transmittance 1/R_total
func UValue(total float64) (float64, error) {
	if total == 0 {
		return 0, &models.DivisionError{Quantity: "U-value"}
	}
	return 1 / total, nil
}

// Resolve fills in the resistance of every layer and sub-path of params and
// returns the solution. Heat flow is a magnitude; Direction tells whether the
// wall loses heat (inside warmer) or gains it.
func Resolve(params *models.WallParameters) (*models.ThermalSolution, error) {
	if params == nil || len(params.Layers) == 0 {
		return nil, fmt.Errorf("%w: wall has no layers", ErrMalformedNetwork)
	}

	layerResistances := make([]float64, len(params.Layers))
	for i := range params.Layers {
		r, err := resolveLayer(&params.Layers[i])
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i+1, params.Layers[i].Material, err)
		}
		layerResistances[i] = r
	}

	terms := make([]float64, 0, len(layerResistances)+2)
	terms = append(terms, params.Surface.Outside)
	terms = append(terms, layerResistances...)
	terms = append(terms, params.Surface.Inside)

	total, err := Series(terms)
	if err != nil {
		return nil, err
	}
	u, err := UValue(total)
	if err != nil {
		return nil, err
	}
	area := params.Area()
	deltaT := params.TemperatureDifference()

	direction := models.HeatFlowLoss
	if deltaT < 0 {
		direction = models.HeatFlowGain
	}

	solution := &models.ThermalSolution{
		LayerResistances: layerResistances,
		SurfaceInside:    params.Surface.Inside,
		SurfaceOutside:   params.Surface.Outside,
		TotalResistance:  total,
		UValue:           u,
		Area:             area,
		DeltaT:           deltaT,
		HeatLoss:         u * area * math.Abs(deltaT),
		Direction:        direction,
		Contributions:    contributions(params, layerResistances, total),
	}
	return solution, nil
}

func resolveLayer(layer *models.ResolvedLayer) (float64, error) {
	if layer.Kind != models.LayerMixed {
		r, err := LayerResistance(models.Material{
			Key:          layer.Material,
			Conductivity: layer.Conductivity,
			Resistance:   layer.FixedResistance,
		}, layer.ThicknessM)
		if err != nil {
			return 0, err
		}
		layer.Resistance = r
		return r, nil
	}

	if len(layer.SubPaths) == 0 {
		return 0, fmt.Errorf("%w: mixed layer without sub-paths", ErrMalformedNetwork)
	}

	fractions := make([]float64, len(layer.SubPaths))
	resistances := make([]float64, len(layer.SubPaths))
	for j := range layer.SubPaths {
		p := &layer.SubPaths[j]
		// Sub-paths span the full depth of their parent layer
		r, err := LayerResistance(models.Material{
			Key:          p.Material,
			Conductivity: p.Conductivity,
			Resistance:   p.FixedResistance,
		}, layer.ThicknessM)
		if err != nil {
			return 0, err
		}
		p.Resistance = r
		fractions[j] = p.Fraction
		resistances[j] = r
	}

	r, err := Parallel(fractions, resistances)
	if err != nil {
		return 0, err
	}
	layer.Resistance = r
	return r, nil
}

func contributions(params *models.WallParameters, layerResistances []float64, total float64) []models.LayerContribution {
	out := make([]models.LayerContribution, 0, len(layerResistances)+2)
	add := func(label string, r float64) {
		out = append(out, models.LayerContribution{Label: label, Resistance: r, Share: r / total})
	}

	add(OutsideSurfaceLabel, params.Surface.Outside)
	for i, layer := range params.Layers {
		add(layer.Label(), layerResistances[i])
	}
	add(InsideSurfaceLabel, params.Surface.Inside)
	return out
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
