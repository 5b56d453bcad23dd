package models

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterial_Validate(t *testing.T) {
	k := 0.04
	r := 0.18
	zero := 0.0
	inf := math.Inf(1)

	tests := []struct {
		name     string
		material Material
		wantErr  bool
	}{
		{name: "conductivity only", material: Material{Key: "mineral_wool", Conductivity: &k}},
		{name: "resistance only", material: Material{Key: "air_gap", Resistance: &r}},
		{name: "both defined", material: Material{Key: "odd", Conductivity: &k, Resistance: &r}, wantErr: true},
		{name: "neither defined", material: Material{Key: "empty"}, wantErr: true},
		{name: "zero conductivity", material: Material{Key: "z", Conductivity: &zero}, wantErr: true},
		{name: "infinite resistance", material: Material{Key: "i", Resistance: &inf}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.material.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var unknown *UnknownMaterialError
			require.ErrorAs(t, err, &unknown)
			assert.Equal(t, tt.material.Key, unknown.Key)
		})
	}
}

func TestParseQuestionKind(t *testing.T) {
	tests := []struct {
		in      string
		want    QuestionKind
		wantErr bool
	}{
		{in: "heat_loss", want: KindHeatLoss},
		{in: "Thermal-Bridging", want: KindThermalBridging},
		{in: " thermal_bridging ", want: KindThermalBridging},
		{in: "psychrometry", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuestionKind(tt.in)
			if tt.wantErr {
				assert.True(t, IsCallerError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Metal Frame", DisplayName("metal_frame"))
	assert.Equal(t, "Brick", DisplayName("brick"))
	assert.Equal(t, "Osb", DisplayName("osb"))
	assert.Equal(t, "Éco Laine", DisplayName("éco_laine"))
	assert.True(t, utf8.ValidString(DisplayName("éco_laine")))
}

func TestResolvedLayer_Helpers(t *testing.T) {
	layer := ResolvedLayer{
		Kind:     LayerMixed,
		Material: "timber_stud",
		SubPaths: []SubPath{
			{Role: RoleStructural, Material: "timber_stud", Fraction: 0.12},
			{Role: RoleInsulation, Material: "mineral_wool", Fraction: 0.66},
			{Role: RoleAdditionalInsulation, Material: "pir_board", Fraction: 0.22},
		},
	}

	assert.Equal(t, 0.12, layer.StructuralFraction())
	assert.InDelta(t, 1.0, layer.FractionSum(), 1e-12)
	assert.Equal(t, "Timber Stud & Mineral Wool & Pir Board", layer.Label())

	simple := ResolvedLayer{Kind: LayerSimple, Material: "gypsum_board"}
	assert.Equal(t, 0.0, simple.StructuralFraction())
	assert.Equal(t, "Gypsum Board", simple.Label())
}

func TestThermalSolution_SignedHeatFlow(t *testing.T) {
	loss := ThermalSolution{HeatLoss: 57.14, Direction: HeatFlowLoss}
	gain := ThermalSolution{HeatLoss: 12.5, Direction: HeatFlowGain}

	assert.Equal(t, 57.14, loss.SignedHeatFlow())
	assert.Equal(t, -12.5, gain.SignedHeatFlow())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "layer count", err: &InvalidLayerCountError{Requested: 7, Allowed: []int{3, 4, 5}}, want: ErrorKindInput},
		{name: "material", err: &UnknownMaterialError{Key: "unobtainium"}, want: ErrorKindInput},
		{name: "configuration", err: &ConfigurationError{Source: "heat_loss", Message: "bad"}, want: ErrorKindConfiguration},
		{name: "resistance", err: &InvalidResistanceError{Material: "x", Resistance: -1}, want: ErrorKindComputation},
		{name: "division", err: &DivisionError{Quantity: "U-value"}, want: ErrorKindComputation},
		{name: "wrapped", err: fmt.Errorf("sampling: %w", &InvalidLayerCountError{Requested: 2}), want: ErrorKindInput},
		{name: "foreign", err: errors.New("boom"), want: ErrorKindComputation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	err := &InvalidLayerCountError{Requested: 6, Allowed: []int{3, 4, 5}}
	assert.Equal(t, "invalid layer count 6, expected one of 3, 4, 5", err.Error())
	assert.False(t, err.IsTransient())

	cfgErr := &ConfigurationError{Source: "thermal_bridging", Message: "load failed", Err: errors.New("missing file")}
	assert.Equal(t, "catalog thermal_bridging: load failed: missing file", cfgErr.Error())
	assert.EqualError(t, errors.Unwrap(cfgErr), "missing file")
}
