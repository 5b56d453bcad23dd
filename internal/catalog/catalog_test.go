package catalog

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatloss-engine/internal/models"
)

// validTables returns a minimal consistent thermal bridging table set
func validTables() *Tables {
	simple := func(key string) LayerRow { return LayerRow{Material: key} }
	mixed := LayerRow{Structural: "timber_stud", Insulation: "mineral_wool", PercentageRange: []float64{10, 15}}

	return &Tables{
		Constructions: ConstructionTable{Constructions: map[int][]ConstructionRow{
			3: {{Name: "three", Layers: []LayerRow{simple("osb"), mixed, simple("gypsum_board")}}},
			4: {{Name: "four", Layers: []LayerRow{simple("osb"), simple("air_cavity"), mixed, simple("gypsum_board")}}},
			5: {{Name: "five", Layers: []LayerRow{simple("osb"), simple("air_cavity"), mixed, simple("osb"), simple("gypsum_board")}}},
		}},
		Thicknesses: ThicknessTable{Thicknesses: map[string][]float64{
			"osb":          {9, 11},
			"gypsum_board": {12.5},
			"air_cavity":   {50},
			"timber_stud":  {89, 140},
			"mineral_wool": {89, 140},
		}},
		Properties: PropertyTable{
			Surface: &SurfaceRow{Inside: 0.13, Outside: 0.04},
			K: map[string]float64{
				"osb":          0.13,
				"gypsum_board": 0.21,
				"timber_stud":  0.13,
				"mineral_wool": 0.035,
			},
			R: map[string]float64{"air_cavity": 0.18},
		},
	}
}

func TestLoadEmbedded(t *testing.T) {
	for _, kind := range models.AllKinds() {
		t.Run(string(kind), func(t *testing.T) {
			c, err := LoadEmbedded(kind)
			require.NoError(t, err)
			assert.Equal(t, kind, c.Kind())

			for _, n := range SupportedLayerCounts() {
				templates, err := c.Templates(n)
				require.NoError(t, err)
				assert.NotEmpty(t, templates, "no templates for %d layers", n)
				for _, tmpl := range templates {
					assert.Len(t, tmpl.Layers, n, "template %q", tmpl.Name)
				}
			}

			surface := c.Surface()
			assert.Equal(t, 0.13, surface.Inside)
			assert.Equal(t, 0.04, surface.Outside)
		})
	}
}

func TestLoadEmbedded_HeatLossHasNoMixedLayers(t *testing.T) {
	c, err := LoadEmbedded(models.KindHeatLoss)
	require.NoError(t, err)

	for _, n := range SupportedLayerCounts() {
		templates, err := c.Templates(n)
		require.NoError(t, err)
		for _, tmpl := range templates {
			assert.False(t, tmpl.HasMixedLayers(), tmpl.Name)
		}
	}
}

func TestLoadEmbedded_ThermalBridgingHasAdditionalInsulation(t *testing.T) {
	c, err := LoadEmbedded(models.KindThermalBridging)
	require.NoError(t, err)

	templates, err := c.Templates(4)
	require.NoError(t, err)

	found := false
	for _, tmpl := range templates {
		for _, layer := range tmpl.Layers {
			if mixed, ok := layer.(models.MixedLayerSpec); ok && mixed.Additional != nil {
				found = true
				assert.Equal(t, "pir_board", mixed.Additional.Material)
				assert.Equal(t, [2]float64{20, 40}, mixed.Additional.ShareRange)
			}
		}
	}
	assert.True(t, found)
}

func TestCatalog_Lookup(t *testing.T) {
	c, err := Build(models.KindThermalBridging, validTables())
	require.NoError(t, err)

	m, err := c.Lookup("mineral_wool")
	require.NoError(t, err)
	require.NotNil(t, m.Conductivity)
	assert.Equal(t, 0.035, *m.Conductivity)
	assert.False(t, m.IsFixedResistance())

	air, err := c.Lookup("air_cavity")
	require.NoError(t, err)
	assert.True(t, air.IsFixedResistance())

	_, err = c.Lookup("unobtainium")
	var unknown *models.UnknownMaterialError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "unobtainium", unknown.Key)
	assert.True(t, models.IsCallerError(err))
}

func TestCatalog_Templates_InvalidLayerCount(t *testing.T) {
	c, err := Build(models.KindThermalBridging, validTables())
	require.NoError(t, err)

	for _, n := range []int{-1, 0, 1, 2, 6, 10} {
		_, err := c.Templates(n)
		var invalid *models.InvalidLayerCountError
		require.ErrorAs(t, err, &invalid, "n=%d", n)
		assert.Equal(t, n, invalid.Requested)
		assert.Equal(t, []int{3, 4, 5}, invalid.Allowed)
	}
}

func TestCatalog_ThicknessesReturnsCopy(t *testing.T) {
	c, err := Build(models.KindThermalBridging, validTables())
	require.NoError(t, err)

	values, err := c.Thicknesses("osb")
	require.NoError(t, err)
	values[0] = 999

	again, err := c.Thicknesses("osb")
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 11}, again)
}

func TestBuild_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name     string
		kind     models.QuestionKind
		mutate   func(*Tables)
		contains string
	}{
		{
			name: "material missing from thickness table",
			kind: models.KindThermalBridging,
			mutate: func(tb *Tables) {
				delete(tb.Thicknesses.Thicknesses, "gypsum_board")
			},
			contains: `"gypsum_board" is missing from the thickness table`,
		},
		{
			name: "material missing from property table",
			kind: models.KindThermalBridging,
			mutate: func(tb *Tables) {
				delete(tb.Properties.K, "mineral_wool")
			},
			contains: `"mineral_wool" is missing from the property table`,
		},
		{
			name: "both k and R defined",
			kind: models.KindThermalBridging,
			mutate: func(tb *Tables) {
				tb.Properties.R["osb"] = 0.1
			},
			contains: "both conductivity and resistance",
		},
		{
			name: "non-positive conductivity",
			kind: models.KindThermalBridging,
			mutate: func(tb *Tables) {
				tb.Properties.K["osb"] = 0
			},
			contains: "must be a positive finite number",
		},
		{
			name: "layer count missing",
			kind: models.KindThermalBridging,
			mutate: func(tb *Tables) {
				delete(tb.Constructions.Constructions, 5)
			},
			contains: "no construction registered for 5 layers",
		},
		{
			name: "template length disagrees with key",
			kind: models.KindThermalBridging,
			mutate: func(tb *Tables) {
				row := tb.Constructions.Constructions[3][0]
				row.Layers = row.Layers[:2]
				tb.Constructions.Constructions[3] = []ConstructionRow{row}
			},
			contains: "has 2 layers but is registered under 3",
		},
		{
			name: "unsupported layer count",
			kind: models.KindThermalBridging,
			mutate: func(tb *Tables) {
				tb.Constructions.Constructions[6] = tb.Constructions.Constructions[5]
			},
			contains: "layer count 6 is not supported",
		},
		{
			name: "inverted percentage range",
			kind: models.KindThermalBridging,
			mutate: func(tb *Tables) {
				tb.Constructions.Constructions[3][0].Layers[1].PercentageRange = []float64{15, 10}
			},
			contains: "percentage_range",
		},
		{
			name: "mixed layer in heat loss catalog",
			kind: models.KindHeatLoss,
			mutate: func(tb *Tables) {},
			contains: "contains a mixed layer",
		},
		{
			name: "empty thickness list",
			kind: models.KindThermalBridging,
			mutate: func(tb *Tables) {
				tb.Thicknesses.Thicknesses["osb"] = nil
			},
			contains: "no standard thicknesses listed",
		},
		{
			name: "surface films missing",
			kind: models.KindThermalBridging,
			mutate: func(tb *Tables) {
				tb.Properties.Surface = nil
			},
			contains: "Surface",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := validTables()
			tt.mutate(tables)

			c, err := Build(tt.kind, tables)
			assert.Nil(t, c)

			var cfgErr *models.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, models.ErrorKindConfiguration, models.KindOf(err))
			assert.Contains(t, err.Error(), tt.contains)

			var report *Report
			require.ErrorAs(t, err, &report)
			assert.False(t, report.Valid)
			assert.NotEmpty(t, report.Findings)
		})
	}
}

func TestBuild_DefaultPercentageRange(t *testing.T) {
	tables := validTables()
	tables.Constructions.Constructions[3][0].Layers[1].PercentageRange = nil

	c, err := Build(models.KindThermalBridging, tables)
	require.NoError(t, err)

	templates, err := c.Templates(3)
	require.NoError(t, err)
	mixed, ok := templates[0].Layers[1].(models.MixedLayerSpec)
	require.True(t, ok)
	assert.Equal(t, [2]float64{5, 15}, mixed.PercentageRange)
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"heat_loss/constructions.yaml": {Data: []byte(`
constructions:
  3:
    - name: Plain
      layers: [{material: brick}, {material: air_cavity}, {material: gypsum_board}]
  4:
    - name: Plain four
      layers: [{material: brick}, {material: air_cavity}, {material: brick}, {material: gypsum_board}]
  5:
    - name: Plain five
      layers: [{material: brick}, {material: air_cavity}, {material: brick}, {material: air_cavity}, {material: gypsum_board}]
`)},
		"heat_loss/thicknesses.yaml": {Data: []byte(`
thicknesses:
  brick: [102.5, 215]
  air_cavity: [50]
  gypsum_board: [12.5]
`)},
		"heat_loss/properties.yaml": {Data: []byte(`
surface: {inside: 0.13, outside: 0.04}
k_values: {brick: 0.77, gypsum_board: 0.21}
r_values: {air_cavity: 0.18}
`)},
	}

	c, err := LoadFS(fsys, models.KindHeatLoss)
	require.NoError(t, err)
	assert.Equal(t, []string{"air_cavity", "brick", "gypsum_board"}, c.Materials())
	assert.Equal(t, map[int][]string{3: {"Plain"}, 4: {"Plain four"}, 5: {"Plain five"}}, c.TemplateNames())

	_, err = LoadFS(fsys, models.KindThermalBridging)
	var cfgErr *models.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "thermal_bridging", cfgErr.Source)
}

func TestRegistry(t *testing.T) {
	reg, err := EmbeddedRegistry()
	require.NoError(t, err)
	assert.Equal(t, models.AllKinds(), reg.Kinds())

	c, err := reg.Get(models.KindThermalBridging)
	require.NoError(t, err)
	assert.Equal(t, models.KindThermalBridging, c.Kind())

	_, err = reg.Get("psychrometry")
	assert.True(t, models.IsCallerError(err))

	_, err = NewRegistry(c, c)
	var cfgErr *models.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
