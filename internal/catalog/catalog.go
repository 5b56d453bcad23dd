// Package catalog holds the immutable reference data every question is drawn
// from: materials with their conductivity or tabulated resistance, standard
// thicknesses, surface film resistances, and wall construction templates per
// layer count.
//
// Catalogs are built once, eagerly validated, and never mutated afterwards, so
// a *Catalog can be shared by any number of concurrent readers.
package catalog

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"heatloss-engine/internal/models"
)

// Default structural percentage range for a mixed layer that omits one
var defaultPercentageRange = [2]float64{5, 15}

var supportedLayerCounts = []int{3, 4, 5}

// SupportedLayerCounts returns the layer counts a question can be generated for
func SupportedLayerCounts() []int {
	out := make([]int, len(supportedLayerCounts))
	copy(out, supportedLayerCounts)
	return out
}

// IsSupportedLayerCount reports whether n is one of SupportedLayerCounts
func IsSupportedLayerCount(n int) bool {
	for _, c := range supportedLayerCounts {
		if c == n {
			return true
		}
	}
	return false
}

var validate = validator.New()

// Catalog is the validated, strongly-typed form of Tables
type Catalog struct {
	kind        models.QuestionKind
	materials   map[string]models.Material
	thicknesses map[string][]float64
	templates   map[int][]models.ConstructionTemplate
	surface     models.SurfaceResistances
}

// Build validates tables and converts them into a Catalog. Every problem is
// collected into a Report, returned wrapped in a *models.ConfigurationError.
func Build(kind models.QuestionKind, tables *Tables) (*Catalog, error) {
	if tables == nil {
		return nil, &models.ConfigurationError{Source: string(kind), Message: "no tables supplied"}
	}

	report := NewReport()
	c := &Catalog{
		kind:        kind,
		materials:   make(map[string]models.Material),
		thicknesses: make(map[string][]float64),
		templates:   make(map[int][]models.ConstructionTemplate),
	}

	c.buildProperties(tables.Properties, report)
	c.buildThicknesses(tables.Thicknesses, report)
	c.buildTemplates(tables.Constructions, report)

	if !report.Valid {
		return nil, &models.ConfigurationError{
			Source:  string(kind),
			Message: report.Summary(),
			Err:     report,
		}
	}

	return c, nil
}

func (c *Catalog) buildProperties(props PropertyTable, report *Report) {
	if err := validate.Struct(props); err != nil {
		report.Add(PropertiesFile, "%v", err)
	}
	if props.Surface != nil {
		c.surface = models.SurfaceResistances{Inside: props.Surface.Inside, Outside: props.Surface.Outside}
	}

	keys := make(map[string]struct{}, len(props.K)+len(props.R))
	for k := range props.K {
		keys[k] = struct{}{}
	}
	for k := range props.R {
		keys[k] = struct{}{}
	}

	for key := range keys {
		m := models.Material{Key: key}
		if k, ok := props.K[key]; ok {
			k := k
			m.Conductivity = &k
		}
		if r, ok := props.R[key]; ok {
			r := r
			m.Resistance = &r
		}
		if err := m.Validate(); err != nil {
			report.Add(PropertiesFile+"/"+key, "%v", err)
			continue
		}
		c.materials[key] = m
	}
}

func (c *Catalog) buildThicknesses(table ThicknessTable, report *Report) {
	if err := validate.Struct(table); err != nil {
		report.Add(ThicknessesFile, "%v", err)
	}
	for key, values := range table.Thicknesses {
		if len(values) == 0 {
			report.Add(ThicknessesFile+"/"+key, "no standard thicknesses listed")
			continue
		}
		for _, v := range values {
			if !(v > 0) {
				report.Add(ThicknessesFile+"/"+key, "thickness %v mm must be positive", v)
			}
		}
		c.thicknesses[key] = append([]float64(nil), values...)
	}
}

func (c *Catalog) buildTemplates(table ConstructionTable, report *Report) {
	if err := validate.Struct(table); err != nil {
		report.Add(ConstructionsFile, "%v", err)
	}

	for count, rows := range table.Constructions {
		if !IsSupportedLayerCount(count) {
			report.Add(fmt.Sprintf("%s/%d", ConstructionsFile, count), "layer count %d is not supported", count)
			continue
		}
		for i, row := range rows {
			p := fmt.Sprintf("%s/%d/%d", ConstructionsFile, count, i)
			if tmpl, ok := c.buildTemplate(count, row, p, report); ok {
				c.templates[count] = append(c.templates[count], tmpl)
			}
		}
	}

	for _, count := range supportedLayerCounts {
		if len(c.templates[count]) == 0 {
			report.Add(fmt.Sprintf("%s/%d", ConstructionsFile, count), "no construction registered for %d layers", count)
		}
	}
}

func (c *Catalog) buildTemplate(count int, row ConstructionRow, p string, report *Report) (models.ConstructionTemplate, bool) {
	tmpl := models.ConstructionTemplate{Name: row.Name, LayerCount: count}
	ok := true

	if err := validate.Struct(row); err != nil {
		report.Add(p, "%v", err)
		return tmpl, false
	}
	if len(row.Layers) != count {
		report.Add(p, "%q has %d layers but is registered under %d", row.Name, len(row.Layers), count)
		ok = false
	}

	for j, layer := range row.Layers {
		lp := fmt.Sprintf("%s/layers/%d", p, j)
		spec, specOK := c.buildLayerSpec(layer, lp, report)
		if !specOK {
			ok = false
			continue
		}
		for _, key := range spec.Materials() {
			if !c.checkReference(key, lp, report) {
				ok = false
			}
		}
		tmpl.Layers = append(tmpl.Layers, spec)
	}

	if c.kind == models.KindHeatLoss && tmpl.HasMixedLayers() {
		report.Add(p, "%q contains a mixed layer, not allowed in a %s catalog", row.Name, c.kind)
		ok = false
	}

	return tmpl, ok
}

func (c *Catalog) buildLayerSpec(row LayerRow, p string, report *Report) (models.LayerSpec, bool) {
	if row.Structural == "" {
		return models.SimpleLayerSpec{Material: row.Material}, true
	}

	spec := models.MixedLayerSpec{
		Structural:      row.Structural,
		Insulation:      row.Insulation,
		PercentageRange: defaultPercentageRange,
	}
	if len(row.PercentageRange) == 2 {
		spec.PercentageRange = [2]float64{row.PercentageRange[0], row.PercentageRange[1]}
	}
	if !validRange(spec.PercentageRange, 100) {
		report.Add(p, "percentage_range %v must satisfy 0 <= min <= max < 100", spec.PercentageRange)
		return nil, false
	}

	if row.Additional != nil {
		share := [2]float64{row.Additional.ShareRange[0], row.Additional.ShareRange[1]}
		if !validRange(share, 100) {
			report.Add(p, "additional_insulation share_range %v must satisfy 0 <= min <= max < 100", share)
			return nil, false
		}
		spec.Additional = &models.AdditionalInsulationSpec{Material: row.Additional.Material, ShareRange: share}
	}

	return spec, true
}

// validRange keeps the structural path below 100% so insulation always has area
func validRange(r [2]float64, limit float64) bool {
	return r[0] >= 0 && r[0] <= r[1] && r[1] < limit
}

func (c *Catalog) checkReference(key, p string, report *Report) bool {
	ok := true
	if _, found := c.materials[key]; !found {
		report.Add(p, "material %q is missing from the property table", key)
		ok = false
	}
	if _, found := c.thicknesses[key]; !found {
		report.Add(p, "material %q is missing from the thickness table", key)
		ok = false
	}
	return ok
}

// Kind returns the question kind the catalog serves
func (c *Catalog) Kind() models.QuestionKind {
	return c.kind
}

// Lookup returns the material for key
func (c *Catalog) Lookup(key string) (models.Material, error) {
	m, ok := c.materials[key]
	if !ok {
		return models.Material{}, &models.UnknownMaterialError{Key: key, Reason: "not in the conductivity/resistance table"}
	}
	return m, nil
}

// Thicknesses returns a copy of the standard thicknesses of key, in millimetres
func (c *Catalog) Thicknesses(key string) ([]float64, error) {
	values, ok := c.thicknesses[key]
	if !ok {
		return nil, &models.UnknownMaterialError{Key: key, Reason: "no standard thicknesses"}
	}
	return append([]float64(nil), values...), nil
}

// Templates returns the constructions registered for numLayers
func (c *Catalog) Templates(numLayers int) ([]models.ConstructionTemplate, error) {
	if !IsSupportedLayerCount(numLayers) {
		return nil, &models.InvalidLayerCountError{Requested: numLayers, Allowed: SupportedLayerCounts()}
	}
	templates := c.templates[numLayers]
	return append([]models.ConstructionTemplate(nil), templates...), nil
}

// Surface returns the film resistances added in series with every wall
func (c *Catalog) Surface() models.SurfaceResistances {
	return c.surface
}

// Materials returns the sorted material keys
func (c *Catalog) Materials() []string {
	keys := make([]string, 0, len(c.materials))
	for k := range c.materials {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TemplateNames returns the construction names per layer count
func (c *Catalog) TemplateNames() map[int][]string {
	out := make(map[int][]string, len(c.templates))
	for count, templates := range c.templates {
		for _, t := range templates {
			out[count] = append(out[count], t.Name)
		}
	}
	return out
}

// LayerCounts returns the sorted layer counts that have at least one template
func (c *Catalog) LayerCounts() []int {
	counts := make([]int, 0, len(c.templates))
	for count, templates := range c.templates {
		if len(templates) > 0 {
			counts = append(counts, count)
		}
	}
	sort.Ints(counts)
	return counts
}
