package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"

	"gopkg.in/yaml.v3"

	"heatloss-engine/internal/models"
)

// File names of the three logical tables inside a catalog directory
const (
	ConstructionsFile = "constructions.yaml"
	ThicknessesFile   = "thicknesses.yaml"
	PropertiesFile    = "properties.yaml"
)

//go:embed data/*/*.yaml
var embedded embed.FS

// Tables is the loose, serialized form of a catalog: exactly what the YAML
// files or the database rows say, before any integrity checking.
type Tables struct {
	Constructions ConstructionTable `yaml:"constructions"`
	Thicknesses   ThicknessTable    `yaml:"thicknesses"`
	Properties    PropertyTable     `yaml:"properties"`
}

// ConstructionTable maps a layer count to the wall build-ups available for it
type ConstructionTable struct {
	Constructions map[int][]ConstructionRow `yaml:"constructions" validate:"required"`
}

// ConstructionRow is one named wall build-up
type ConstructionRow struct {
	Name   string     `yaml:"name" validate:"required"`
	Layers []LayerRow `yaml:"layers" validate:"required,min=1,dive"`
}

// LayerRow is either a simple layer (Material) or a mixed layer (Structural + Insulation)
type LayerRow struct {
	Material        string         `yaml:"material,omitempty" validate:"required_without=Structural,excluded_with=Structural"`
	Structural      string         `yaml:"structural,omitempty"`
	Insulation      string         `yaml:"insulation,omitempty" validate:"required_with=Structural"`
	PercentageRange []float64      `yaml:"percentage_range,omitempty" validate:"omitempty,len=2,dive,gte=0,lte=100"`
	Additional      *AdditionalRow `yaml:"additional_insulation,omitempty"`
}

// AdditionalRow describes the optional third path of a mixed layer
type AdditionalRow struct {
	Material   string    `yaml:"material" validate:"required"`
	ShareRange []float64 `yaml:"share_range" validate:"required,len=2,dive,gte=0,lte=100"`
}

// ThicknessTable lists the standard thicknesses (mm) of each material
type ThicknessTable struct {
	Thicknesses map[string][]float64 `yaml:"thicknesses" validate:"required"`
}

// PropertyTable holds conductivities, tabulated resistances and surface films
type PropertyTable struct {
	Surface *SurfaceRow        `yaml:"surface" validate:"required"`
	K       map[string]float64 `yaml:"k_values"`
	R       map[string]float64 `yaml:"r_values"`
}

// SurfaceRow holds the inside (Rsi) and outside (Rso) film resistances
type SurfaceRow struct {
	Inside  float64 `yaml:"inside" validate:"gte=0"`
	Outside float64 `yaml:"outside" validate:"gte=0"`
}

// ReadTables decodes the three table files from fsys. dir is relative to fsys.
func ReadTables(fsys fs.FS, dir string) (*Tables, error) {
	var tables Tables

	if err := decodeFile(fsys, path.Join(dir, ConstructionsFile), &tables.Constructions); err != nil {
		return nil, err
	}
	if err := decodeFile(fsys, path.Join(dir, ThicknessesFile), &tables.Thicknesses); err != nil {
		return nil, err
	}
	if err := decodeFile(fsys, path.Join(dir, PropertiesFile), &tables.Properties); err != nil {
		return nil, err
	}

	return &tables, nil
}

func decodeFile(fsys fs.FS, name string, dest any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

// LoadFS reads and builds the catalog for kind from the kind's subdirectory of fsys
func LoadFS(fsys fs.FS, kind models.QuestionKind) (*Catalog, error) {
	tables, err := ReadTables(fsys, string(kind))
	if err != nil {
		return nil, &models.ConfigurationError{Source: string(kind), Message: "cannot read tables", Err: err}
	}
	return Build(kind, tables)
}

// LoadDir reads a catalog from <dir>/<kind>/{constructions,thicknesses,properties}.yaml
func LoadDir(dir string, kind models.QuestionKind) (*Catalog, error) {
	return LoadFS(os.DirFS(dir), kind)
}

// LoadEmbedded builds the default catalog shipped with the binary
func LoadEmbedded(kind models.QuestionKind) (*Catalog, error) {
	return LoadFS(embeddedFS(), kind)
}

// EmbeddedTables returns the raw default tables, used when seeding a database
func EmbeddedTables(kind models.QuestionKind) (*Tables, error) {
	return ReadTables(embeddedFS(), string(kind))
}

func embeddedFS() fs.FS {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		// fs.Sub only fails on an invalid path literal
		panic(err)
	}
	return sub
}
