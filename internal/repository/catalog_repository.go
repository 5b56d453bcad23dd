package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"heatloss-engine/internal/catalog"
	"heatloss-engine/internal/models"
	"heatloss-engine/pkg/database"
	"heatloss-engine/pkg/logging"
	"heatloss-engine/pkg/metrics"
)

// CatalogRepository stores the reference tables a catalog is built from
type CatalogRepository interface {
	// LoadTables reads the raw tables of one question kind
	LoadTables(ctx context.Context, kind models.QuestionKind) (*catalog.Tables, error)
	// SaveTables replaces every table of kind in one transaction
	SaveTables(ctx context.Context, kind models.QuestionKind, tables *catalog.Tables) error

	HealthCheck(ctx context.Context) error
}

type surfaceRecord struct {
	Inside  float64 `db:"inside_resistance"`
	Outside float64 `db:"outside_resistance"`
}

type materialRecord struct {
	Key          string          `db:"material_key"`
	Conductivity sql.NullFloat64 `db:"conductivity"`
	Resistance   sql.NullFloat64 `db:"resistance"`
}

type thicknessRecord struct {
	Key         string  `db:"material_key"`
	ThicknessMM float64 `db:"thickness_mm"`
}

type layerRecord struct {
	LayerCount           int             `db:"layer_count"`
	ConstructionPosition int             `db:"construction_position"`
	Name                 string          `db:"name"`
	LayerPosition        int             `db:"layer_position"`
	Material             sql.NullString  `db:"material"`
	Structural           sql.NullString  `db:"structural"`
	Insulation           sql.NullString  `db:"insulation"`
	PercentageMin        sql.NullFloat64 `db:"percentage_min"`
	PercentageMax        sql.NullFloat64 `db:"percentage_max"`
	AdditionalMaterial   sql.NullString  `db:"additional_material"`
	ShareMin             sql.NullFloat64 `db:"share_min"`
	ShareMax             sql.NullFloat64 `db:"share_max"`
}

// catalogRepository implements CatalogRepository on PostgreSQL
type catalogRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) CatalogRepository {
	return &catalogRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// LoadTables reads the surface films, materials, thicknesses and constructions of kind
func (r *catalogRepository) LoadTables(ctx context.Context, kind models.QuestionKind) (*catalog.Tables, error) {
	timer := time.Now()

	var surface surfaceRecord
	err := r.db.GetContext(ctx, "get_catalog_surface", &surface, `
		SELECT inside_resistance, outside_resistance
		FROM catalog_surfaces
		WHERE kind = $1
	`, string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "catalog", ID: string(kind)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get surface resistances: %w", err)
	}

	var materials []materialRecord
	if err := r.db.SelectContext(ctx, "select_catalog_materials", &materials, `
		SELECT material_key, conductivity, resistance
		FROM catalog_materials
		WHERE kind = $1
		ORDER BY material_key
	`, string(kind)); err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}

	var thicknesses []thicknessRecord
	if err := r.db.SelectContext(ctx, "select_catalog_thicknesses", &thicknesses, `
		SELECT material_key, thickness_mm
		FROM catalog_thicknesses
		WHERE kind = $1
		ORDER BY material_key, position
	`, string(kind)); err != nil {
		return nil, fmt.Errorf("failed to list thicknesses: %w", err)
	}

	var layers []layerRecord
	if err := r.db.SelectContext(ctx, "select_catalog_layers", &layers, `
		SELECT c.layer_count, c.position AS construction_position, c.name,
		       l.layer_position, l.material, l.structural, l.insulation,
		       l.percentage_min, l.percentage_max,
		       l.additional_material, l.share_min, l.share_max
		FROM catalog_constructions c
		JOIN catalog_construction_layers l
		  ON l.kind = c.kind
		 AND l.layer_count = c.layer_count
		 AND l.construction_position = c.position
		WHERE c.kind = $1
		ORDER BY c.layer_count, c.position, l.layer_position
	`, string(kind)); err != nil {
		return nil, fmt.Errorf("failed to list constructions: %w", err)
	}

	tables := assembleTables(surface, materials, thicknesses, layers)

	r.logger.Debug(ctx, "[REPO_LOAD_CATALOG] Catalog tables loaded", logging.Fields{
		"kind":        kind,
		"materials":   len(materials),
		"thicknesses": len(thicknesses),
		"layers":      len(layers),
		"duration_ms": time.Since(timer).Milliseconds(),
	})

	return tables, nil
}

func assembleTables(surface surfaceRecord, materials []materialRecord, thicknesses []thicknessRecord, layers []layerRecord) *catalog.Tables {
	tables := &catalog.Tables{
		Constructions: catalog.ConstructionTable{Constructions: make(map[int][]catalog.ConstructionRow)},
		Thicknesses:   catalog.ThicknessTable{Thicknesses: make(map[string][]float64)},
		Properties: catalog.PropertyTable{
			Surface: &catalog.SurfaceRow{Inside: surface.Inside, Outside: surface.Outside},
			K:       make(map[string]float64),
			R:       make(map[string]float64),
		},
	}

	for _, m := range materials {
		if m.Conductivity.Valid {
			tables.Properties.K[m.Key] = m.Conductivity.Float64
		}
		if m.Resistance.Valid {
			tables.Properties.R[m.Key] = m.Resistance.Float64
		}
	}

	for _, t := range thicknesses {
		tables.Thicknesses.Thicknesses[t.Key] = append(tables.Thicknesses.Thicknesses[t.Key], t.ThicknessMM)
	}

	// Rows arrive ordered by count, construction, layer
	lastCount, lastPosition := -1, -1
	for _, l := range layers {
		rows := tables.Constructions.Constructions[l.LayerCount]
		if l.LayerCount != lastCount || l.ConstructionPosition != lastPosition {
			rows = append(rows, catalog.ConstructionRow{Name: l.Name})
			lastCount, lastPosition = l.LayerCount, l.ConstructionPosition
		}
		row := &rows[len(rows)-1]
		row.Layers = append(row.Layers, l.toLayerRow())
		tables.Constructions.Constructions[l.LayerCount] = rows
	}

	return tables
}

func (l layerRecord) toLayerRow() catalog.LayerRow {
	row := catalog.LayerRow{
		Material:   l.Material.String,
		Structural: l.Structural.String,
		Insulation: l.Insulation.String,
	}
	if l.PercentageMin.Valid && l.PercentageMax.Valid {
		row.PercentageRange = []float64{l.PercentageMin.Float64, l.PercentageMax.Float64}
	}
	if l.AdditionalMaterial.Valid {
		row.Additional = &catalog.AdditionalRow{Material: l.AdditionalMaterial.String}
		if l.ShareMin.Valid && l.ShareMax.Valid {
			row.Additional.ShareRange = []float64{l.ShareMin.Float64, l.ShareMax.Float64}
		}
	}
	return row
}

// SaveTables replaces the stored catalog of kind. Deleting the surface row
// cascades to every other table.
func (r *catalogRepository) SaveTables(ctx context.Context, kind models.QuestionKind, tables *catalog.Tables) error {
	if tables == nil || tables.Properties.Surface == nil {
		return fmt.Errorf("catalog %s: surface resistances are required", kind)
	}

	k := string(kind)
	err := r.db.InTx(ctx, "save_catalog", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_surfaces WHERE kind = $1`, k); err != nil {
			return fmt.Errorf("failed to clear catalog: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_surfaces (kind, inside_resistance, outside_resistance, updated_at)
			VALUES ($1, $2, $3, NOW())
		`, k, tables.Properties.Surface.Inside, tables.Properties.Surface.Outside); err != nil {
			return fmt.Errorf("failed to insert surface resistances: %w", err)
		}

		for _, key := range materialKeys(tables.Properties) {
			var conductivity, resistance sql.NullFloat64
			if v, ok := tables.Properties.K[key]; ok {
				conductivity = sql.NullFloat64{Float64: v, Valid: true}
			}
			if v, ok := tables.Properties.R[key]; ok {
				resistance = sql.NullFloat64{Float64: v, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO catalog_materials (kind, material_key, conductivity, resistance)
				VALUES ($1, $2, $3, $4)
			`, k, key, conductivity, resistance); err != nil {
				return fmt.Errorf("failed to insert material %q: %w", key, err)
			}
		}

		for _, key := range sortedKeys(tables.Thicknesses.Thicknesses) {
			for pos, mm := range tables.Thicknesses.Thicknesses[key] {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO catalog_thicknesses (kind, material_key, position, thickness_mm)
					VALUES ($1, $2, $3, $4)
				`, k, key, pos, mm); err != nil {
					return fmt.Errorf("failed to insert thickness of %q: %w", key, err)
				}
			}
		}

		for _, count := range sortedCounts(tables.Constructions.Constructions) {
			for pos, row := range tables.Constructions.Constructions[count] {
				if err := insertConstruction(ctx, tx, k, count, pos, row); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save %s catalog: %w", kind, err)
	}

	r.logger.Info(ctx, "[REPO_SAVE_CATALOG] Catalog tables saved", logging.Fields{
		"kind":      kind,
		"materials": len(materialKeys(tables.Properties)),
	})
	return nil
}

func insertConstruction(ctx context.Context, tx *sqlx.Tx, kind string, count, pos int, row catalog.ConstructionRow) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO catalog_constructions (kind, layer_count, position, name)
		VALUES ($1, $2, $3, $4)
	`, kind, count, pos, row.Name); err != nil {
		return fmt.Errorf("failed to insert construction %q: %w", row.Name, err)
	}

	for i, layer := range row.Layers {
		var pctMin, pctMax, shareMin, shareMax sql.NullFloat64
		if len(layer.PercentageRange) == 2 {
			pctMin = sql.NullFloat64{Float64: layer.PercentageRange[0], Valid: true}
			pctMax = sql.NullFloat64{Float64: layer.PercentageRange[1], Valid: true}
		}
		var additional sql.NullString
		if layer.Additional != nil {
			additional = sql.NullString{String: layer.Additional.Material, Valid: true}
			if len(layer.Additional.ShareRange) == 2 {
				shareMin = sql.NullFloat64{Float64: layer.Additional.ShareRange[0], Valid: true}
				shareMax = sql.NullFloat64{Float64: layer.Additional.ShareRange[1], Valid: true}
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_construction_layers (
				kind, layer_count, construction_position, layer_position,
				material, structural, insulation,
				percentage_min, percentage_max,
				additional_material, share_min, share_max
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, kind, count, pos, i,
			nullString(layer.Material), nullString(layer.Structural), nullString(layer.Insulation),
			pctMin, pctMax, additional, shareMin, shareMax,
		); err != nil {
			return fmt.Errorf("failed to insert layer %d of %q: %w", i, row.Name, err)
		}
	}
	return nil
}

// HealthCheck checks database connectivity
func (r *catalogRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func materialKeys(props catalog.PropertyTable) []string {
	seen := make(map[string]struct{}, len(props.K)+len(props.R))
	for k := range props.K {
		seen[k] = struct{}{}
	}
	for k := range props.R {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCounts(m map[int][]catalog.ConstructionRow) []int {
	counts := make([]int, 0, len(m))
	for c := range m {
		counts = append(counts, c)
	}
	sort.Ints(counts)
	return counts
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Kind classifies a missing catalog as a configuration problem
func (e *NotFoundError) Kind() models.ErrorKind {
	return models.ErrorKindConfiguration
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

// Loader adapts the repository to catalog.LoadRegistry
func Loader(ctx context.Context, repo CatalogRepository) catalog.Loader {
	return func(kind models.QuestionKind) (*catalog.Catalog, error) {
		tables, err := repo.LoadTables(ctx, kind)
		if err != nil {
			return nil, err
		}
		return catalog.Build(kind, tables)
	}
}
