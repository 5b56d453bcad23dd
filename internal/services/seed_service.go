package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"heatloss-engine/internal/catalog"
	"heatloss-engine/internal/models"
	"heatloss-engine/internal/repository"
	"heatloss-engine/pkg/logging"
	"heatloss-engine/pkg/metrics"
)

// TableSource reads the raw tables of one question kind
type TableSource func(kind models.QuestionKind) (*catalog.Tables, error)

// EmbeddedTableSource reads the tables compiled into the binary
func EmbeddedTableSource() TableSource {
	return catalog.EmbeddedTables
}

// DirTableSource reads <dir>/<kind>/*.yaml
func DirTableSource(dir string) TableSource {
	return func(kind models.QuestionKind) (*catalog.Tables, error) {
		return catalog.ReadTables(os.DirFS(dir), string(kind))
	}
}

// SeedService copies catalog tables into the database
type SeedService struct {
	repo    repository.CatalogRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// SeedResult contains seeding statistics
type SeedResult struct {
	Kinds     []models.QuestionKind
	Materials int
	Templates int
	Duration  time.Duration
	Errors    []string
}

// NewSeedService creates a new seed service
func NewSeedService(repo repository.CatalogRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SeedService {
	return &SeedService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Seed validates and stores the tables of every question kind. A kind whose
// tables fail validation is skipped and reported; nothing partial is written
// for it.
func (s *SeedService) Seed(ctx context.Context, source TableSource) (*SeedResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[SEED_START] Starting catalog seeding", logging.Fields{
		"kinds": len(models.AllKinds()),
		"stage": "INITIALIZATION",
	})

	result := &SeedResult{Errors: make([]string, 0)}

	for _, kind := range models.AllKinds() {
		materials, templates, err := s.seedKind(ctx, kind, source)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", kind, err))
			s.logger.Error(ctx, "[SEED_KIND_ERROR] Catalog seeding failed", logging.Fields{
				"kind":       kind,
				"error_kind": models.KindOf(err).String(),
				"stage":      "KIND_PROCESSING",
			}, err)
			continue
		}

		result.Kinds = append(result.Kinds, kind)
		result.Materials += materials
		result.Templates += templates

		s.logger.Info(ctx, "[SEED_KIND_SUCCESS] Catalog stored", logging.Fields{
			"kind":      kind,
			"materials": materials,
			"templates": templates,
			"stage":     "KIND_COMPLETE",
		})
	}

	result.Duration = time.Since(startTime)
	s.metrics.CatalogLoadDuration.WithLabelValues("seed").Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[SEED_COMPLETE] Catalog seeding completed", logging.Fields{
		"kinds":            len(result.Kinds),
		"materials":        result.Materials,
		"templates":        result.Templates,
		"duration_seconds": result.Duration.Seconds(),
		"error_count":      len(result.Errors),
		"stage":            "COMPLETE",
	})

	if len(result.Kinds) == 0 {
		return result, fmt.Errorf("no catalog was seeded: %d errors", len(result.Errors))
	}
	return result, nil
}

func (s *SeedService) seedKind(ctx context.Context, kind models.QuestionKind, source TableSource) (int, int, error) {
	tables, err := source(kind)
	if err != nil {
		return 0, 0, &models.ConfigurationError{Source: string(kind), Message: "cannot read tables", Err: err}
	}

	// Only tables that build into a valid catalog reach the database
	cat, err := catalog.Build(kind, tables)
	if err != nil {
		return 0, 0, err
	}

	if err := s.repo.SaveTables(ctx, kind, tables); err != nil {
		return 0, 0, err
	}

	templates := 0
	for _, names := range cat.TemplateNames() {
		templates += len(names)
	}
	return len(cat.Materials()), templates, nil
}
