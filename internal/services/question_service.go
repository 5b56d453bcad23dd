package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"heatloss-engine/internal/catalog"
	"heatloss-engine/internal/models"
	"heatloss-engine/internal/render"
	"heatloss-engine/internal/sampler"
	"heatloss-engine/internal/thermal"
	"heatloss-engine/pkg/logging"
	"heatloss-engine/pkg/metrics"
)

// MaxBatchSize caps the number of questions produced by one GenerateBatch call
const MaxBatchSize = 50

// GenerateRequest describes one question to generate
type GenerateRequest struct {
	Kind      models.QuestionKind
	NumLayers int
	// Palette is the chart color scheme name, empty for the renderer default
	Palette string
	// Seed makes generation reproducible; nil draws a fresh seed
	Seed *int64
}

// InvalidBatchSizeError is returned for a batch size outside 1..MaxBatchSize
type InvalidBatchSizeError struct {
	Requested int
}

func (e *InvalidBatchSizeError) Error() string {
	return fmt.Sprintf("invalid batch size %d, expected 1 to %d", e.Requested, MaxBatchSize)
}

func (e *InvalidBatchSizeError) Kind() models.ErrorKind { return models.ErrorKindInput }
func (e *InvalidBatchSizeError) IsTransient() bool      { return false }

// CatalogSummary describes what one catalog can generate
type CatalogSummary struct {
	Kind        models.QuestionKind `json:"kind"`
	LayerCounts []int               `json:"layer_counts"`
	Templates   map[int][]string    `json:"templates"`
	Materials   []string            `json:"materials"`
}

// QuestionService assembles practice questions: sample a wall, resolve its
// resistance network, render the solution chart and write the prompt
type QuestionService struct {
	registry *catalog.Registry
	renderer *render.Renderer
	ranges   sampler.Ranges
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
	seeds    func() int64
}

// NewQuestionService creates a new question service
func NewQuestionService(registry *catalog.Registry, renderer *render.Renderer, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *QuestionService {
	return &QuestionService{
		registry: registry,
		renderer: renderer,
		ranges:   sampler.DefaultRanges(),
		logger:   logger,
		metrics:  metricsCollector,
		seeds:    rand.Int63,
	}
}

// SetRanges replaces the wall dimension and temperature ranges. It must be
// called before the service handles requests.
func (s *QuestionService) SetRanges(r sampler.Ranges) {
	s.ranges = r
}

// Generate builds one question. The first failing stage aborts generation;
// no partial payload is ever returned.
func (s *QuestionService) Generate(ctx context.Context, req GenerateRequest) (*models.QuestionPayload, error) {
	payload, err := s.generate(ctx, req)
	if err != nil {
		s.metrics.RecordQuestionError(string(req.Kind), models.KindOf(err).String())
		s.logger.Error(ctx, "[QUESTION_ERROR] Question generation failed", logging.Fields{
			"kind":       req.Kind,
			"num_layers": req.NumLayers,
			"error_kind": models.KindOf(err).String(),
		}, err)
		return nil, err
	}
	return payload, nil
}

func (s *QuestionService) generate(ctx context.Context, req GenerateRequest) (*models.QuestionPayload, error) {
	startTime := time.Now()

	cat, err := s.registry.Get(req.Kind)
	if err != nil {
		return nil, err
	}

	renderer := s.renderer
	if req.Palette != "" {
		palette, err := render.ParsePalette(req.Palette)
		if err != nil {
			return nil, err
		}
		renderer = renderer.WithPalette(palette)
	}

	seed := s.seeds()
	if req.Seed != nil {
		seed = *req.Seed
	}

	id := uuid.New().String()
	ctx = logging.WithQuestionID(ctx, id)

	timer := s.metrics.StageTimer("sample")
	params, err := sampler.New(cat, sampler.NewSource(seed), sampler.WithRanges(s.ranges)).Sample(req.NumLayers)
	timer.ObserveDuration()
	if err != nil {
		return nil, fmt.Errorf("sampling wall: %w", err)
	}

	s.logger.Debug(ctx, "[QUESTION_SAMPLE] Wall sampled", logging.Fields{
		"construction": params.Construction,
		"layers":       len(params.Layers),
		"seed":         seed,
	})

	timer = s.metrics.StageTimer("resolve")
	solution, err := thermal.Resolve(params)
	timer.ObserveDuration()
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", params.Construction, err)
	}

	timer = s.metrics.StageTimer("render")
	chart, err := renderer.Render(params, solution)
	timer.ObserveDuration()
	if err != nil {
		return nil, fmt.Errorf("rendering %q: %w", params.Construction, err)
	}

	s.metrics.RecordQuestion(string(req.Kind), req.NumLayers, len(chart.PNG))

	s.logger.Info(ctx, "[QUESTION_GENERATED] Question generated", logging.Fields{
		"kind":         req.Kind,
		"construction": params.Construction,
		"r_total":      solution.TotalResistance,
		"u_value":      solution.UValue,
		"heat_loss_w":  solution.HeatLoss,
		"chart_bytes":  len(chart.PNG),
		"duration_ms":  time.Since(startTime).Milliseconds(),
	})

	return &models.QuestionPayload{
		ID:            id,
		Kind:          req.Kind,
		Prompt:        Prompt(params),
		Parameters:    params,
		Solution:      solution,
		SolutionImage: chart.PNG,
		Seed:          seed,
	}, nil
}

// GenerateBatch builds n questions. With a seed, question i uses seed+i so the
// whole batch can be regenerated.
func (s *QuestionService) GenerateBatch(ctx context.Context, req GenerateRequest, n int) ([]*models.QuestionPayload, error) {
	if n < 1 || n > MaxBatchSize {
		return nil, &InvalidBatchSizeError{Requested: n}
	}
	s.metrics.BatchSize.Observe(float64(n))

	questions := make([]*models.QuestionPayload, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		itemReq := req
		if req.Seed != nil {
			seed := *req.Seed + int64(i)
			itemReq.Seed = &seed
		}

		q, err := s.Generate(ctx, itemReq)
		if err != nil {
			return nil, fmt.Errorf("question %d of %d: %w", i+1, n, err)
		}
		questions = append(questions, q)
	}

	s.logger.Info(ctx, "[QUESTION_BATCH] Batch generated", logging.Fields{
		"kind":       req.Kind,
		"num_layers": req.NumLayers,
		"count":      n,
	})

	return questions, nil
}

// Catalogs lists every registered kind with the layer counts and
// constructions it can generate
func (s *QuestionService) Catalogs() []CatalogSummary {
	kinds := s.registry.Kinds()
	out := make([]CatalogSummary, 0, len(kinds))
	for _, kind := range kinds {
		cat, err := s.registry.Get(kind)
		if err != nil {
			continue
		}
		out = append(out, CatalogSummary{
			Kind:        kind,
			LayerCounts: cat.LayerCounts(),
			Templates:   cat.TemplateNames(),
			Materials:   cat.Materials(),
		})
	}
	return out
}

// Prompt writes the question text a student is given for params
func Prompt(params *models.WallParameters) string {
	var b strings.Builder

	subject := "multilayer wall"
	if params.Kind == models.KindThermalBridging {
		subject = "multilayer wall with thermal bridging"
	}

	fmt.Fprintf(&b,
		"Determine the heat loss through the following %s (%s): the wall is %.2f m long and %.2f m high, "+
			"the inside air is at %g °C and the outside air is at %g °C.",
		subject, params.Construction, params.LengthM, params.HeightM, params.InsideTempC, params.OutsideTempC)

	b.WriteString(" Layers from outside to inside:")
	for i, layer := range params.Layers {
		fmt.Fprintf(&b, "\n%d. %s", i+1, describeLayer(layer))
	}
	fmt.Fprintf(&b, "\nUse Rso = %g m²K/W and Rsi = %g m²K/W for the surface films.",
		params.Surface.Outside, params.Surface.Inside)

	return b.String()
}

func describeLayer(layer models.ResolvedLayer) string {
	if layer.Kind != models.LayerMixed {
		if layer.FixedResistance != nil {
			return fmt.Sprintf("%s, R = %g m²K/W", layer.Label(), *layer.FixedResistance)
		}
		return fmt.Sprintf("%s, %.1f mm, k = %g W/mK", layer.Label(), layer.ThicknessM*1000, deref(layer.Conductivity))
	}

	parts := make([]string, 0, len(layer.SubPaths))
	for _, p := range layer.SubPaths {
		parts = append(parts, fmt.Sprintf("%s %.1f%% (%s)",
			models.DisplayName(p.Material), p.Fraction*100, property(p.Conductivity, p.FixedResistance)))
	}
	return fmt.Sprintf("%.1f mm of %s", layer.ThicknessM*1000, strings.Join(parts, ", "))
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func property(k, r *float64) string {
	if r != nil {
		return fmt.Sprintf("R = %g m²K/W", *r)
	}
	return fmt.Sprintf("k = %g W/mK", deref(k))
}
