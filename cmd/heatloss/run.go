package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"heatloss-engine/internal/catalog"
	"heatloss-engine/internal/export"
	"heatloss-engine/internal/models"
	"heatloss-engine/internal/render"
	"heatloss-engine/internal/services"
	"heatloss-engine/pkg/logging"
	"heatloss-engine/pkg/metrics"
)

const version = "1.0.0"

type questionFlags struct {
	catalogDir string
	kind       string
	layers     int
	seed       int64
	seedSet    bool
	palette    string
	verbose    bool
}

func (f questionFlags) request() (services.GenerateRequest, error) {
	kind, err := models.ParseQuestionKind(f.kind)
	if err != nil {
		return services.GenerateRequest{}, err
	}

	req := services.GenerateRequest{
		Kind:      kind,
		NumLayers: f.layers,
		Palette:   f.palette,
	}
	if f.seedSet {
		seed := f.seed
		req.Seed = &seed
	}
	return req, nil
}

type generateOptions struct {
	questionFlags
	chartPath string
	asJSON    bool
}

type worksheetOptions struct {
	questionFlags
	count  int
	output string
}

func newService(f questionFlags) (*services.QuestionService, error) {
	registry, err := loadRegistry(f.catalogDir)
	if err != nil {
		return nil, err
	}

	logger := logging.NewNopLogger()
	if f.verbose {
		logger = logging.NewStructuredLogger("heatloss-cli", version, logging.DebugLevel)
		logger.SetOutput(os.Stderr)
	}

	collector := metrics.NewCollector("heatloss_cli", prometheus.NewRegistry())
	return services.NewQuestionService(registry, render.New(render.DefaultOptions()), logger, collector), nil
}

func loadRegistry(dir string) (*catalog.Registry, error) {
	if dir == "" {
		return catalog.EmbeddedRegistry()
	}
	return catalog.DirRegistry(dir)
}

func runGenerate(ctx context.Context, opts generateOptions) error {
	req, err := opts.request()
	if err != nil {
		return err
	}

	svc, err := newService(opts.questionFlags)
	if err != nil {
		return err
	}

	q, err := svc.Generate(ctx, req)
	if err != nil {
		return err
	}

	if opts.chartPath != "" {
		if err := os.WriteFile(opts.chartPath, q.SolutionImage, 0o644); err != nil {
			return fmt.Errorf("writing chart: %w", err)
		}
	}

	if opts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	}

	printQuestion(q)
	if opts.chartPath != "" {
		fmt.Printf("\nChart written to %s\n", opts.chartPath)
	}
	return nil
}

func runValidate(dir string) error {
	source := "built-in"
	if dir != "" {
		source = dir
	}
	fmt.Printf("Validating catalogs (%s)\n\n", source)

	overall := catalog.NewReport()
	for _, kind := range models.AllKinds() {
		var c *catalog.Catalog
		var err error
		if dir == "" {
			c, err = catalog.LoadEmbedded(kind)
		} else {
			c, err = catalog.LoadDir(dir, kind)
		}

		report := catalog.NewReport()
		if err != nil {
			var r *catalog.Report
			if errors.As(err, &r) {
				report.Merge(r)
			} else {
				report.Add(string(kind), "%v", err)
			}
		}

		printKindReport(kind, c, report)
		overall.Merge(report)
	}

	printValidationReport(overall)

	if !overall.Valid {
		return fmt.Errorf("catalog validation failed")
	}
	return nil
}

func runWorksheet(ctx context.Context, opts worksheetOptions) error {
	req, err := opts.request()
	if err != nil {
		return err
	}

	svc, err := newService(opts.questionFlags)
	if err != nil {
		return err
	}

	questions, err := svc.GenerateBatch(ctx, req, opts.count)
	if err != nil {
		return err
	}

	f, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("creating worksheet: %w", err)
	}

	if err := export.WriteWorksheet(f, questions); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing worksheet: %w", err)
	}

	printWorksheetSummary(opts.output, questions)
	return nil
}
