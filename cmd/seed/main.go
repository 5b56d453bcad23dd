package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"heatloss-engine/internal/config"
	"heatloss-engine/internal/repository"
	"heatloss-engine/internal/services"
	"heatloss-engine/pkg/database"
	"heatloss-engine/pkg/logging"
	"heatloss-engine/pkg/metrics"
)

func main() {
	dataDir := flag.String("data-dir", "", "Directory with <kind>/{constructions,thicknesses,properties}.yaml; empty seeds the built-in catalogs")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("heatloss-seed", "1.0.0", cfg.LogLevel())

	ctx := context.Background()
	logger.Info(ctx, "[SEED_CMD_START] Starting catalog seeding", logging.Fields{
		"version":  "1.0.0",
		"data_dir": *dataDir,
		"database": cfg.Database.Database,
	})

	metricsCollector := metrics.NewCollector("heatloss_seed", prometheus.NewRegistry())

	db, err := database.NewPostgresDB(cfg.Database.DB(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[SEED_CMD_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	catalogRepo := repository.NewCatalogRepository(db, logger, metricsCollector)
	seedService := services.NewSeedService(catalogRepo, logger, metricsCollector)

	source := services.EmbeddedTableSource()
	if *dataDir != "" {
		source = services.DirTableSource(*dataDir)
	}

	result, err := seedService.Seed(ctx, source)

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("CATALOG SEEDING COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	if result != nil {
		kinds := make([]string, len(result.Kinds))
		for i, k := range result.Kinds {
			kinds[i] = string(k)
		}
		fmt.Printf("Kinds:      %s\n", strings.Join(kinds, ", "))
		fmt.Printf("Materials:  %d\n", result.Materials)
		fmt.Printf("Templates:  %d\n", result.Templates)
		fmt.Printf("Duration:   %v\n", result.Duration)

		if len(result.Errors) > 0 {
			fmt.Printf("\nErrors (%d):\n", len(result.Errors))
			for _, errMsg := range result.Errors {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
	}

	if err != nil {
		logger.Fatal(ctx, "[SEED_CMD_ERROR] Seeding failed", logging.Fields{}, err)
	}
}
