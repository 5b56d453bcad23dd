package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"heatloss-engine/internal/catalog"
	"heatloss-engine/internal/config"
	"heatloss-engine/internal/handlers"
	"heatloss-engine/internal/render"
	"heatloss-engine/internal/repository"
	"heatloss-engine/internal/services"
	"heatloss-engine/pkg/database"
	"heatloss-engine/pkg/logging"
	"heatloss-engine/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("heatloss-api", version, cfg.LogLevel())

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting heat loss question API server", logging.Fields{
		"version":        version,
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
		"catalog_source": cfg.Catalog.Source,
		"palette":        cfg.Render.Palette,
	})

	metricsCollector := metrics.NewCollector("heatloss", prometheus.DefaultRegisterer)

	// Catalogs are loaded and validated once; a broken catalog stops startup
	var health handlers.HealthChecker
	loadStart := time.Now()

	var registry *catalog.Registry
	switch cfg.Catalog.Source {
	case config.CatalogDir:
		registry, err = catalog.DirRegistry(cfg.Catalog.Dir)
	case config.CatalogPostgres:
		db, dbErr := database.NewPostgresDB(cfg.Database.DB(), logger, metricsCollector)
		if dbErr != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, dbErr)
		}
		defer db.Close()

		catalogRepo := repository.NewCatalogRepository(db, logger, metricsCollector)
		health = catalogRepo
		registry, err = catalog.LoadRegistry(repository.Loader(ctx, catalogRepo))
	default:
		registry, err = catalog.EmbeddedRegistry()
	}
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load catalogs", logging.Fields{
			"catalog_source": cfg.Catalog.Source,
		}, err)
	}
	metricsCollector.CatalogLoadDuration.WithLabelValues(cfg.Catalog.Source).Observe(time.Since(loadStart).Seconds())

	for _, kind := range registry.Kinds() {
		c, _ := registry.Get(kind)
		templates := make(map[int]int)
		for count, names := range c.TemplateNames() {
			templates[count] = len(names)
		}
		metricsCollector.RecordCatalog(string(kind), templates, len(c.Materials()))

		logger.Info(ctx, "[CATALOG_LOADED] Catalog ready", logging.Fields{
			"kind":         kind,
			"materials":    len(c.Materials()),
			"layer_counts": c.LayerCounts(),
		})
	}

	questionService := services.NewQuestionService(registry, render.New(cfg.Render.Options()), logger, metricsCollector)
	questionService.SetRanges(cfg.Sampler.Ranges())

	questionHandler := handlers.NewQuestionHandler(questionService, health, logger, metricsCollector)

	router := handlers.NewRouter(questionHandler, metricsCollector, logger)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
