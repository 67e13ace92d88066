// Package main provides the weather maps API HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go.ngs.io/weather-maps-api/internal/adapter/cache"
	"go.ngs.io/weather-maps-api/internal/adapter/render"
	"go.ngs.io/weather-maps-api/internal/adapter/store/dataset"
	"go.ngs.io/weather-maps-api/internal/config"
	"go.ngs.io/weather-maps-api/internal/domain"
	httpHandler "go.ngs.io/weather-maps-api/internal/http"
	"go.ngs.io/weather-maps-api/internal/logging"
	"go.ngs.io/weather-maps-api/internal/scheduler"
	"go.ngs.io/weather-maps-api/internal/telemetry"
	"go.ngs.io/weather-maps-api/internal/usecase"
)

const (
	serviceName     = "weather-maps-api"
	version         = "0.1.0"
	shutdownTimeout = 15 * time.Second
)

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, serviceName, version)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	log.Info("starting weather maps API server",
		zap.String("version", version),
		zap.String("port", cfg.Port),
		zap.String("output_dir", cfg.OutputDir),
		zap.String("base_url", cfg.BaseURL))

	// Initialize stores.
	remote := dataset.NewRemote(cfg.StoreCacheDir, log)
	registry := dataset.NewRegistry(cfg.Stores(), remote, log)
	defer func() {
		if err := registry.Close(); err != nil {
			log.Warn("failed to close stores", zap.Error(err))
		}
	}()
	for model, location := range cfg.Stores() {
		if location == "" {
			log.Info("store not configured", zap.String("model", string(model)))
		}
	}

	// Initialize models.
	raster := render.NewRaster(render.Options{Width: cfg.RenderWidth, Quality: cfg.WebPQuality}, log)
	models := usecase.NewModels(registrations(registry, raster)...)

	// Initialize image cache.
	index := cache.NewIndex(cfg.OutputDir, cfg.BaseURL)
	if err := index.EnsureLayout(models.IDs()); err != nil {
		return err
	}

	// Initialize use cases.
	images := usecase.NewImageService(models, index, log)
	times := usecase.NewTimeService(models, cfg.DiscoveryWindow, log)
	gallery := usecase.NewGallery(images, times, index, log)
	current := usecase.NewCurrentModel(models, cfg.Default())

	warmup := scheduler.New(
		[]domain.ModelID{domain.ModelGraphcast, domain.ModelCerrora},
		cfg.WarmupInterval, times, images, log)
	if err := warmup.Start(); err != nil {
		return err
	}
	defer warmup.Stop()

	// Setup router.
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := httpHandler.NewHandler(images, times, gallery, current, log)
	router := httpHandler.SetupRouter(handler, httpHandler.Options{
		APIPrefix:         cfg.APIPrefix,
		StaticPrefix:      cfg.StaticPrefix,
		OutputDir:         cfg.OutputDir,
		AllowedOrigins:    cfg.AllowedOrigins,
		AssetWaitTimeout:  cfg.AssetWaitTimeout,
		AssetPollInterval: cfg.AssetPollInterval,
	}, log)

	// Start server.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("health", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			zap.String("api", cfg.APIPrefix),
			zap.String("static", cfg.StaticPrefix))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// registrations wires each model to its stores, renderer and variable names.
func registrations(registry *dataset.Registry, raster render.Renderer) []usecase.Registration {
	cerrora := usecase.Registration{
		ID:           domain.ModelCerrora,
		Source:       registry.Source(domain.ModelCerrora),
		Renderer:     raster,
		Variables:    domain.CerroraVariables,
		Discoverable: true,
	}
	if registry.Configured(domain.ModelCerroraGT) {
		cerrora.GroundTruth = registry.Source(domain.ModelCerroraGT)
	}
	return []usecase.Registration{
		{
			ID:           domain.ModelGraphcast,
			Source:       registry.Source(domain.ModelGraphcast),
			Renderer:     raster,
			Variables:    domain.GraphcastVariables,
			Discoverable: true,
		},
		cerrora,
		{
			// Shares the Cerrora store layout.
			ID:        domain.ModelExperimental,
			Source:    registry.Source(domain.ModelExperimental),
			Renderer:  render.Unsupported{Model: domain.ModelExperimental},
			Variables: domain.CerroraVariables,
		},
	}
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("Weather Maps API Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  weather-maps-api [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES (also read from ./.env):")
	fmt.Println("  PORT                     Server port (default: 8080)")
	fmt.Println("  GRAPHCAST_STORE_PATH     GraphCast NetCDF store, local path or gs://bucket/object")
	fmt.Println("  CERRORA_STORE_PATH       Cerrora NetCDF store, local path or gs://bucket/object")
	fmt.Println("  CERRORA_GT_STORE_PATH    Cerrora ground-truth store (optional)")
	fmt.Println("  EXPERIMENTAL_STORE_PATH  Experimental model store (optional)")
	fmt.Println("  STORE_CACHE_DIR          Local copies of gs:// stores (default: ./data/stores)")
	fmt.Println("  IMAGE_OUTPUT_DIR         Rendered image directory (default: ./streaming)")
	fmt.Println("  API_BASE_URL             Public URL of the image directory (default: http://127.0.0.1:8080/streaming)")
	fmt.Println("  STATIC_PREFIX            Mount path of the image directory (default: /streaming)")
	fmt.Println("  API_PREFIX               Mount path of the JSON API (default: /api/v1)")
	fmt.Println("  CORS_ALLOWED_ORIGINS     Comma-separated list of allowed origins (default: all origins)")
	fmt.Println("  ASSET_WAIT_TIMEOUT       Wait for an image being rendered (default: 30s)")
	fmt.Println("  ASSET_POLL_INTERVAL      Poll interval while waiting (default: 500ms)")
	fmt.Println("  RENDER_WIDTH             Image width in pixels (default: 1024)")
	fmt.Println("  WEBP_QUALITY             WebP quality 1-100 (default: 80)")
	fmt.Println("  DEFAULT_MODEL            Initial model of /current-model (default: cerrora)")
	fmt.Println("  DISCOVERY_WINDOW         Base-time lookback without queryTime (default: 168h)")
	fmt.Println("  WARMUP_INTERVAL          Pre-render the latest forecasts every interval (default: 0s, disabled)")
	fmt.Println("  LOG_LEVEL                debug, info, warn or error (default: info)")
	fmt.Println("  LOG_FORMAT               json or console (default: json)")
	fmt.Println("  OTEL_ENDPOINT            OTLP/HTTP trace endpoint (default: tracing disabled)")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start server with local stores")
	fmt.Println("  GRAPHCAST_STORE_PATH=./data/graphcast.nc CERRORA_STORE_PATH=./data/cerrora.nc weather-maps-api")
	fmt.Println()
	fmt.Println("  # Generate synthetic stores for development")
	fmt.Println("  dataset-generator -out ./data")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET  /health                                       Health check")
	fmt.Println("  POST /api/v1/data/{plotType}/{model}               Fetch or render images")
	fmt.Println("  GET  /api/v1/base-times/{model}                    List base times")
	fmt.Println("  GET  /api/v1/valid-times/{model}                   List valid times")
	fmt.Println("  GET  /api/v1/current-model                         Current model (deprecated)")
	fmt.Println("  POST /api/v1/switch-model                          Switch model (deprecated)")
	fmt.Println("  GET  /api/v1/data/{variable}/{base_time}           Side-by-side gallery")
	fmt.Println("  GET  /api/v1/data/rand/init_random_image/{model}   Sample image")
	fmt.Println("  GET  /streaming/*                                  Rendered images")
	fmt.Println()
}
