package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/yegors/co-wx/internal/api"
	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/internal/frequencies"
	"github.com/yegors/co-wx/internal/observability"
	"github.com/yegors/co-wx/internal/storage/sqlite"
	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Co-WX server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server exited with error", logger.Error(err))
		os.Exit(1)
	}

	log.Info("Server fully stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Stations.DBPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := sqlite.NewStationStorage(cfg.Stations.DBPath, log)
	if err != nil {
		return fmt.Errorf("failed to open station storage: %w", err)
	}
	defer store.Close()

	if err := importStations(ctx, cfg.Stations, store, log); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	client := weather.NewClient(weather.ClientConfig{
		Timeout:    cfg.Weather.RequestTimeout(),
		MaxRetries: cfg.Weather.MaxRetries,
	}, metrics, log)

	weatherService, err := weather.NewService(weather.Config{
		APIBaseURL:          cfg.Weather.APIBaseURL,
		NationalPrefix:      cfg.Stations.NationalPrefix,
		RequestTimeout:      cfg.Weather.RequestTimeout(),
		MaxRetries:          cfg.Weather.MaxRetries,
		WindsAloftURL:       cfg.Weather.WindsAloft.URL,
		InvalidationTimes:   cfg.Weather.WindsAloft.InvalidationTimes,
		ObservationURL:      cfg.Weather.Observations.URL,
		ObservationAPIKey:   cfg.Weather.Observations.APIKey,
		ObservationCacheTTL: cfg.Weather.Observations.CacheTTL(),
		ObservationCacheMax: cfg.Weather.Observations.CacheSize,
		HazardsURL:          cfg.Weather.Hazards.URL,
		DefaultRegion: weather.BoundingBox{
			MinLat: cfg.Weather.Hazards.MinLat,
			MaxLat: cfg.Weather.Hazards.MaxLat,
			MinLon: cfg.Weather.Hazards.MinLon,
			MaxLon: cfg.Weather.Hazards.MaxLon,
		},
	}, store, client, clockwork.NewRealClock(), metrics, log)
	if err != nil {
		return fmt.Errorf("failed to create weather service: %w", err)
	}

	if err := weatherService.Start(); err != nil {
		return fmt.Errorf("failed to start weather service: %w", err)
	}
	defer weatherService.Stop()

	frequenciesService := frequencies.NewService(client, cfg.Frequencies.URL, cfg.Frequencies.APIToken, log)

	handler := api.NewHandler(weatherService, frequenciesService, weatherService.WindsAloftCache(), log)
	router := api.NewRouter(handler, cfg, reg, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		log.Info("HTTP server shutdown complete")
		return nil
	})

	return g.Wait()
}

// importStations loads the configured station files into the directory
func importStations(ctx context.Context, cfg config.StationsConfig, store *sqlite.StationStorage, log *logger.Logger) error {
	if cfg.AirportsCSVPath != "" {
		f, err := os.Open(cfg.AirportsCSVPath)
		if err != nil {
			return fmt.Errorf("failed to open airports file: %w", err)
		}
		n, err := store.ImportAirportsCSV(ctx, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to import airports: %w", err)
		}
		log.Info("Station directory loaded", logger.String("path", cfg.AirportsCSVPath), logger.Int("stations", n))
	}

	if cfg.WindsAloftListPath != "" {
		f, err := os.Open(cfg.WindsAloftListPath)
		if err != nil {
			return fmt.Errorf("failed to open winds aloft station list: %w", err)
		}
		n, err := store.ImportWindsAloftList(ctx, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to import winds aloft station list: %w", err)
		}
		log.Info("Winds aloft stations flagged", logger.String("path", cfg.WindsAloftListPath), logger.Int("stations", n))
	}

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count stations: %w", err)
	}
	if count == 0 {
		log.Warn("Station directory is empty; station lookups will fail until airports are imported")
	}
	return nil
}
