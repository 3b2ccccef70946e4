// Package main provides the entrypoint for the dashboard API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/airdash/airdash/internal/air4thai"
	"github.com/airdash/airdash/internal/api"
	"github.com/airdash/airdash/internal/api/middleware"
	"github.com/airdash/airdash/internal/cleaner"
	"github.com/airdash/airdash/internal/config"
	"github.com/airdash/airdash/internal/database"
	"github.com/airdash/airdash/internal/dataset"
	"github.com/airdash/airdash/internal/provider/resilience"
	"github.com/airdash/airdash/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "airdash-api"

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := telemetry.NewLogger(telemetry.LoggerConfig{
		ServiceName: serviceName,
		Version:     Version,
		Level:       cfg.LogLevel,
		Pretty:      cfg.LogPretty,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	log.Info().
		Str("build_time", BuildTime).
		Str("readings_source", cfg.Dataset.Source).
		Msg("starting dashboard API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("initialize HTTP metrics: %w", err)
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		return fmt.Errorf("initialize provider metrics: %w", err)
	}
	datasetMetrics, err := telemetry.NewDatasetMetrics()
	if err != nil {
		return fmt.Errorf("initialize dataset metrics: %w", err)
	}

	registry := resilience.NewRegistry()

	readingsSource, closeSource, err := newReadingsSource(ctx, cfg, registry, providerMetrics, log)
	if err != nil {
		return err
	}
	defer closeSource()

	readings := dataset.NewStore("readings")
	readingsTransform := cleanTransform(readings.Name(), cfg.Dataset.CleanThresholdPercent, log)
	if err := loadStore(ctx, readings, readingsSource, readingsTransform, datasetMetrics, log); err != nil {
		return err
	}

	predictions := dataset.NewStore("predictions")
	predictionsSource := dataset.FileSource{
		Path: cfg.Dataset.PredictionsFile,
		Options: dataset.Options{
			TimestampColumn: cfg.Dataset.TimestampColumn,
			Location:        cfg.Dataset.Location,
		},
	}
	var predictionsTransform dataset.Transform
	if cfg.Dataset.CleanPredictions {
		predictionsTransform = cleanTransform(predictions.Name(), cfg.Dataset.CleanThresholdPercent, log)
	}
	if err := loadStore(ctx, predictions, predictionsSource, predictionsTransform, datasetMetrics, log); err != nil {
		return err
	}

	if cfg.Dataset.WatchFiles {
		if fs, ok := readingsSource.(dataset.FileSource); ok {
			if err := watch(ctx, readings, fs, readingsTransform, log); err != nil {
				return err
			}
		}
		if err := watch(ctx, predictions, predictionsSource, predictionsTransform, log); err != nil {
			return err
		}
	}

	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		RequireTLS:      cfg.RequireTLS,
		Readings:        readings,
		Predictions:     predictions,
		Registry:        registry,
		Location:        cfg.Dataset.Location,
		TimestampColumn: cfg.Dataset.TimestampColumn,
		StationID:       cfg.Air4Thai.StationID,
		Thresholds:      cfg.Thresholds,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// newReadingsSource builds the configured readings source. The returned
// function releases its resources.
func newReadingsSource(
	ctx context.Context,
	cfg config.Config,
	registry *resilience.Registry,
	providerMetrics *telemetry.ProviderMetrics,
	log zerolog.Logger,
) (dataset.Source, func(), error) {
	noop := func() {}

	switch cfg.Dataset.Source {
	case config.SourceHTTP:
		query, err := cfg.Air4Thai.Query(time.Now().In(cfg.Dataset.Location), cfg.Worker.LookbackDays)
		if err != nil {
			return nil, noop, err
		}
		client := air4thai.NewClient(air4thai.ClientConfig{
			BaseURL:    cfg.Air4Thai.BaseURL,
			Timeout:    cfg.Air4Thai.Timeout,
			MaxRetries: cfg.Air4Thai.MaxRetries,
			Location:   cfg.Dataset.Location,
			Registry:   registry,
			Metrics:    providerMetrics,
			Logger:     log,
		})
		log.Info().
			Str("station", query.StationID).
			Str("url", client.URL(query)).
			Msg("reading station history over HTTP")
		return air4thai.Source{Client: client, Query: query}, noop, nil

	case config.SourcePostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, noop, fmt.Errorf("connect to database: %w", err)
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Str("table", cfg.Dataset.ReadingsTable).
			Msg("database connected")
		return dataset.PostgresSource{
			Pool:            pool,
			Table:           cfg.Dataset.ReadingsTable,
			TimestampColumn: cfg.Dataset.TimestampColumn,
			Parameters:      cfg.Air4Thai.Params,
			StationColumn:   cfg.Dataset.StationColumn,
			StationID:       cfg.Air4Thai.StationID,
			Location:        cfg.Dataset.Location,
		}, pool.Close, nil

	default:
		return dataset.FileSource{
			Path: cfg.Dataset.ReadingsFile,
			Options: dataset.Options{
				TimestampColumn: cfg.Dataset.TimestampColumn,
				Location:        cfg.Dataset.Location,
			},
		}, noop, nil
	}
}

func cleanTransform(name string, thresholdPercent float64, log zerolog.Logger) dataset.Transform {
	return func(ds *dataset.Dataset) (*dataset.Dataset, error) {
		cleaned, report, err := cleaner.Clean(ds, thresholdPercent)
		if err != nil {
			return nil, err
		}
		for _, d := range report.Dropped {
			log.Info().
				Str("dataset", name).
				Str("column", d.Name).
				Float64("missing_ratio", d.MissingRatio).
				Msg("dropped sparse column")
		}
		for _, c := range report.Imputed {
			log.Debug().
				Str("dataset", name).
				Str("column", c.Name).
				Float64("mean", c.Mean).
				Int("filled", c.Filled).
				Msg("imputed missing values")
		}
		return cleaned, nil
	}
}

func loadStore(
	ctx context.Context,
	store *dataset.Store,
	src dataset.Source,
	transform dataset.Transform,
	metrics *telemetry.DatasetMetrics,
	log zerolog.Logger,
) error {
	start := time.Now()
	ds, err := store.Refresh(ctx, src, transform)
	if err != nil {
		metrics.RecordLoad(store.Name(), 0, err)
		return fmt.Errorf("load %s: %w", store.Name(), err)
	}
	metrics.RecordLoad(store.Name(), ds.Len(), nil)

	event := log.Info().
		Str("dataset", store.Name()).
		Int("rows", ds.Len()).
		Strs("parameters", ds.Parameters()).
		Dur("duration", time.Since(start))
	if first, last, ok := ds.Bounds(); ok {
		event = event.Time("start", first).Time("end", last)
	}
	event.Msg("dataset loaded")
	return nil
}

func watch(ctx context.Context, store *dataset.Store, src dataset.FileSource, transform dataset.Transform, log zerolog.Logger) error {
	w, err := dataset.NewWatcher(dataset.WatcherConfig{
		Store:     store,
		Source:    src,
		Transform: transform,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", store.Name(), err)
	}

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("dataset", store.Name()).Msg("file watcher stopped")
		}
	}()

	log.Info().Str("dataset", store.Name()).Str("path", src.Path).Msg("watching dataset file")
	return nil
}
