// Package main provides the entrypoint for the station refresh worker.
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

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/airdash/airdash/internal/air4thai"
	"github.com/airdash/airdash/internal/api/response"
	"github.com/airdash/airdash/internal/config"
	"github.com/airdash/airdash/internal/provider/resilience"
	"github.com/airdash/airdash/internal/telemetry"
	"github.com/airdash/airdash/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "airdash-worker"

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
		log.Error().Err(err).Msg("worker failed")
		os.Exit(1)
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	log.Info().
		Str("build_time", BuildTime).
		Strs("stations", cfg.Worker.Stations).
		Str("schedule", cfg.Worker.Schedule).
		Msg("starting station refresh worker")

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

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		return fmt.Errorf("initialize provider metrics: %w", err)
	}
	datasetMetrics, err := telemetry.NewDatasetMetrics()
	if err != nil {
		return fmt.Errorf("initialize dataset metrics: %w", err)
	}

	query, err := cfg.Air4Thai.Query(time.Now().In(cfg.Dataset.Location), cfg.Worker.LookbackDays)
	if err != nil {
		return err
	}
	// Unpinned bounds move with the clock on every run.
	if cfg.Air4Thai.StartDate == "" {
		query.StartDate = time.Time{}
	}
	if cfg.Air4Thai.EndDate == "" {
		query.EndDate = time.Time{}
	}

	registry := resilience.NewRegistry()
	client := air4thai.NewClient(air4thai.ClientConfig{
		BaseURL:    cfg.Air4Thai.BaseURL,
		Timeout:    cfg.Air4Thai.Timeout,
		MaxRetries: cfg.Air4Thai.MaxRetries,
		Location:   cfg.Dataset.Location,
		Registry:   registry,
		Metrics:    providerMetrics,
		Logger:     log,
	})

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Stations:     cfg.Worker.Stations,
			Query:        query,
			LookbackDays: cfg.Worker.LookbackDays,
			Location:     cfg.Dataset.Location,
			OutputDir:    cfg.Worker.OutputDir,
			Format:       cfg.Worker.Format,
			Concurrency:  cfg.Worker.Concurrency,
			Timeout:      cfg.Air4Thai.Timeout,
		},
		Fetcher: client,
		Logger:  log,
		Loads:   datasetMetrics,
	})

	scheduler, err := worker.NewScheduler(ctx, cfg.Worker.Schedule, job, log)
	if err != nil {
		return err
	}

	// Health endpoint for the container platform.
	mux := chi.NewRouter()
	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":  resilience.ConditionHealthy,
			"version": Version,
			"refresh": job.MetricsSnapshot(),
		}
		if h, ok := registry.Health(air4thai.ProviderName); ok {
			body["status"] = h.Condition
			body["circuit_state"] = h.State.String()
			if h.LastError != "" {
				body["last_error"] = h.LastError
			}
		}
		response.JSON(w, r, http.StatusOK, body)
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("health server: %w", err)
		}
	}()

	var pubsubHandler *worker.PubSubHandler
	if cfg.Worker.PubSubProjectID != "" && cfg.Worker.PubSubSubscription != "" {
		pubsubHandler, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.PubSubProjectID,
			SubscriptionName: cfg.Worker.PubSubSubscription,
			RefreshJob:       job,
			Logger:           log,
		})
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := pubsubHandler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := pubsubHandler.Start(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("pubsub: %w", err)
			}
		}()
	}

	// Initial refresh, then on schedule.
	scheduler.Trigger()
	scheduler.Start()
	defer scheduler.Stop()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down worker")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server forced to shutdown: %w", err)
	}

	log.Info().Msg("worker stopped")
	return nil
}
