// Package api provides the HTTP API of the air-quality dashboard.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/airdash/airdash/internal/api/handler"
	"github.com/airdash/airdash/internal/api/middleware"
	"github.com/airdash/airdash/internal/colorband"
	"github.com/airdash/airdash/internal/dataset"
	"github.com/airdash/airdash/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Readings    *dataset.Store
	Predictions *dataset.Store
	Registry    *resilience.Registry

	// Location interprets date filters (default: UTC).
	Location        *time.Location
	TimestampColumn string
	StationID       string
	Thresholds      colorband.Thresholds
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "airdash-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	readings := cfg.Readings
	if readings == nil {
		readings = dataset.NewStore("readings")
	}
	predictions := cfg.Predictions
	if predictions == nil {
		predictions = dataset.NewStore("predictions")
	}

	thresholds := cfg.Thresholds
	if thresholds == (colorband.Thresholds{}) {
		thresholds = colorband.DefaultThresholds()
	}

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Stores:    []*dataset.Store{readings, predictions},
		Registry:  cfg.Registry,
	})
	readingsHandler := handler.NewReadingsHandler(handler.ReadingsConfig{
		Store:           readings,
		Location:        cfg.Location,
		TimestampColumn: cfg.TimestampColumn,
		StationID:       cfg.StationID,
		Logger:          cfg.Logger,
	})
	predictionsHandler := handler.NewPredictionsHandler(handler.PredictionsConfig{
		Store:      predictions,
		Thresholds: thresholds,
		Logger:     cfg.Logger,
	})

	renderRateLimit := middleware.RateLimitByIP(middleware.RenderRateLimit)     // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/readings", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/parameters", readingsHandler.Parameters)
				r.Get("/series", readingsHandler.Series)
				r.Get("/stats", readingsHandler.Stats)
				r.Get("/daily", readingsHandler.Daily)
			})
			r.Group(func(r chi.Router) {
				r.Use(renderRateLimit)
				r.Get("/series.png", readingsHandler.SeriesPNG)
				r.Get("/export.csv", readingsHandler.ExportCSV)
				r.Get("/export.xlsx", readingsHandler.ExportXLSX)
			})
		})

		r.Route("/predictions", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/parameters", predictionsHandler.Parameters)
				r.Get("/stats", predictionsHandler.Stats)
				r.Get("/series", predictionsHandler.Series)
			})
			r.With(renderRateLimit).Get("/series.png", predictionsHandler.SeriesPNG)
		})
	})

	return r
}
