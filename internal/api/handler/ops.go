// Package handler provides HTTP handlers for the dashboard API.
package handler

import (
	"net/http"
	"time"

	"github.com/airdash/airdash/internal/api/models"
	"github.com/airdash/airdash/internal/api/response"
	"github.com/airdash/airdash/internal/dataset"
	"github.com/airdash/airdash/internal/provider/resilience"
)

// OpsConfig configures an OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string
	// Stores must all hold a snapshot for the service to be ready.
	Stores []*dataset.Store
	// Registry reports upstream provider health. Optional.
	Registry *resilience.Registry
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	stores    []*dataset.Store
	registry  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		stores:    cfg.Stores,
		registry:  cfg.Registry,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - ready once every dataset is loaded.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	var missing []string
	for _, s := range h.stores {
		if s.Current() == nil {
			missing = append(missing, s.Name())
		}
	}

	if len(missing) > 0 {
		response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
			Status:  models.HealthStatusFail,
			Time:    models.Timestamp(time.Now()),
			Details: map[string]interface{}{"notLoaded": missing},
		})
		return
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - dataset and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Datasets:  make([]models.DatasetStatus, 0, len(h.stores)),
		Providers: []models.ProviderStatus{},
	}

	for _, s := range h.stores {
		ds := datasetStatus(s)
		if ds.Status == models.HealthStatusFail {
			status.Status = models.HealthStatusFail
		}
		status.Datasets = append(status.Datasets, ds)
	}

	if h.registry != nil {
		for _, p := range h.registry.Snapshot() {
			status.Providers = append(status.Providers, providerStatus(p))
		}
		if h.registry.Condition() != resilience.ConditionHealthy && status.Status == models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func datasetStatus(s *dataset.Store) models.DatasetStatus {
	out := models.DatasetStatus{Name: s.Name(), Status: models.HealthStatusFail, Parameters: []string{}}
	ds := s.Current()
	if ds == nil {
		return out
	}

	out.Status = models.HealthStatusOK
	out.Rows = ds.Len()
	if params := ds.Parameters(); params != nil {
		out.Parameters = params
	}
	if first, last, ok := ds.Bounds(); ok {
		out.Start = models.NewTimestamp(first)
		out.End = models.NewTimestamp(last)
	}
	if at, ok := s.LoadedAt(); ok {
		out.LoadedAt = models.NewTimestamp(at)
	}
	return out
}

func providerStatus(p resilience.ProviderHealth) models.ProviderStatus {
	out := models.ProviderStatus{
		Provider:     p.Name,
		Status:       models.HealthStatusOK,
		CircuitState: p.State.String(),
	}
	switch p.Condition {
	case resilience.ConditionUnhealthy:
		out.Status = models.HealthStatusFail
	case resilience.ConditionDegraded:
		out.Status = models.HealthStatusDegraded
	}
	if !p.LastSuccessAt.IsZero() {
		out.LastSuccessAt = models.NewTimestamp(p.LastSuccessAt)
	}
	if !p.LastFailureAt.IsZero() {
		out.LastFailureAt = models.NewTimestamp(p.LastFailureAt)
	}
	if p.LastError != "" {
		msg := p.LastError
		out.Message = &msg
	}
	return out
}
