package handler

import (
	"net/http"
	"time"

	"github.com/ecoroute/ecoroute/internal/api/models"
	"github.com/ecoroute/ecoroute/internal/api/response"
	"github.com/ecoroute/ecoroute/internal/provider/resilience"
	"github.com/ecoroute/ecoroute/internal/serving"
)

// ModelSource reports the loaded policy.
type ModelSource interface {
	Model() (serving.ModelInfo, bool)
}

// OpsHandler serves the liveness, readiness and status endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	models    ModelSource
	registry  *resilience.Registry
	now       func() time.Time
}

// NewOpsHandler creates an OpsHandler. registry may be nil.
func NewOpsHandler(version, buildTime string, models ModelSource, registry *resilience.Registry) *OpsHandler {
	if registry == nil {
		registry = resilience.NewRegistry()
	}
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		models:    models,
		registry:  registry,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health. It only reports that the process
// is serving.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready: 503 until a policy is loaded.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	info, ok := h.models.Model()
	if !ok {
		response.ServiceUnavailable(w, r, "no route policy is loaded")
		return
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"model": info.Name,
		},
	})
}

// SystemStatus handles GET /v1/ops/status with the circuit breaker view of
// every provider.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.Snapshot()
	providers := make([]models.ProviderStatus, 0, len(snapshot))
	for _, p := range snapshot {
		providers = append(providers, providerStatus(p))
	}

	status := models.SystemStatus{
		Status:    healthStatus(h.registry.Overall()),
		Time:      models.Timestamp(h.now()),
		Providers: providers,
	}

	if info, ok := h.models.Model(); ok {
		status.Model = &models.ModelStatus{
			Name:     info.Name,
			Updates:  info.Updates,
			LoadedAt: models.Timestamp(info.LoadedAt),
		}
	} else if status.Status == models.HealthStatusOK {
		status.Status = models.HealthStatusDegraded
	}

	response.JSON(w, r, http.StatusOK, status)
}

func providerStatus(p resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:      p.Name,
		Status:        healthStatus(p.Level()),
		CircuitState:  p.CircuitState.String(),
		Requests:      p.Counts.Requests,
		Failures:      p.Counts.TotalFailures,
		LastSuccessAt: models.TimestampPtr(p.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(p.LastFailureAt),
	}
	if p.LastError != "" {
		msg := p.LastError
		ps.Message = &msg
	}
	return ps
}

func healthStatus(level resilience.Level) models.HealthStatus {
	switch level {
	case resilience.LevelUnhealthy:
		return models.HealthStatusFail
	case resilience.LevelDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
