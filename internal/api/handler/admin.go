package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/agent"
	"github.com/ecoroute/ecoroute/internal/api/middleware"
	"github.com/ecoroute/ecoroute/internal/api/models"
	"github.com/ecoroute/ecoroute/internal/api/response"
	"github.com/ecoroute/ecoroute/internal/modelstore"
	"github.com/ecoroute/ecoroute/internal/serving"
)

// Reloader swaps the serving policy for a stored one.
type Reloader interface {
	Reload(ctx context.Context, name string) (serving.ModelInfo, error)
}

// AdminHandler serves the operator model endpoints.
type AdminHandler struct {
	reloader Reloader
	store    modelstore.Repository
	logger   zerolog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(reloader Reloader, store modelstore.Repository, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{reloader: reloader, store: store, logger: logger}
}

// ReloadModel handles POST /v1/admin/models/{name}:reload.
func (h *AdminHandler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	info, err := h.reloader.Reload(r.Context(), name)
	switch {
	case err == nil:
	case errors.Is(err, modelstore.ErrInvalidName):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "name", Message: "invalid model name", Code: models.CodeInvalid},
		})
		return
	case errors.Is(err, modelstore.ErrNotFound):
		response.NotFound(w, r, "model "+name+" not found")
		return
	case errors.Is(err, agent.ErrIncompatibleModel):
		response.BadRequest(w, r, "model "+name+" does not match the serving observation or action space", nil)
		return
	default:
		h.logger.Error().Err(err).Str("model", name).Msg("policy reload failed")
		response.InternalError(w, r, "policy reload failed")
		return
	}

	h.logger.Info().
		Str("model", info.Name).
		Int("updates", info.Updates).
		Str("subject", middleware.GetSubject(r.Context())).
		Msg("policy reloaded by operator")

	response.JSON(w, r, http.StatusOK, models.ReloadResponse{
		Model: models.ModelStatus{
			Name:     info.Name,
			Updates:  info.Updates,
			LoadedAt: models.Timestamp(info.LoadedAt),
		},
	})
}

// ListModels handles GET /v1/admin/models.
func (h *AdminHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("listing models failed")
		response.InternalError(w, r, "listing models failed")
		return
	}

	list := models.ModelList{Models: make([]models.StoredModel, 0, len(artifacts))}
	for _, a := range artifacts {
		list.Models = append(list.Models, models.StoredModel{
			Name:      a.Name,
			SizeBytes: a.Size,
			UpdatedAt: models.Timestamp(a.UpdatedAt),
		})
	}
	response.JSON(w, r, http.StatusOK, list)
}
