// Package handlers contains the HTTP handler implementations for the
// AirSight API:
//   - Forecast generation (POST /v1/forecast)
//   - Batch forecast generation (POST /v1/forecast/batch)
//   - Health impact assessment (POST /v1/health-impact)
//   - Engine status (GET /v1/forecast/status)
//   - Cache clearing (POST /v1/forecast/cache/clear)
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"airsight/internal/core"
	"airsight/internal/forecasts"
	"airsight/internal/types"
)

// ForecastServiceInterface defines the service contract for the forecast
// handler. Matches the forecasts.Service methods but is defined locally so
// tests can substitute a mock without depending on the concrete type.
type ForecastServiceInterface interface {
	Forecast(ctx context.Context, obs *types.Observation, locCtx *types.LocationContext, horizon int) (*types.ForecastSeries, error)
	ForecastBatch(ctx context.Context, requests []forecasts.ForecastRequest) ([]forecasts.BatchResult, error)
	AssessHealthImpact(ctx context.Context, series *types.ForecastSeries, pop types.PopulationData) (*types.HealthImpactAssessment, error)
	ClearCache() int
	Status() forecasts.ServiceStatus
}

// ForecastHandler maps HTTP requests to forecast service methods.
type ForecastHandler struct {
	service   ForecastServiceInterface
	validator *core.Validator
	logger    *slog.Logger
}

// NewForecastHandler creates a new ForecastHandler with the provided
// dependencies.
func NewForecastHandler(
	svc ForecastServiceInterface,
	val *core.Validator,
	logger *slog.Logger,
) *ForecastHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastHandler{
		service:   svc,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the forecast endpoints onto the mux.
func (h *ForecastHandler) RegisterRoutes(r chi.Router) {
	r.Post("/forecast", h.HandleForecast)
	r.Post("/forecast/batch", h.HandleForecastBatch)
	r.Post("/health-impact", h.HandleHealthImpact)
	r.Get("/forecast/status", h.HandleStatus)
	r.Post("/forecast/cache/clear", h.HandleCacheClear)
}

// forecastRequest is the body of POST /v1/forecast.
type forecastRequest struct {
	Observation     *types.Observation     `json:"observation" validate:"required"`
	LocationContext *types.LocationContext `json:"location_context,omitempty"`
	Hours           int                    `json:"hours,omitempty"`
}

// batchForecastRequest is the body of POST /v1/forecast/batch.
type batchForecastRequest struct {
	Requests []forecasts.ForecastRequest `json:"requests" validate:"required,min=1"`
}

// healthImpactRequest is the body of POST /v1/health-impact. The caller
// supplies a previously generated forecast series; the population figure is
// people per km² for the assessed area.
type healthImpactRequest struct {
	Forecast   *types.ForecastSeries `json:"forecast" validate:"required"`
	Population types.PopulationData  `json:"population"`
}

// cacheClearResponse is the body returned by POST /v1/forecast/cache/clear.
type cacheClearResponse struct {
	Cleared int `json:"cleared"`
}

// HandleForecast handles POST /v1/forecast.
//
// Validation beyond struct tags (AQI positivity, coordinate ranges, horizon
// policy) lives in the service so the rules hold for every caller, not just
// this transport.
func (h *ForecastHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	series, err := h.service.Forecast(r.Context(), req.Observation, req.LocationContext, req.Hours)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: series})
}

// HandleForecastBatch handles POST /v1/forecast/batch.
func (h *ForecastHandler) HandleForecastBatch(w http.ResponseWriter, r *http.Request) {
	var req batchForecastRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	results, err := h.service.ForecastBatch(r.Context(), req.Requests)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: results})
}

// HandleHealthImpact handles POST /v1/health-impact.
func (h *ForecastHandler) HandleHealthImpact(w http.ResponseWriter, r *http.Request) {
	var req healthImpactRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	assessment, err := h.service.AssessHealthImpact(r.Context(), req.Forecast, req.Population)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: assessment})
}

// HandleStatus handles GET /v1/forecast/status.
func (h *ForecastHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.service.Status()})
}

// HandleCacheClear handles POST /v1/forecast/cache/clear. Intended for
// operators after upstream data corrections; the next request for each
// location recomputes.
func (h *ForecastHandler) HandleCacheClear(w http.ResponseWriter, r *http.Request) {
	cleared := h.service.ClearCache()
	h.logger.InfoContext(r.Context(), "forecast cache cleared", "entries", cleared)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: cacheClearResponse{Cleared: cleared}})
}
