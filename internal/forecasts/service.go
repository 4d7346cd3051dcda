package forecasts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"airsight/internal/config"
	"airsight/internal/external"
	"airsight/internal/types"
)

// batchConcurrencyLimit caps concurrent per-location computations inside a
// batch request.
const batchConcurrencyLimit = 5

// RemoteSeriesConfidence is the overall confidence attached to a series
// sourced from the hosted forecast model when the model does not report its
// own figure.
const RemoteSeriesConfidence = 0.85

// ForecastRequest is one location's forecast request, used by the batch
// operation.
type ForecastRequest struct {
	Observation     *types.Observation     `json:"observation"`
	LocationContext *types.LocationContext `json:"location_context,omitempty"`
	Hours           int                    `json:"hours,omitempty"`
}

// BatchResult pairs a request index with its outcome. Failed entries carry
// the error message instead of a series so one malformed observation does
// not sink the whole batch.
type BatchResult struct {
	Index  int                   `json:"index"`
	Series *types.ForecastSeries `json:"series,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// ServiceStatus is the operational introspection snapshot exposed by the
// status endpoint.
type ServiceStatus struct {
	RemoteConfigured    bool                       `json:"remote_configured"`
	RemoteAuthenticated bool                       `json:"remote_authenticated"`
	CacheSize           int                        `json:"cache_size"`
	Models              map[types.ModelKind]string `json:"models"`
}

// forecastModelRequest is the payload sent to the hosted forecast model.
type forecastModelRequest struct {
	Observation     *types.Observation     `json:"observation"`
	LocationContext *types.LocationContext `json:"location_context,omitempty"`
	Hours           int                    `json:"hours"`
}

// forecastModelResponse is the hosted forecast model's reply.
type forecastModelResponse struct {
	HourlyData []types.ForecastPoint `json:"hourly_data"`
	Confidence float64               `json:"confidence"`
}

// healthModelRequest is the payload sent to the hosted health-impact model.
type healthModelRequest struct {
	Summary       types.Summary        `json:"summary"`
	ForecastHours int                  `json:"forecast_hours"`
	Population    types.PopulationData `json:"population"`
}

// healthModelResponse is the hosted health-impact model's reply.
type healthModelResponse struct {
	AffectedPopulation types.AffectedPopulation                 `json:"affected_population"`
	RiskLevels         map[types.DemographicGroup]types.RiskLevel `json:"risk_levels"`
	Recommendations    []string                                 `json:"recommendations"`
	Confidence         float64                                  `json:"confidence"`
}

// Service orchestrates forecast production: the hosted Azure ML models are
// tried first, and any failure or absence of credentials falls back to the
// local simulator, which cannot fail. Callers therefore always receive a
// fully-formed result for well-formed input; the only error surface is
// input validation.
type Service struct {
	remote external.Predictor
	tokens external.TokenSource
	sim    *Simulator
	cache  *ResultCache
	cfg    config.ForecastConfig
	logger *slog.Logger
	now    func() time.Time

	// flight coalesces duplicate concurrent requests for the same
	// (location, horizon) key into a single computation.
	flight singleflight.Group
}

// NewService wires the orchestrator. All collaborators are injected; the
// cache in particular is an explicit dependency so concurrent-request tests
// can instantiate isolated instances.
func NewService(
	remote external.Predictor,
	tokens external.TokenSource,
	sim *Simulator,
	cache *ResultCache,
	cfg config.ForecastConfig,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		remote: remote,
		tokens: tokens,
		sim:    sim,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Forecast produces a forecast series for one location.
//
// Horizon handling: zero selects the configured default; negative values
// are rejected; values above the configured maximum are clamped. The
// result is cached per (location, horizon) for the configured TTL, and
// duplicate concurrent requests for the same key share a single in-flight
// computation.
func (s *Service) Forecast(ctx context.Context, obs *types.Observation, locCtx *types.LocationContext, horizon int) (*types.ForecastSeries, error) {
	if err := obs.Validate(); err != nil {
		return nil, err
	}

	horizon, err := s.normalizeHorizon(horizon)
	if err != nil {
		return nil, err
	}

	key := cacheKey(obs.Location, horizon)
	if series, ok := s.cache.Get(key); ok {
		return series, nil
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		// Re-check under the flight lock: a concurrent caller may have
		// populated the cache between our miss and this closure running.
		if series, ok := s.cache.Get(key); ok {
			return series, nil
		}

		series := s.computeSeries(ctx, obs, locCtx, horizon)
		s.cache.Set(key, series)
		return series, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*types.ForecastSeries), nil
}

// ForecastBatch produces forecasts for up to the configured number of
// locations concurrently. Per-entry failures are reported in-line.
func (s *Service) ForecastBatch(ctx context.Context, requests []ForecastRequest) ([]BatchResult, error) {
	if len(requests) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"at least one forecast request is required",
			nil,
		)
	}
	if len(requests) > s.cfg.BatchMaxLocations {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationBatchSize,
			fmt.Sprintf("batch size exceeds maximum of %d locations", s.cfg.BatchMaxLocations),
			nil,
			map[string]any{"max_locations": s.cfg.BatchMaxLocations, "requested": len(requests)},
		)
	}

	results := make([]BatchResult, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrencyLimit)

	for i, req := range requests {
		g.Go(func() error {
			series, err := s.Forecast(gctx, req.Observation, req.LocationContext, req.Hours)
			if err != nil {
				results[i] = BatchResult{Index: i, Error: err.Error()}
				return nil
			}
			results[i] = BatchResult{Index: i, Series: series}
			return nil
		})
	}

	// Worker errors are folded into per-entry results, so Wait only
	// surfaces context cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// AssessHealthImpact produces a population health risk estimate for a
// forecast series. The hosted health-impact model is tried first; on any
// failure the bucketed local tables are used.
func (s *Service) AssessHealthImpact(ctx context.Context, series *types.ForecastSeries, pop types.PopulationData) (*types.HealthImpactAssessment, error) {
	if series == nil || len(series.HourlyData) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"forecast series with hourly data is required",
			nil,
		)
	}
	if pop.Density < 0 {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"population.density must not be negative",
			nil,
		)
	}

	// The summary drives every lookup table; recompute it when the caller
	// supplied a bare series.
	if series.Summary == (types.Summary{}) {
		series.Summary = Summarize(series.HourlyData)
	}

	if assessment := s.assessRemotely(ctx, series, pop); assessment != nil {
		return assessment, nil
	}

	return AssessLocally(series, pop, s.now().UTC()), nil
}

// ClearCache drops all cached forecast series and returns the number of
// entries removed.
func (s *Service) ClearCache() int {
	return s.cache.Clear()
}

// Status reports the operational state of the engine: whether the remote
// path is configured and currently authenticated, the cache size, and the
// model identifiers in use.
func (s *Service) Status() ServiceStatus {
	return ServiceStatus{
		RemoteConfigured:    s.tokens.Configured(),
		RemoteAuthenticated: s.tokens.Authenticated(),
		CacheSize:           s.cache.Len(),
		Models:              s.remote.Models(),
	}
}

// computeSeries runs the remote-first, local-fallback pipeline and attaches
// summary and insights. It cannot fail: the fallback path is pure
// computation.
func (s *Service) computeSeries(ctx context.Context, obs *types.Observation, locCtx *types.LocationContext, horizon int) *types.ForecastSeries {
	series := s.predictRemotely(ctx, obs, locCtx, horizon)
	if series == nil {
		local := s.sim.Simulate(obs, locCtx, horizon, s.now().UTC())
		series = &local
	}

	series.Summary = Summarize(series.HourlyData)
	series.Insights = DeriveInsights(series.HourlyData, locCtx)
	return series
}

// predictRemotely invokes the hosted forecast model. Any failure, including
// a structurally invalid reply, returns nil so the caller falls back; the
// client layer has already logged the cause at the appropriate level.
func (s *Service) predictRemotely(ctx context.Context, obs *types.Observation, locCtx *types.LocationContext, horizon int) *types.ForecastSeries {
	req := forecastModelRequest{
		Observation:     obs,
		LocationContext: locCtx,
		Hours:           horizon,
	}

	var resp forecastModelResponse
	if err := s.remote.Invoke(ctx, types.ModelAQIForecast, req, &resp); err != nil {
		return nil
	}

	if len(resp.HourlyData) != horizon {
		s.logger.WarnContext(ctx, "remote forecast model returned wrong series length; using local simulator",
			"expected_hours", horizon,
			"got_hours", len(resp.HourlyData),
		)
		return nil
	}

	confidence := resp.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = RemoteSeriesConfidence
	}

	return &types.ForecastSeries{
		Location:      obs.Location,
		Timestamp:     s.now().UTC(),
		ForecastHours: horizon,
		Source:        types.SourceAzureML,
		Confidence:    confidence,
		HourlyData:    resp.HourlyData,
	}
}

// assessRemotely invokes the hosted health-impact model, returning nil on
// any failure so the caller computes locally.
func (s *Service) assessRemotely(ctx context.Context, series *types.ForecastSeries, pop types.PopulationData) *types.HealthImpactAssessment {
	req := healthModelRequest{
		Summary:       series.Summary,
		ForecastHours: series.ForecastHours,
		Population:    pop,
	}

	var resp healthModelResponse
	if err := s.remote.Invoke(ctx, types.ModelHealthImpact, req, &resp); err != nil {
		return nil
	}

	if len(resp.RiskLevels) == 0 {
		s.logger.WarnContext(ctx, "remote health model returned no risk levels; computing locally")
		return nil
	}

	confidence := resp.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = RemoteAssessmentConfidence
	}

	return &types.HealthImpactAssessment{
		Timestamp:          s.now().UTC(),
		ForecastPeriod:     fmt.Sprintf("%dh", series.ForecastHours),
		AffectedPopulation: resp.AffectedPopulation,
		RiskLevels:         resp.RiskLevels,
		Recommendations:    resp.Recommendations,
		Confidence:         confidence,
		Source:             types.SourceAzureML,
	}
}

// normalizeHorizon applies the documented horizon policy: zero means the
// configured default, negatives are rejected, values beyond the maximum
// are clamped.
func (s *Service) normalizeHorizon(horizon int) (int, error) {
	switch {
	case horizon == 0:
		return s.cfg.DefaultHorizonHours, nil
	case horizon < 0:
		return 0, types.NewAppError(
			types.ErrCodeValidationHorizon,
			"forecast hours must be a positive integer",
			nil,
		)
	case horizon > s.cfg.MaxHorizonHours:
		return s.cfg.MaxHorizonHours, nil
	default:
		return horizon, nil
	}
}

// cacheKey builds the per-request cache key. Coordinates are rounded to
// four decimal places (~11 m) so jittery client GPS readings share entries.
func cacheKey(loc types.Location, horizon int) string {
	return fmt.Sprintf("%.4f:%.4f:%d", loc.Lat, loc.Lon, horizon)
}
