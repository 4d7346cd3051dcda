package forecasts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"airsight/internal/config"
	"airsight/internal/types"
)

// mockPredictor implements external.Predictor for orchestrator tests.
type mockPredictor struct {
	mu      sync.Mutex
	calls   int
	invokeF func(ctx context.Context, model types.ModelKind, payload, out any) error
}

func (m *mockPredictor) Invoke(ctx context.Context, model types.ModelKind, payload, out any) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.invokeF == nil {
		return types.NewAppError(types.ErrCodeRemoteUnavailable, "remote model path is not configured", nil)
	}
	return m.invokeF(ctx, model, payload, out)
}

func (m *mockPredictor) Models() map[types.ModelKind]string {
	return map[types.ModelKind]string{
		types.ModelAQIForecast:  "aqi-forecast-model",
		types.ModelHealthImpact: "health-impact-model",
	}
}

func (m *mockPredictor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockTokens implements external.TokenSource.
type mockTokens struct {
	configured    bool
	authenticated bool
}

func (m *mockTokens) Token(ctx context.Context) (string, bool) {
	if !m.authenticated {
		return "", false
	}
	return "token", true
}
func (m *mockTokens) Configured() bool    { return m.configured }
func (m *mockTokens) Authenticated() bool { return m.authenticated }

func testForecastConfig() config.ForecastConfig {
	return config.ForecastConfig{
		CacheTTL:            20 * time.Minute,
		MaxHorizonHours:     72,
		DefaultHorizonHours: 24,
		BatchMaxLocations:   20,
	}
}

func newTestService(remote *mockPredictor, tokens *mockTokens) *Service {
	if remote == nil {
		remote = &mockPredictor{}
	}
	if tokens == nil {
		tokens = &mockTokens{}
	}
	return NewService(
		remote,
		tokens,
		NewSimulatorWithRand(rand.New(rand.NewPCG(1, 0))),
		NewResultCache(20*time.Minute),
		testForecastConfig(),
		slog.Default(),
	)
}

func TestForecastFallsBackToLocalWithoutCredentials(t *testing.T) {
	svc := newTestService(nil, nil)

	series, err := svc.Forecast(context.Background(), testObservation(), nil, 12)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	if series.Source != types.SourceLocalSimulation {
		t.Errorf("Source = %q, want local_simulation", series.Source)
	}
	if len(series.HourlyData) != 12 {
		t.Errorf("got %d points, want 12", len(series.HourlyData))
	}
	if last := series.HourlyData[11]; last.Confidence != 0.75 {
		t.Errorf("hour-12 confidence = %v, want 0.75", last.Confidence)
	}
	if series.Summary == (types.Summary{}) {
		t.Error("summary should be populated")
	}
	if series.Insights == nil {
		t.Error("insights should be non-nil")
	}
}

func TestForecastUsesRemoteWhenHealthy(t *testing.T) {
	remote := &mockPredictor{
		invokeF: func(ctx context.Context, model types.ModelKind, payload, out any) error {
			points := make([]types.ForecastPoint, 6)
			for i := range points {
				points[i] = types.ForecastPoint{Hour: i + 1, AQI: 100 + i, Category: "Moderate"}
			}
			resp := forecastModelResponse{HourlyData: points, Confidence: 0.92}
			b, _ := json.Marshal(resp)
			return json.Unmarshal(b, out)
		},
	}
	svc := newTestService(remote, &mockTokens{configured: true, authenticated: true})

	series, err := svc.Forecast(context.Background(), testObservation(), nil, 6)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	if series.Source != types.SourceAzureML {
		t.Errorf("Source = %q, want azure_ml", series.Source)
	}
	if series.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", series.Confidence)
	}
	if series.Summary.MaxAQI != 105 {
		t.Errorf("Summary.MaxAQI = %d, want 105", series.Summary.MaxAQI)
	}
}

func TestForecastFallsBackOnWrongRemoteLength(t *testing.T) {
	remote := &mockPredictor{
		invokeF: func(ctx context.Context, model types.ModelKind, payload, out any) error {
			resp := forecastModelResponse{HourlyData: make([]types.ForecastPoint, 3)}
			b, _ := json.Marshal(resp)
			return json.Unmarshal(b, out)
		},
	}
	svc := newTestService(remote, nil)

	series, err := svc.Forecast(context.Background(), testObservation(), nil, 12)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if series.Source != types.SourceLocalSimulation {
		t.Errorf("Source = %q, want local fallback for malformed remote reply", series.Source)
	}
	if len(series.HourlyData) != 12 {
		t.Errorf("got %d points, want 12", len(series.HourlyData))
	}
}

func TestForecastHorizonPolicy(t *testing.T) {
	svc := newTestService(nil, nil)
	ctx := context.Background()

	t.Run("zero selects default", func(t *testing.T) {
		series, err := svc.Forecast(ctx, testObservation(), nil, 0)
		if err != nil {
			t.Fatalf("Forecast: %v", err)
		}
		if series.ForecastHours != 24 {
			t.Errorf("ForecastHours = %d, want default 24", series.ForecastHours)
		}
	})

	t.Run("negative rejected", func(t *testing.T) {
		_, err := svc.Forecast(ctx, testObservation(), nil, -1)
		var appErr *types.AppError
		if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeValidationHorizon {
			t.Fatalf("err = %v, want %s", err, types.ErrCodeValidationHorizon)
		}
	})

	t.Run("oversized clamped to maximum", func(t *testing.T) {
		series, err := svc.Forecast(ctx, testObservation(), nil, 500)
		if err != nil {
			t.Fatalf("Forecast: %v", err)
		}
		if series.ForecastHours != 72 {
			t.Errorf("ForecastHours = %d, want clamp to 72", series.ForecastHours)
		}
	})
}

func TestForecastRejectsInvalidObservation(t *testing.T) {
	svc := newTestService(nil, nil)

	_, err := svc.Forecast(context.Background(), &types.Observation{AQI: 0}, nil, 12)
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeValidationMissingField {
		t.Fatalf("err = %v, want %s", err, types.ErrCodeValidationMissingField)
	}
}

func TestForecastCachesResults(t *testing.T) {
	remote := &mockPredictor{}
	svc := newTestService(remote, nil)
	ctx := context.Background()

	first, err := svc.Forecast(ctx, testObservation(), nil, 12)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	callsAfterFirst := remote.callCount()

	second, err := svc.Forecast(ctx, testObservation(), nil, 12)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	if second != first {
		t.Error("identical request within TTL should return the cached series")
	}
	if remote.callCount() != callsAfterFirst {
		t.Error("cache hit should not invoke the remote model again")
	}

	// Different horizon is a different cache key.
	third, err := svc.Forecast(ctx, testObservation(), nil, 6)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if third == first {
		t.Error("different horizon should not share a cache entry")
	}
}

func TestClearCache(t *testing.T) {
	svc := newTestService(nil, nil)
	ctx := context.Background()

	if _, err := svc.Forecast(ctx, testObservation(), nil, 12); err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if n := svc.ClearCache(); n != 1 {
		t.Errorf("ClearCache() = %d, want 1", n)
	}
	if n := svc.ClearCache(); n != 0 {
		t.Errorf("second ClearCache() = %d, want 0", n)
	}
}

func TestForecastBatch(t *testing.T) {
	svc := newTestService(nil, nil)
	ctx := context.Background()

	requests := []ForecastRequest{
		{Observation: testObservation(), Hours: 6},
		{Observation: &types.Observation{AQI: -1}}, // invalid
		{Observation: &types.Observation{AQI: 60, Location: types.Location{Lat: 35.7, Lon: 139.7}}, Hours: 12},
	}

	results, err := svc.ForecastBatch(ctx, requests)
	if err != nil {
		t.Fatalf("ForecastBatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if results[0].Series == nil || results[0].Error != "" {
		t.Errorf("result 0 should succeed: %+v", results[0])
	}
	if results[1].Series != nil || results[1].Error == "" {
		t.Errorf("result 1 should carry an error: %+v", results[1])
	}
	if results[2].Series == nil || len(results[2].Series.HourlyData) != 12 {
		t.Errorf("result 2 should have 12 points: %+v", results[2])
	}
}

func TestForecastBatchSizeLimit(t *testing.T) {
	svc := newTestService(nil, nil)

	requests := make([]ForecastRequest, 21)
	for i := range requests {
		requests[i] = ForecastRequest{Observation: testObservation()}
	}

	_, err := svc.ForecastBatch(context.Background(), requests)
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeValidationBatchSize {
		t.Fatalf("err = %v, want %s", err, types.ErrCodeValidationBatchSize)
	}

	if _, err := svc.ForecastBatch(context.Background(), nil); err == nil {
		t.Error("empty batch should be rejected")
	}
}

func TestAssessHealthImpactLocalFallback(t *testing.T) {
	svc := newTestService(nil, nil)
	ctx := context.Background()

	series, err := svc.Forecast(ctx, testObservation(), nil, 24)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	a, err := svc.AssessHealthImpact(ctx, series, types.PopulationData{Density: 10000})
	if err != nil {
		t.Fatalf("AssessHealthImpact: %v", err)
	}

	if a.Source != types.SourceLocalSimulation {
		t.Errorf("Source = %q, want local_simulation", a.Source)
	}
	if a.Confidence != LocalAssessmentConfidence {
		t.Errorf("Confidence = %v, want %v", a.Confidence, LocalAssessmentConfidence)
	}
	if a.ForecastPeriod != "24h" {
		t.Errorf("ForecastPeriod = %q, want 24h", a.ForecastPeriod)
	}
	if len(a.RiskLevels) != len(types.AllDemographicGroups) {
		t.Errorf("got %d risk levels, want %d", len(a.RiskLevels), len(types.AllDemographicGroups))
	}
	if len(a.Recommendations) == 0 {
		t.Error("recommendations should not be empty")
	}
}

func TestAssessHealthImpactUsesRemote(t *testing.T) {
	remote := &mockPredictor{
		invokeF: func(ctx context.Context, model types.ModelKind, payload, out any) error {
			if model != types.ModelHealthImpact {
				t.Errorf("model = %q, want health-impact", model)
			}
			resp := healthModelResponse{
				AffectedPopulation: types.AffectedPopulation{SensitiveGroups: 100, GeneralPopulation: 50, Total: 100},
				RiskLevels: map[types.DemographicGroup]types.RiskLevel{
					types.GroupChildren: types.RiskModerate,
				},
				Recommendations: []string{"stay indoors"},
				Confidence:      0.88,
			}
			b, _ := json.Marshal(resp)
			return json.Unmarshal(b, out)
		},
	}
	svc := newTestService(remote, &mockTokens{configured: true, authenticated: true})

	series := &types.ForecastSeries{
		ForecastHours: 12,
		HourlyData:    pointsFromAQI(summaryBase, 80, 90, 100),
	}

	a, err := svc.AssessHealthImpact(context.Background(), series, types.PopulationData{Density: 5000})
	if err != nil {
		t.Fatalf("AssessHealthImpact: %v", err)
	}
	if a.Source != types.SourceAzureML {
		t.Errorf("Source = %q, want azure_ml", a.Source)
	}
	if a.Confidence != 0.88 {
		t.Errorf("Confidence = %v, want 0.88", a.Confidence)
	}
	if a.AffectedPopulation.Total != 100 {
		t.Errorf("Total = %d, want 100", a.AffectedPopulation.Total)
	}
}

func TestAssessHealthImpactValidation(t *testing.T) {
	svc := newTestService(nil, nil)
	ctx := context.Background()

	if _, err := svc.AssessHealthImpact(ctx, nil, types.PopulationData{Density: 100}); err == nil {
		t.Error("nil series should be rejected")
	}
	if _, err := svc.AssessHealthImpact(ctx, &types.ForecastSeries{}, types.PopulationData{Density: 100}); err == nil {
		t.Error("series without hourly data should be rejected")
	}

	series := &types.ForecastSeries{ForecastHours: 3, HourlyData: pointsFromAQI(summaryBase, 80, 90, 100)}
	if _, err := svc.AssessHealthImpact(ctx, series, types.PopulationData{Density: -1}); err == nil {
		t.Error("negative density should be rejected")
	}
}

func TestStatus(t *testing.T) {
	svc := newTestService(nil, &mockTokens{configured: true, authenticated: false})

	if _, err := svc.Forecast(context.Background(), testObservation(), nil, 6); err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	status := svc.Status()
	if !status.RemoteConfigured {
		t.Error("RemoteConfigured should be true")
	}
	if status.RemoteAuthenticated {
		t.Error("RemoteAuthenticated should be false")
	}
	if status.CacheSize != 1 {
		t.Errorf("CacheSize = %d, want 1", status.CacheSize)
	}
	if status.Models[types.ModelAQIForecast] != "aqi-forecast-model" {
		t.Errorf("Models = %v", status.Models)
	}
}

func TestForecastCoalescesConcurrentRequests(t *testing.T) {
	svc := newTestService(nil, nil)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	results := make([]*types.ForecastSeries, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			series, err := svc.Forecast(ctx, testObservation(), nil, 24)
			if err != nil {
				t.Errorf("Forecast: %v", err)
				return
			}
			results[i] = series
		}(i)
	}
	wg.Wait()

	if status := svc.Status(); status.CacheSize != 1 {
		t.Errorf("CacheSize = %d, want 1 entry for identical concurrent requests", status.CacheSize)
	}
	for i := 1; i < n; i++ {
		if results[i] == nil {
			t.Fatalf("result %d is nil", i)
		}
	}
}
