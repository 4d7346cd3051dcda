package types

import "time"

// AQI bounds enforced on every simulated hourly value, including after
// noise injection. The range mirrors the plausible envelope of the upstream
// satellite feed rather than the full 0-500 EPA scale.
const (
	MinAQI = 15
	MaxAQI = 300
)

// CategoryForAQI maps an AQI value onto the standard EPA category labels.
func CategoryForAQI(aqi int) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive Groups"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}

// FactorBreakdown records the additive contributions that produced an hourly
// AQI prediction. It exists for explainability and debugging only: the values
// are deterministic functions of the inputs (random noise is excluded), so the
// same request reproduces the same breakdown.
type FactorBreakdown struct {
	TimeOfDay     float64 `json:"time_of_day"`
	Environmental float64 `json:"environmental"`
	Location      float64 `json:"location"`
	Seasonal      float64 `json:"seasonal"`
}

// PollutantForecast is the per-pollutant slice of an hourly prediction.
type PollutantForecast struct {
	Value      float64        `json:"value"`
	Unit       string         `json:"unit"`
	Trend      TrendDirection `json:"trend"`
	Confidence float64        `json:"confidence"`
}

// ForecastPoint is one hour-offset prediction.
type ForecastPoint struct {
	Time       time.Time                    `json:"time"`
	Hour       int                          `json:"hour"`
	AQI        int                          `json:"aqi"`
	Category   string                       `json:"category"`
	Pollutants map[string]PollutantForecast `json:"pollutants,omitempty"`
	Confidence float64                      `json:"confidence"`
	Factors    FactorBreakdown              `json:"factors"`
}

// Summary holds aggregate statistics derived from a forecast series. It is
// computed from the hourly data and never mutated independently of it.
type Summary struct {
	MaxAQI     int        `json:"max_aqi"`
	MinAQI     int        `json:"min_aqi"`
	AvgAQI     int        `json:"avg_aqi"`
	PeakTime   time.Time  `json:"peak_time"`
	BestTime   time.Time  `json:"best_time"`
	Trend      TrendLabel `json:"trend"`
	HealthRisk RiskLevel  `json:"health_risk"`
}

// Insight is a rule-generated, leveled message attached to a series.
type Insight struct {
	Type           string       `json:"type"`
	Level          InsightLevel `json:"level"`
	Message        string       `json:"message"`
	Recommendation string       `json:"recommendation,omitempty"`
}

// ForecastSeries is the full forecast result for one location and horizon.
// Invariant: len(HourlyData) == ForecastHours, with HourlyData[0] being the
// prediction for one hour ahead.
type ForecastSeries struct {
	Location      Location        `json:"location"`
	Timestamp     time.Time       `json:"timestamp"`
	ForecastHours int             `json:"forecast_hours"`
	Source        ForecastSource  `json:"source"`
	Confidence    float64         `json:"confidence"`
	HourlyData    []ForecastPoint `json:"hourly_data"`
	Summary       Summary         `json:"summary"`
	Insights      []Insight       `json:"insights"`
}
