package forecasts

import (
	"fmt"
	"sort"
	"strings"

	"airsight/internal/types"
)

// TrendThreshold is the AQI delta between the averages of the second and
// first halves of a series beyond which the trend is classified as
// deteriorating (or improving, when negative). A hand-tuned design
// constant; treat as configuration, not a value to optimize.
const TrendThreshold = 10.0

// Insight rule thresholds.
const (
	// unhealthyInsightAQI is the per-hour AQI above which the sensitive
	// group warning fires.
	unhealthyInsightAQI = 100
	// weatherSensitivityFactor is the environmental-factor magnitude above
	// which the weather sensitivity note fires.
	weatherSensitivityFactor = 10.0
	// highDensityThreshold is the population density above which the
	// traffic variation note fires.
	highDensityThreshold = 5000.0
	// goodAirAQI is the per-hour AQI at or below which an hour counts as a
	// good outdoor window.
	goodAirAQI = 50
)

// Summarize derives aggregate statistics from a series' hourly points.
// Peak and best times are the first points attaining the max and min
// respectively, so ties resolve to the earliest hour.
func Summarize(points []types.ForecastPoint) types.Summary {
	if len(points) == 0 {
		return types.Summary{}
	}

	summary := types.Summary{
		MaxAQI:   points[0].AQI,
		MinAQI:   points[0].AQI,
		PeakTime: points[0].Time,
		BestTime: points[0].Time,
	}

	total := 0
	for _, p := range points {
		total += p.AQI
		if p.AQI > summary.MaxAQI {
			summary.MaxAQI = p.AQI
			summary.PeakTime = p.Time
		}
		if p.AQI < summary.MinAQI {
			summary.MinAQI = p.AQI
			summary.BestTime = p.Time
		}
	}

	summary.AvgAQI = total / len(points)
	summary.Trend = classifyTrend(points)
	summary.HealthRisk = classifyHealthRisk(summary.MaxAQI, summary.AvgAQI)

	return summary
}

// classifyTrend splits the series into halves by count (integer floor
// midpoint), averages each, and compares the delta against TrendThreshold.
func classifyTrend(points []types.ForecastPoint) types.TrendLabel {
	if len(points) < 2 {
		return types.TrendStable
	}

	mid := len(points) / 2
	firstAvg := meanAQI(points[:mid])
	secondAvg := meanAQI(points[mid:])

	switch delta := secondAvg - firstAvg; {
	case delta > TrendThreshold:
		return types.TrendDeteriorating
	case delta < -TrendThreshold:
		return types.TrendImproving
	default:
		return types.TrendStable
	}
}

// classifyHealthRisk buckets the series into a qualitative risk level from
// its max and average AQI.
func classifyHealthRisk(maxAQI, avgAQI int) types.RiskLevel {
	switch {
	case maxAQI > 200:
		return types.RiskHigh
	case maxAQI > 150 || avgAQI > 100:
		return types.RiskModerate
	case avgAQI > 50:
		return types.RiskLow
	default:
		return types.RiskMinimal
	}
}

func meanAQI(points []types.ForecastPoint) float64 {
	total := 0
	for _, p := range points {
		total += p.AQI
	}
	return float64(total) / float64(len(points))
}

// DeriveInsights generates the rule-based insight list for a series. Rules
// are independent and order-preserving; each fires at most once per series
// regardless of how many hours match it.
func DeriveInsights(points []types.ForecastPoint, locCtx *types.LocationContext) []types.Insight {
	insights := []types.Insight{}

	if hours := hoursExceeding(points, unhealthyInsightAQI); len(hours) > 0 {
		insights = append(insights, types.Insight{
			Type:           "air_quality_warning",
			Level:          types.InsightWarning,
			Message:        fmt.Sprintf("AQI is forecast to exceed %d at %s", unhealthyInsightAQI, formatHours(hours)),
			Recommendation: "Sensitive groups should limit prolonged outdoor exertion during these hours.",
		})
	}

	if weatherSensitive(points) {
		insights = append(insights, types.Insight{
			Type:           "weather_sensitivity",
			Level:          types.InsightInfo,
			Message:        "Forecast air quality is strongly influenced by changing weather conditions.",
			Recommendation: "Check for updated forecasts as conditions evolve.",
		})
	}

	if locCtx.PopulationDensity() > highDensityThreshold {
		insights = append(insights, types.Insight{
			Type:           "traffic_variation",
			Level:          types.InsightInfo,
			Message:        "High population density means traffic emissions drive large hour-to-hour swings.",
			Recommendation: "Expect elevated readings during commute windows.",
		})
	}

	if hours := hoursAtOrBelow(points, goodAirAQI); len(hours) > 0 {
		insights = append(insights, types.Insight{
			Type:           "outdoor_opportunity",
			Level:          types.InsightPositive,
			Message:        fmt.Sprintf("Air quality is forecast to be good at %s", formatHours(hours)),
			Recommendation: "These are the best windows for outdoor activity.",
		})
	}

	return insights
}

// hoursExceeding returns the hours-of-day whose AQI exceeds the threshold,
// deduplicated and sorted.
func hoursExceeding(points []types.ForecastPoint, threshold int) []int {
	return collectHours(points, func(p types.ForecastPoint) bool { return p.AQI > threshold })
}

// hoursAtOrBelow returns the hours-of-day whose AQI is at or below the
// threshold, deduplicated and sorted.
func hoursAtOrBelow(points []types.ForecastPoint, threshold int) []int {
	return collectHours(points, func(p types.ForecastPoint) bool { return p.AQI <= threshold })
}

func collectHours(points []types.ForecastPoint, match func(types.ForecastPoint) bool) []int {
	seen := map[int]bool{}
	hours := []int{}
	for _, p := range points {
		if match(p) && !seen[p.Hour] {
			seen[p.Hour] = true
			hours = append(hours, p.Hour)
		}
	}
	sort.Ints(hours)
	return hours
}

// weatherSensitive reports whether any hour's environmental factor
// magnitude crosses the sensitivity threshold.
func weatherSensitive(points []types.ForecastPoint) bool {
	for _, p := range points {
		mag := p.Factors.Environmental
		if mag < 0 {
			mag = -mag
		}
		if mag > weatherSensitivityFactor {
			return true
		}
	}
	return false
}

// formatHours renders a sorted hour list as "07:00, 08:00, 17:00".
func formatHours(hours []int) string {
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = fmt.Sprintf("%02d:00", h)
	}
	return strings.Join(parts, ", ")
}
