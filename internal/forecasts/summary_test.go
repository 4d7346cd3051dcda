package forecasts

import (
	"strings"
	"testing"
	"time"

	"airsight/internal/types"
)

// pointsFromAQI builds a series of hourly points with the given AQI values,
// starting one hour after base.
func pointsFromAQI(base time.Time, aqis ...int) []types.ForecastPoint {
	points := make([]types.ForecastPoint, len(aqis))
	for i, aqi := range aqis {
		ts := base.Add(time.Duration(i+1) * time.Hour)
		points[i] = types.ForecastPoint{
			Time:     ts,
			Hour:     ts.Hour(),
			AQI:      aqi,
			Category: types.CategoryForAQI(aqi),
		}
	}
	return points
}

var summaryBase = time.Date(2026, time.March, 10, 6, 0, 0, 0, time.UTC)

func TestSummarizeAggregates(t *testing.T) {
	points := pointsFromAQI(summaryBase, 80, 120, 95, 60)
	s := Summarize(points)

	if s.MaxAQI != 120 {
		t.Errorf("MaxAQI = %d, want 120", s.MaxAQI)
	}
	if s.MinAQI != 60 {
		t.Errorf("MinAQI = %d, want 60", s.MinAQI)
	}
	if s.AvgAQI != (80+120+95+60)/4 {
		t.Errorf("AvgAQI = %d, want %d", s.AvgAQI, (80+120+95+60)/4)
	}
	if s.MaxAQI < s.AvgAQI || s.AvgAQI < s.MinAQI {
		t.Errorf("expected max >= avg >= min, got %d/%d/%d", s.MaxAQI, s.AvgAQI, s.MinAQI)
	}
	if !s.PeakTime.Equal(points[1].Time) {
		t.Errorf("PeakTime = %v, want %v", s.PeakTime, points[1].Time)
	}
	if !s.BestTime.Equal(points[3].Time) {
		t.Errorf("BestTime = %v, want %v", s.BestTime, points[3].Time)
	}
}

func TestSummarizeTiesResolveToEarliestHour(t *testing.T) {
	points := pointsFromAQI(summaryBase, 100, 40, 100, 40)
	s := Summarize(points)

	if !s.PeakTime.Equal(points[0].Time) {
		t.Errorf("PeakTime = %v, want first occurrence %v", s.PeakTime, points[0].Time)
	}
	if !s.BestTime.Equal(points[1].Time) {
		t.Errorf("BestTime = %v, want first occurrence %v", s.BestTime, points[1].Time)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if s := Summarize(nil); s != (types.Summary{}) {
		t.Errorf("Summarize(nil) = %+v, want zero value", s)
	}
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name string
		aqis []int
		want types.TrendLabel
	}{
		{"deteriorating above threshold", []int{50, 50, 61, 61}, types.TrendDeteriorating},
		{"stable within threshold", []int{50, 50, 59, 59}, types.TrendStable},
		{"stable at exact threshold", []int{50, 50, 60, 60}, types.TrendStable},
		{"improving below negative threshold", []int{61, 61, 50, 50}, types.TrendImproving},
		{"single point", []int{80}, types.TrendStable},
		{"odd length splits at floor midpoint", []int{50, 80, 80}, types.TrendDeteriorating},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := pointsFromAQI(summaryBase, tt.aqis...)
			if got := classifyTrend(points); got != tt.want {
				t.Errorf("classifyTrend(%v) = %q, want %q", tt.aqis, got, tt.want)
			}
		})
	}
}

func TestClassifyHealthRisk(t *testing.T) {
	tests := []struct {
		name   string
		maxAQI int
		avgAQI int
		want   types.RiskLevel
	}{
		{"high on max", 210, 120, types.RiskHigh},
		{"moderate on max", 160, 90, types.RiskModerate},
		{"moderate on avg", 120, 110, types.RiskModerate},
		{"low on avg", 120, 60, types.RiskLow},
		{"minimal", 120, 40, types.RiskMinimal},
		{"boundary max 200 is moderate", 200, 90, types.RiskModerate},
		{"boundary avg 50 is minimal", 45, 50, types.RiskMinimal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyHealthRisk(tt.maxAQI, tt.avgAQI); got != tt.want {
				t.Errorf("classifyHealthRisk(%d, %d) = %q, want %q", tt.maxAQI, tt.avgAQI, got, tt.want)
			}
		})
	}
}

func TestDeriveInsightsWarningOnUnhealthyHours(t *testing.T) {
	points := pointsFromAQI(summaryBase, 90, 130, 140, 80)
	insights := DeriveInsights(points, nil)

	var warning *types.Insight
	for i := range insights {
		if insights[i].Type == "air_quality_warning" {
			warning = &insights[i]
		}
	}
	if warning == nil {
		t.Fatal("expected an air_quality_warning insight")
	}
	if warning.Level != types.InsightWarning {
		t.Errorf("Level = %q, want warning", warning.Level)
	}
	// Points 2 and 3 exceed 100; their wall-clock hours are 08 and 09.
	if !strings.Contains(warning.Message, "08:00") || !strings.Contains(warning.Message, "09:00") {
		t.Errorf("Message %q should list 08:00 and 09:00", warning.Message)
	}
}

func TestDeriveInsightsEachRuleFiresAtMostOnce(t *testing.T) {
	// Every hour unhealthy, every hour good never co-occur; use a series
	// where many hours trip the same rule.
	points := pointsFromAQI(summaryBase, 150, 150, 150, 150, 150, 150)
	insights := DeriveInsights(points, nil)

	counts := map[string]int{}
	for _, in := range insights {
		counts[in.Type]++
	}
	for typ, n := range counts {
		if n > 1 {
			t.Errorf("insight type %q fired %d times, want at most 1", typ, n)
		}
	}
}

func TestDeriveInsightsTrafficVariationNeedsDensity(t *testing.T) {
	points := pointsFromAQI(summaryBase, 60, 60)

	dense := &types.LocationContext{Population: &types.PopulationInfo{Density: 8000}}
	sparse := &types.LocationContext{Population: &types.PopulationInfo{Density: 500}}

	hasType := func(insights []types.Insight, typ string) bool {
		for _, in := range insights {
			if in.Type == typ {
				return true
			}
		}
		return false
	}

	if !hasType(DeriveInsights(points, dense), "traffic_variation") {
		t.Error("dense context should produce a traffic_variation insight")
	}
	if hasType(DeriveInsights(points, sparse), "traffic_variation") {
		t.Error("sparse context should not produce a traffic_variation insight")
	}
	if hasType(DeriveInsights(points, nil), "traffic_variation") {
		t.Error("nil context should not produce a traffic_variation insight")
	}
}

func TestDeriveInsightsOutdoorOpportunity(t *testing.T) {
	points := pointsFromAQI(summaryBase, 45, 90, 30)
	insights := DeriveInsights(points, nil)

	found := false
	for _, in := range insights {
		if in.Type == "outdoor_opportunity" {
			found = true
			if in.Level != types.InsightPositive {
				t.Errorf("Level = %q, want positive", in.Level)
			}
			if !strings.Contains(in.Message, "07:00") || !strings.Contains(in.Message, "09:00") {
				t.Errorf("Message %q should list the good hours", in.Message)
			}
		}
	}
	if !found {
		t.Error("expected an outdoor_opportunity insight")
	}
}

func TestDeriveInsightsEmptyForQuietSeries(t *testing.T) {
	// Moderate AQI everywhere, no context: only weather sensitivity could
	// fire, and factors are zero here.
	points := pointsFromAQI(summaryBase, 70, 75, 72)
	insights := DeriveInsights(points, nil)

	if len(insights) != 0 {
		t.Errorf("got %d insights, want 0: %+v", len(insights), insights)
	}
}

func TestWeatherSensitivity(t *testing.T) {
	points := pointsFromAQI(summaryBase, 70, 70)
	points[1].Factors.Environmental = -11.2

	insights := DeriveInsights(points, nil)
	found := false
	for _, in := range insights {
		if in.Type == "weather_sensitivity" {
			found = true
		}
	}
	if !found {
		t.Error("expected a weather_sensitivity insight for |environmental| > 10")
	}
}

func TestFormatHours(t *testing.T) {
	if got := formatHours([]int{7, 8, 17}); got != "07:00, 08:00, 17:00" {
		t.Errorf("formatHours = %q", got)
	}
}
