package forecasts

import (
	"fmt"
	"math"
	"time"

	"airsight/internal/types"
)

// Assessment confidence by provenance. The locally derived estimate is
// deliberately marked less confident than one sourced from the hosted
// health-impact model.
const (
	LocalAssessmentConfidence  = 0.70
	RemoteAssessmentConfidence = 0.85
)

// affectedRatio pairs the fraction of sensitive-group and general-population
// members expected to be affected at a given pollution level.
type affectedRatio struct {
	sensitive float64
	general   float64
}

// affectedRatioFor buckets the affected-population ratios on the series'
// max AQI. The sensitive ratio floors at 0.15 even in good air; the general
// ratio floors at zero.
func affectedRatioFor(maxAQI int) affectedRatio {
	switch {
	case maxAQI > 150:
		return affectedRatio{sensitive: 0.95, general: 0.80}
	case maxAQI > 100:
		return affectedRatio{sensitive: 0.85, general: 0.30}
	case maxAQI > 50:
		return affectedRatio{sensitive: 0.40, general: 0.05}
	default:
		return affectedRatio{sensitive: 0.15, general: 0.0}
	}
}

// riskRule is one row of a demographic risk table: the first rule whose
// threshold is met determines the group's level.
type riskRule struct {
	onAvg     bool // threshold applies to avg AQI instead of max
	threshold int
	level     types.RiskLevel
}

// demographicRiskTables encode the per-group risk policy. The bucket edges
// are policy decisions, kept as an explicit lookup rather than inferred
// logic. Each table ends with the group's floor level.
var demographicRiskTables = map[types.DemographicGroup][]riskRule{
	types.GroupChildren: {
		{threshold: 150, level: types.RiskHigh},
		{threshold: 100, level: types.RiskModerate},
		{onAvg: true, threshold: 50, level: types.RiskLow},
	},
	types.GroupElderly: {
		{threshold: 150, level: types.RiskHigh},
		{threshold: 100, level: types.RiskModerate},
		{onAvg: true, threshold: 50, level: types.RiskLow},
	},
	types.GroupRespiratory: {
		{threshold: 100, level: types.RiskHigh},
		{threshold: 50, level: types.RiskModerate},
	},
	types.GroupCardiovascular: {
		{threshold: 150, level: types.RiskHigh},
		{threshold: 100, level: types.RiskModerate},
		{onAvg: true, threshold: 50, level: types.RiskLow},
	},
	types.GroupHealthyAdults: {
		{threshold: 200, level: types.RiskHigh},
		{threshold: 150, level: types.RiskModerate},
		{onAvg: true, threshold: 100, level: types.RiskLow},
	},
}

// demographicRiskFloors give the level assigned when no rule in the group's
// table matches. Respiratory patients never drop below low risk.
var demographicRiskFloors = map[types.DemographicGroup]types.RiskLevel{
	types.GroupChildren:       types.RiskMinimal,
	types.GroupElderly:        types.RiskMinimal,
	types.GroupRespiratory:    types.RiskLow,
	types.GroupCardiovascular: types.RiskMinimal,
	types.GroupHealthyAdults:  types.RiskMinimal,
}

// recommendationBuckets are mutually exclusive: only the single highest
// applicable max-AQI bucket contributes its strings.
var recommendationBuckets = []struct {
	threshold int
	messages  []string
}{
	{200, []string{
		"Everyone should avoid outdoor exertion.",
		"Sensitive groups should remain indoors with windows closed.",
		"Run air purifiers and consider N95 masks for unavoidable trips outside.",
	}},
	{150, []string{
		"Everyone should reduce prolonged outdoor exertion.",
		"Sensitive groups should avoid outdoor activity entirely.",
		"Keep windows closed during peak pollution hours.",
	}},
	{100, []string{
		"Sensitive groups should limit prolonged outdoor exertion.",
		"Consider moving strenuous activities to the cleanest forecast hours.",
	}},
	{50, []string{
		"Air quality is acceptable; unusually sensitive people should watch for symptoms.",
		"Favor the lowest-AQI hours for extended outdoor activity.",
	}},
	{0, []string{
		"Air quality is good; outdoor activity is unrestricted.",
		"No special precautions are needed.",
	}},
}

// AssessLocally computes a health impact assessment from a forecast series
// and population data using the bucketed ratio and risk tables. Pure
// computation; cannot fail.
func AssessLocally(series *types.ForecastSeries, pop types.PopulationData, now time.Time) *types.HealthImpactAssessment {
	maxAQI := series.Summary.MaxAQI
	avgAQI := series.Summary.AvgAQI

	ratio := affectedRatioFor(maxAQI)
	sensitive := int(math.Round(ratio.sensitive * pop.Density))
	general := int(math.Round(ratio.general * pop.Density))
	total := int(math.Round(math.Max(ratio.sensitive, ratio.general) * pop.Density))

	riskLevels := make(map[types.DemographicGroup]types.RiskLevel, len(types.AllDemographicGroups))
	for _, group := range types.AllDemographicGroups {
		riskLevels[group] = riskLevelFor(group, maxAQI, avgAQI)
	}

	return &types.HealthImpactAssessment{
		Timestamp:      now,
		ForecastPeriod: fmt.Sprintf("%dh", series.ForecastHours),
		AffectedPopulation: types.AffectedPopulation{
			SensitiveGroups:   sensitive,
			GeneralPopulation: general,
			Total:             total,
		},
		RiskLevels:      riskLevels,
		Recommendations: recommendationsFor(maxAQI),
		Confidence:      LocalAssessmentConfidence,
		Source:          types.SourceLocalSimulation,
	}
}

// riskLevelFor walks the group's threshold table and returns the first
// matching level, falling back to the group's floor.
func riskLevelFor(group types.DemographicGroup, maxAQI, avgAQI int) types.RiskLevel {
	for _, rule := range demographicRiskTables[group] {
		value := maxAQI
		if rule.onAvg {
			value = avgAQI
		}
		if value > rule.threshold {
			return rule.level
		}
	}
	return demographicRiskFloors[group]
}

// recommendationsFor selects the single highest applicable bucket.
func recommendationsFor(maxAQI int) []string {
	for _, bucket := range recommendationBuckets {
		if maxAQI > bucket.threshold {
			return bucket.messages
		}
	}
	// maxAQI <= 0 cannot occur for a clamped series; return the mildest
	// bucket as a safety net.
	return recommendationBuckets[len(recommendationBuckets)-1].messages
}
