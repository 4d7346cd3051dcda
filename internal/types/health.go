package types

import "time"

// AffectedPopulation holds estimated headcounts of people impacted by the
// forecast air quality.
type AffectedPopulation struct {
	SensitiveGroups   int `json:"sensitive_groups"`
	GeneralPopulation int `json:"general_population"`
	Total             int `json:"total"`
}

// HealthImpactAssessment is the population health risk estimate derived from
// a forecast series. It is computed on demand and never persisted by the
// engine; persistence, if any, belongs to an external collaborator.
type HealthImpactAssessment struct {
	Timestamp          time.Time                      `json:"timestamp"`
	ForecastPeriod     string                         `json:"forecast_period"`
	AffectedPopulation AffectedPopulation             `json:"affected_population"`
	RiskLevels         map[DemographicGroup]RiskLevel `json:"risk_levels"`
	Recommendations    []string                       `json:"recommendations"`
	Confidence         float64                        `json:"confidence"`
	Source             ForecastSource                 `json:"source"`
}
