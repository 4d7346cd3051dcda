package types

// ForecastSource identifies the provenance of a forecast or assessment:
// the hosted Azure ML model or the local simulation engine. Degraded
// provenance is visible to clients but never blocks output.
type ForecastSource string

const (
	SourceAzureML         ForecastSource = "azure_ml"
	SourceLocalSimulation ForecastSource = "local_simulation"
)

// TrendLabel classifies the net direction of a forecast series.
type TrendLabel string

const (
	TrendImproving     TrendLabel = "improving"
	TrendStable        TrendLabel = "stable"
	TrendDeteriorating TrendLabel = "deteriorating"
)

// TrendDirection describes the movement of a single pollutant across the
// forecast horizon.
type TrendDirection string

const (
	DirectionIncreasing TrendDirection = "increasing"
	DirectionDecreasing TrendDirection = "decreasing"
	DirectionStable     TrendDirection = "stable"
)

// RiskLevel is a qualitative health-risk bucket.
type RiskLevel string

const (
	RiskMinimal  RiskLevel = "minimal"
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// InsightLevel tags the severity of a generated insight.
type InsightLevel string

const (
	InsightInfo     InsightLevel = "info"
	InsightWarning  InsightLevel = "warning"
	InsightPositive InsightLevel = "positive"
)

// DemographicGroup identifies a population segment in a health impact
// assessment. The set is fixed; risk thresholds per group are policy
// constants, not derived quantities.
type DemographicGroup string

const (
	GroupChildren       DemographicGroup = "children"
	GroupElderly        DemographicGroup = "elderly"
	GroupRespiratory    DemographicGroup = "respiratory_conditions"
	GroupCardiovascular DemographicGroup = "cardiovascular_conditions"
	GroupHealthyAdults  DemographicGroup = "healthy_adults"
)

// AllDemographicGroups lists every group in a stable order, used when
// building risk-level maps so output is complete and deterministic.
var AllDemographicGroups = []DemographicGroup{
	GroupChildren,
	GroupElderly,
	GroupRespiratory,
	GroupCardiovascular,
	GroupHealthyAdults,
}

// ModelKind selects which hosted model an inference call targets.
type ModelKind string

const (
	ModelAQIForecast  ModelKind = "aqi-forecast"
	ModelHealthImpact ModelKind = "health-impact"
)
