// Package types defines the domain model shared across the AirSight engine:
// observations, location context, forecast series, health impact assessments,
// the typed error taxonomy, and context helpers. All entities are value
// objects created fresh per request and never mutated after construction.
package types

import "time"

// Location is a geographic point in decimal degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PollutantReading is a single measured pollutant concentration.
type PollutantReading struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Observation is the current measured air-quality state for a location.
// It is produced by an external collector and is a read-only input to the
// forecast engine.
type Observation struct {
	AQI        int                         `json:"aqi"`
	Location   Location                    `json:"location"`
	Timestamp  time.Time                   `json:"timestamp,omitzero"`
	Pollutants map[string]PollutantReading `json:"pollutants,omitempty"`
}

// Validate checks that the observation carries the fields the simulator
// requires. A malformed observation is the one input error that propagates
// to callers: there is no fallback below the local simulator.
func (o *Observation) Validate() error {
	if o == nil {
		return NewAppError(ErrCodeValidationMissingField, "observation is required", nil)
	}
	if o.AQI <= 0 {
		return NewAppError(ErrCodeValidationMissingField, "observation.aqi must be a positive integer", nil)
	}
	if o.Location.Lat < -90 || o.Location.Lat > 90 {
		return NewAppError(ErrCodeValidationInvalidLat, "observation.location.lat must be within [-90, 90]", nil)
	}
	if o.Location.Lon < -180 || o.Location.Lon > 180 {
		return NewAppError(ErrCodeValidationInvalidLon, "observation.location.lon must be within [-180, 180]", nil)
	}
	return nil
}

// PopulationInfo carries coarse population descriptors for an area.
type PopulationInfo struct {
	// Density is people per square kilometre.
	Density float64 `json:"density"`
}

// LandCoverInfo carries coarse land-cover descriptors for an area.
type LandCoverInfo struct {
	// BuiltCoverRatio is the impervious-surface coverage fraction in [0, 1].
	BuiltCoverRatio float64 `json:"built_cover_ratio"`
	// Vegetation is a qualitative tag: "none", "sparse", "moderate",
	// "high" or "dense".
	Vegetation string `json:"vegetation,omitempty"`
}

// LocationContext describes the area around an observation. Every field is
// optional: a nil context, or nil sub-structs, contribute nothing to the
// simulation rather than causing an error.
type LocationContext struct {
	Population *PopulationInfo `json:"population,omitempty"`
	LandCover  *LandCoverInfo  `json:"land_cover,omitempty"`
}

// PopulationDensity returns the population density, or 0 when the context
// or its population block is absent.
func (c *LocationContext) PopulationDensity() float64 {
	if c == nil || c.Population == nil {
		return 0
	}
	return c.Population.Density
}

// PopulationData is the population input to a health impact assessment.
type PopulationData struct {
	Density float64 `json:"density"`
}
