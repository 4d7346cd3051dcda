// Package forecasts implements the AirSight forecast engine: the local
// hourly simulator, summary statistics and insight generation, population
// health impact estimation, and the orchestrating service that prefers the
// hosted Azure ML models and falls back to local computation whenever the
// remote path is unavailable.
package forecasts

import (
	"math"
	"math/rand/v2"
	"time"

	"airsight/internal/types"
)

// Confidence step schedule over the hour offset. Reliability drops in
// discrete, testable buckets rather than a continuous decay curve.
const (
	ConfidenceShort    = 0.90 // h <= 3
	ConfidenceNear     = 0.85 // h in (3, 6]
	ConfidenceMid      = 0.75 // h in (6, 12]
	ConfidenceDay      = 0.65 // h in (12, 24]
	ConfidenceExtended = 0.50 // h > 24
)

// LocalSeriesConfidence is the overall confidence attached to a series
// produced by the local simulator.
const LocalSeriesConfidence = 0.75

// noiseAmplitude bounds the zero-mean random perturbation applied once per
// forecast hour, in AQI units.
const noiseAmplitude = 6.0

// Trend multiplier schedule: pollutant accumulation for the first few
// hours, then dispersion. The multiplier is a function of the hour offset,
// not the hour of day; it composes multiplicatively on top of the additive
// factor sum, preserving the original model's formula shape.
const (
	accumulationHours = 6
	accumulationRate  = 0.015
	dispersionRate    = 0.01
	dispersionFloor   = 0.90
)

// pollutantPeriods gives each pollutant its own variation period (hours) so
// per-pollutant forecasts are not perfectly correlated.
var pollutantPeriods = map[string]float64{
	"pm25": 10,
	"pm10": 14,
	"no2":  8,
	"o3":   12,
	"so2":  16,
	"co":   20,
}

// defaultPollutantPeriod applies to pollutants without a dedicated entry.
const defaultPollutantPeriod = 12.0

// pollutantTrendDeadBand is the multiplier distance from 1.0 inside which a
// pollutant's trend is labeled stable.
const pollutantTrendDeadBand = 0.01

// Simulator is the local forecast engine. It is always available, has no
// network dependencies, and cannot fail on validated input: structure is
// deterministic, with one bounded random perturbation per hour drawn from
// the injected source.
type Simulator struct {
	rng *rand.Rand
}

// NewSimulator creates a Simulator seeded from the wall clock.
func NewSimulator() *Simulator {
	return NewSimulatorWithRand(rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)))
}

// NewSimulatorWithRand creates a Simulator with an injected random source.
// Tests supply a fixed seed to assert exact numeric output.
func NewSimulatorWithRand(rng *rand.Rand) *Simulator {
	return &Simulator{rng: rng}
}

// Simulate produces an hourly forecast series from the current observation
// and optional location context. The returned series always has exactly
// horizon points, each with AQI clamped to [types.MinAQI, types.MaxAQI].
// Summary and insights are attached by the caller.
func (s *Simulator) Simulate(obs *types.Observation, locCtx *types.LocationContext, horizon int, generatedAt time.Time) types.ForecastSeries {
	points := make([]types.ForecastPoint, 0, horizon)

	locationFactor := locationContribution(locCtx)

	for h := 1; h <= horizon; h++ {
		forecastTime := generatedAt.Add(time.Duration(h) * time.Hour)

		timeFactor := timeOfDayContribution(forecastTime.Hour())
		envFactor := environmentalContribution(h)
		seasonFactor := seasonalContribution(forecastTime.Month(), obs.Location.Lat)
		noise := (s.rng.Float64()*2 - 1) * noiseAmplitude

		raw := float64(obs.AQI) + timeFactor + envFactor + locationFactor + seasonFactor + noise
		aqi := clampAQI(int(math.Round(raw * trendMultiplier(h))))

		points = append(points, types.ForecastPoint{
			Time:       forecastTime,
			Hour:       forecastTime.Hour(),
			AQI:        aqi,
			Category:   types.CategoryForAQI(aqi),
			Pollutants: pollutantForecasts(obs.Pollutants, h),
			Confidence: ConfidenceForHour(h),
			Factors: types.FactorBreakdown{
				TimeOfDay:     round1(timeFactor),
				Environmental: round1(envFactor),
				Location:      round1(locationFactor),
				Seasonal:      round1(seasonFactor),
			},
		})
	}

	return types.ForecastSeries{
		Location:      obs.Location,
		Timestamp:     generatedAt,
		ForecastHours: horizon,
		Source:        types.SourceLocalSimulation,
		Confidence:    LocalSeriesConfidence,
		HourlyData:    points,
	}
}

// ConfidenceForHour returns the step-schedule confidence for an hour offset.
func ConfidenceForHour(h int) float64 {
	switch {
	case h <= 3:
		return ConfidenceShort
	case h <= 6:
		return ConfidenceNear
	case h <= 12:
		return ConfidenceMid
	case h <= 24:
		return ConfidenceDay
	default:
		return ConfidenceExtended
	}
}

// timeOfDayContribution models diurnal emission patterns as a function of
// the hour of day only: commute peaks, a photochemical afternoon bump, and
// a night-time lull.
func timeOfDayContribution(hour int) float64 {
	switch {
	case hour >= 7 && hour <= 9:
		return 15 // morning rush
	case hour >= 17 && hour <= 19:
		return 15 // evening rush
	case hour >= 12 && hour <= 16:
		return 8 // photochemical activity
	case hour >= 23 || hour <= 5:
		return -10 // night lull
	default:
		return 0
	}
}

// environmentalContribution is a smooth, bounded function of the hour
// offset combining out-of-phase cycles standing in for wind, pressure and
// humidity swings. Amplitude sum is 12.5 AQI units.
func environmentalContribution(h int) float64 {
	t := float64(h)
	return 6*math.Sin(2*math.Pi*t/24) +
		4*math.Sin(2*math.Pi*t/8+1.3) +
		2.5*math.Sin(2*math.Pi*t/6+2.1)
}

// locationContribution derives a constant offset from the area descriptors:
// denser population and more impervious surface push pollution up, heavy
// vegetation pulls it down. A nil context contributes nothing.
func locationContribution(locCtx *types.LocationContext) float64 {
	if locCtx == nil {
		return 0
	}

	var contribution float64

	switch density := locCtx.PopulationDensity(); {
	case density > 10000:
		contribution += 12
	case density > 5000:
		contribution += 8
	case density > 2500:
		contribution += 4
	case density > 1000:
		contribution += 2
	}

	if lc := locCtx.LandCover; lc != nil {
		contribution += lc.BuiltCoverRatio * 10

		switch lc.Vegetation {
		case "high", "dense":
			contribution -= 6
		case "moderate":
			contribution -= 2
		}
	}

	return contribution
}

// seasonalContribution adds the hemisphere-appropriate seasonal load:
// winter heating and summer photochemical smog both worsen air quality.
// South of the equator the seasons flip.
func seasonalContribution(month time.Month, lat float64) float64 {
	winter := month == time.December || month == time.January || month == time.February
	summer := month == time.June || month == time.July || month == time.August

	if lat < 0 {
		winter, summer = summer, winter
	}

	switch {
	case winter:
		return 8 // heating season
	case summer:
		return 6 // photochemical season
	default:
		return 0
	}
}

// trendMultiplier models short-term pollutant build-up followed by
// dispersion: monotonically increasing through the accumulation window,
// monotonically decreasing (floored) afterwards.
func trendMultiplier(h int) float64 {
	if h <= accumulationHours {
		return 1 + accumulationRate*float64(h)
	}
	peak := 1 + accumulationRate*float64(accumulationHours)
	return math.Max(dispersionFloor, peak-dispersionRate*float64(h-accumulationHours))
}

// pollutantForecasts projects each observed pollutant forward with its own
// periodic multiplier so species decorrelate over the horizon.
func pollutantForecasts(readings map[string]types.PollutantReading, h int) map[string]types.PollutantForecast {
	if len(readings) == 0 {
		return nil
	}

	out := make(map[string]types.PollutantForecast, len(readings))
	for name, reading := range readings {
		period, ok := pollutantPeriods[name]
		if !ok {
			period = defaultPollutantPeriod
		}

		mult := 1 + 0.08*math.Sin(2*math.Pi*float64(h)/period)
		value := math.Max(0, reading.Value*mult)

		out[name] = types.PollutantForecast{
			Value:      math.Round(value*100) / 100,
			Unit:       reading.Unit,
			Trend:      pollutantTrend(mult),
			Confidence: ConfidenceForHour(h),
		}
	}
	return out
}

// pollutantTrend labels a pollutant's direction from its multiplier.
func pollutantTrend(mult float64) types.TrendDirection {
	switch {
	case mult > 1+pollutantTrendDeadBand:
		return types.DirectionIncreasing
	case mult < 1-pollutantTrendDeadBand:
		return types.DirectionDecreasing
	default:
		return types.DirectionStable
	}
}

// clampAQI bounds a predicted value to the documented AQI range. Applied
// unconditionally, including after noise injection.
func clampAQI(aqi int) int {
	if aqi < types.MinAQI {
		return types.MinAQI
	}
	if aqi > types.MaxAQI {
		return types.MaxAQI
	}
	return aqi
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
