// Package modelregistry is the read-only, process-wide table of model
// capabilities. It is constructed once at startup and passed as an explicit
// dependency to the scheduler and workers — no package-level global state.
package modelregistry

import (
	"fmt"
	"time"

	"github.com/nwwx/forecastpipe/internal/wxerrors"
)

// AccumulationKind describes how a model's precipitation field resets.
type AccumulationKind int

const (
	// AccumulationBucketReset means the native field resets to zero at
	// model-defined boundaries and successive buckets simply sum.
	AccumulationBucketReset AccumulationKind = iota
	// AccumulationInstantaneousRate means the field is a rate (e.g. prate)
	// requiring trapezoidal integration across forecast hours.
	AccumulationInstantaneousRate
)

// ModelConfig is one row of the model registry.
type ModelConfig struct {
	ID                  string
	Provider            string // "nomads-filter", "aws-open-data", "object-store"
	ResolutionDegrees    float64
	RunHours            []int // permitted UTC run hours
	MaxForecastHour     int
	ForecastIncrement   int
	// FineForecastIncrement, when nonzero, is the dispatch increment used
	// from fh 0 through FineForecastIncrementUntilHour; ForecastIncrement
	// takes over for every hour after that. Models with a single uniform
	// increment leave this zero.
	FineForecastIncrement          int
	FineForecastIncrementUntilHour int
	AccumulationBucketHours int // bucket width for AccumulationBucketReset models
	Accumulation        AccumulationKind
	Products            []string
	HasPrecipTypeMasks  bool
	HasUpperAir         bool
	ExcludedVariables   map[string]bool
	Enabled             bool
	DisplayColor        string
	FilterSupport       bool
	// FallbackProjection is used by the station sampler when a dataset for
	// this model carries no CF grid_mapping attribute.
	FallbackProjection *ProjectionSpec
	// CheckOffset is how long after a permitted run_time the scheduler
	// first probes the provider for that run's output: e.g. 3.5 hours after
	// each 6-hourly run_time for a global model, 45 minutes after each
	// hourly run_time for the convection-allowing model.
	CheckOffset time.Duration
	// AvailabilityDeadline bounds how long a run_time may wait before the
	// scheduler considers it unreachable and moves on to the next one.
	AvailabilityDeadline time.Duration
}

// ProjectionSpec declares a hard-coded CRS fallback as a declarative
// ModelConfig field, not a source-code fallback buried in the sampler.
type ProjectionSpec struct {
	Name               string // e.g. "lcc"
	StandardParallel1  float64
	StandardParallel2  float64
	CentralMeridian    float64
	LatitudeOfOrigin   float64
}

// ExcludesVariable reports whether this model prunes variableID from its
// render targets.
func (m ModelConfig) ExcludesVariable(variableID string) bool {
	return m.ExcludedVariables[variableID]
}

// PermitsRunHour reports whether hour is one of the model's run hours.
func (m ModelConfig) PermitsRunHour(hour int) bool {
	for _, h := range m.RunHours {
		if h == hour {
			return true
		}
	}
	return false
}

// ExpectedForecastHours returns the ordered list of forecast hours this
// model publishes: [0, inc, 2*inc, ..., max_fh] for a uniform increment, or
// a finer increment through FineForecastIncrementUntilHour followed by the
// coarser ForecastIncrement the rest of the way for a two-phase model.
func (m ModelConfig) ExpectedForecastHours() []int {
	if m.ForecastIncrement <= 0 {
		return nil
	}
	var hours []int
	if m.FineForecastIncrement > 0 && m.FineForecastIncrementUntilHour > 0 {
		until := m.FineForecastIncrementUntilHour
		if until > m.MaxForecastHour {
			until = m.MaxForecastHour
		}
		for h := 0; h <= until; h += m.FineForecastIncrement {
			hours = append(hours, h)
		}
		for h := m.FineForecastIncrementUntilHour + m.ForecastIncrement; h <= m.MaxForecastHour; h += m.ForecastIncrement {
			hours = append(hours, h)
		}
		return hours
	}
	for h := 0; h <= m.MaxForecastHour; h += m.ForecastIncrement {
		hours = append(hours, h)
	}
	return hours
}

// Registry is the immutable, process-wide model table.
type Registry struct {
	models map[string]ModelConfig
	order  []string
}

// New constructs the registry used in production: one global 0.25°
// deterministic model, one AI-driven global model, and one convection
// allowing regional model.
func New() *Registry {
	r := &Registry{models: make(map[string]ModelConfig)}

	r.add(ModelConfig{
		ID:                  "gfs025",
		Provider:            "nomads-filter",
		ResolutionDegrees:   0.25,
		RunHours:            []int{0, 6, 12, 18},
		MaxForecastHour:     384,
		ForecastIncrement:   6,
		FineForecastIncrement:          1,
		FineForecastIncrementUntilHour: 120,
		Accumulation:        AccumulationBucketReset,
		AccumulationBucketHours: 6,
		Products:            []string{"sfc", "pres"},
		HasPrecipTypeMasks:  false,
		HasUpperAir:         true,
		ExcludedVariables:   map[string]bool{"snow_total": true},
		Enabled:             true,
		DisplayColor:        "#2E86AB",
		FilterSupport:       true,
		CheckOffset:          3*time.Hour + 30*time.Minute,
		AvailabilityDeadline: 5 * time.Hour,
	})

	r.add(ModelConfig{
		ID:                  "graphwx",
		Provider:            "aws-open-data",
		ResolutionDegrees:   0.25,
		RunHours:            []int{0, 6, 12, 18},
		MaxForecastHour:     240,
		ForecastIncrement:   6,
		Accumulation:        AccumulationBucketReset,
		AccumulationBucketHours: 6,
		Products:            []string{"sfc"},
		HasPrecipTypeMasks:  false,
		HasUpperAir:         false,
		ExcludedVariables: map[string]bool{
			"snow_total":            true,
			"radar_reflectivity":    true,
			"level850_temp_wind_mslp": true,
		},
		Enabled:       true,
		DisplayColor:  "#A23B72",
		FilterSupport: false,
		CheckOffset:          3*time.Hour + 30*time.Minute,
		AvailabilityDeadline: 5 * time.Hour,
	})

	r.add(ModelConfig{
		ID:                  "nwpacific3km",
		Provider:            "object-store",
		ResolutionDegrees:   0.03,
		RunHours:            []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23},
		MaxForecastHour:     48,
		ForecastIncrement:   1,
		Accumulation:        AccumulationInstantaneousRate,
		Products:            []string{"sfc"},
		HasPrecipTypeMasks:  true,
		HasUpperAir:         true,
		ExcludedVariables:   map[string]bool{},
		Enabled:             true,
		DisplayColor:        "#F18F01",
		FilterSupport:       false,
		FallbackProjection: &ProjectionSpec{
			Name:              "lcc",
			StandardParallel1: 38.5,
			StandardParallel2: 38.5,
			CentralMeridian:   -122.5,
			LatitudeOfOrigin:  38.5,
		},
		CheckOffset:          45 * time.Minute,
		AvailabilityDeadline: 2 * time.Hour,
	})

	return r
}

func (r *Registry) add(m ModelConfig) {
	r.models[m.ID] = m
	r.order = append(r.order, m.ID)
}

// Get looks up a model by id. Unknown ids fail with a ConfigError.
func (r *Registry) Get(modelID string) (ModelConfig, error) {
	m, ok := r.models[modelID]
	if !ok {
		return ModelConfig{}, wxerrors.Config(fmt.Errorf("unknown model %q", modelID))
	}
	return m, nil
}

// ListEnabled returns every enabled model, in registration order.
func (r *Registry) ListEnabled() []ModelConfig {
	var out []ModelConfig
	for _, id := range r.order {
		if m := r.models[id]; m.Enabled {
			out = append(out, m)
		}
	}
	return out
}
