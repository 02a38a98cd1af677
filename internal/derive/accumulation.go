// Package derive implements the pure-ish transformations over one or more
// per-forecast-hour GridDatasets that make up the derived-field layer:
// precipitation accumulation, snowfall equivalent, and grid alignment for
// composite variables.
package derive

import (
	"fmt"
	"sync"

	"github.com/nwwx/forecastpipe/internal/griddata"
	"github.com/nwwx/forecastpipe/internal/modelregistry"
)

// PrecipSample is one forecast hour's raw precipitation field, shaped by
// the model's accumulation kind: a bucket-reset model supplies TpMM, a
// rate model supplies PrateKgM2S.
type PrecipSample struct {
	ForecastHour int
	TpMM         *griddata.Variable
	PrateKgM2S   *griddata.Variable
}

type seriesKey struct {
	ModelID string
	RunUnix int64
}

// Accumulator caches per-bucket partial sums across successive forecast
// hours of the same run, so totaling precipitation through fh=H costs
// O(H) rather than O(H^2). Callers must supply samples in ascending
// forecast-hour order for a given (model, run) — the scheduler's
// ascending-fh dispatch order guarantees this in production use.
type Accumulator struct {
	mu        sync.Mutex
	precip    map[seriesKey]map[int][]float64
	snow      map[seriesKey]map[int][]float64
	prevRate  map[seriesKey]PrecipSample
	hasPrev   map[seriesKey]bool
}

// NewAccumulator returns an empty, run-scoped accumulation cache. One
// instance is shared across all workers processing the same run so a
// later forecast hour reuses the earlier ones' partial sums.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		precip:   make(map[seriesKey]map[int][]float64),
		snow:     make(map[seriesKey]map[int][]float64),
		prevRate: make(map[seriesKey]PrecipSample),
		hasPrev:  make(map[seriesKey]bool),
	}
}

// TotalPrecipMM returns tp_total through sample.ForecastHour, in
// millimeters, extending the cached series by one bucket.
func (a *Accumulator) TotalPrecipMM(model modelregistry.ModelConfig, runUnix int64, sample PrecipSample) ([]float64, error) {
	key := seriesKey{ModelID: model.ID, RunUnix: runUnix}

	a.mu.Lock()
	defer a.mu.Unlock()

	series := a.seriesFor(a.precip, key)
	if total, ok := series[sample.ForecastHour]; ok {
		return total, nil
	}

	increment, err := a.precipIncrement(key, model, sample)
	if err != nil {
		return nil, err
	}

	prevTotal := previousBucketTotal(series, sample.ForecastHour, model)
	total := addGrids(prevTotal, increment)
	series[sample.ForecastHour] = total
	return total, nil
}

// precipIncrement computes the mm contributed by this single sample: the
// bucket's own accumulated total for a reset model, or the trapezoidal
// integral against the previous sample for a rate model.
func (a *Accumulator) precipIncrement(key seriesKey, model modelregistry.ModelConfig, sample PrecipSample) ([]float64, error) {
	switch model.Accumulation {
	case modelregistry.AccumulationBucketReset:
		if sample.TpMM == nil {
			return nil, fmt.Errorf("fh=%d: bucket-reset model %q requires tp field", sample.ForecastHour, model.ID)
		}
		return append([]float64(nil), sample.TpMM.Vals...), nil

	case modelregistry.AccumulationInstantaneousRate:
		if sample.PrateKgM2S == nil {
			return nil, fmt.Errorf("fh=%d: rate model %q requires prate field", sample.ForecastHour, model.ID)
		}
		if !a.hasPrev[key] || sample.ForecastHour == 0 {
			a.prevRate[key] = sample
			a.hasPrev[key] = true
			return make([]float64, len(sample.PrateKgM2S.Vals)), nil
		}
		prevSample := a.prevRate[key]
		dtHours := float64(sample.ForecastHour - prevSample.ForecastHour)
		inc := trapezoidalMM(prevSample.PrateKgM2S.Vals, sample.PrateKgM2S.Vals, dtHours)
		a.prevRate[key] = sample
		return inc, nil

	default:
		return nil, fmt.Errorf("fh=%d: model %q has unrecognized accumulation kind", sample.ForecastHour, model.ID)
	}
}

func (a *Accumulator) seriesFor(store map[seriesKey]map[int][]float64, key seriesKey) map[int][]float64 {
	s, ok := store[key]
	if !ok {
		s = make(map[int][]float64)
		store[key] = s
	}
	return s
}

// previousBucketTotal finds the cumulative total recorded for the bucket
// immediately preceding fh, or nil if fh is the first bucket of the run.
func previousBucketTotal(series map[int][]float64, fh int, model modelregistry.ModelConfig) []float64 {
	if fh == 0 {
		return nil
	}
	step := model.ForecastIncrement
	if model.Accumulation == modelregistry.AccumulationBucketReset && model.AccumulationBucketHours > 0 {
		step = model.AccumulationBucketHours
	}
	if step <= 0 {
		return nil
	}
	prevFH := fh - step
	if prevFH < 0 {
		return nil
	}
	return series[prevFH]
}

// trapezoidalMM integrates a precipitation rate (kg/(m^2·s), numerically
// identical to mm/s of liquid water equivalent) between two samples dtHours
// apart using the trapezoidal rule.
func trapezoidalMM(prevRate, curRate []float64, dtHours float64) []float64 {
	out := make([]float64, len(curRate))
	dtSeconds := dtHours * 3600
	for i := range out {
		out[i] = (prevRate[i] + curRate[i]) / 2 * dtSeconds
	}
	return out
}

func addGrids(prev, inc []float64) []float64 {
	if prev == nil {
		return inc
	}
	out := make([]float64, len(prev))
	for i := range out {
		out[i] = prev[i] + inc[i]
	}
	return out
}

// MMToInches converts a millimeter grid to inches for the final write step.
func MMToInches(mm []float64) []float64 {
	out := make([]float64, len(mm))
	for i, v := range mm {
		out[i] = v / 25.4
	}
	return out
}
