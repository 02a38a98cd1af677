package derive

import (
	"fmt"

	"github.com/nwwx/forecastpipe/internal/griddata"
	"github.com/nwwx/forecastpipe/internal/modelregistry"
)

// SnowSample is one forecast hour's precipitation-type inputs: the bucket's
// accumulated liquid-equivalent precipitation and the categorical snow
// mask for the same bucket.
type SnowSample struct {
	ForecastHour int
	TpMM         *griddata.Variable
	Csnow        *griddata.Variable
}

// TotalSnowLiquidMM returns the cumulative liquid-equivalent snowfall
// through sample.ForecastHour: sum over buckets of tp_mm * csnow_fraction.
// Only meaningful for models with has_precip_type_masks=true; callers
// outside the variable registry's gate should not reach this — a model
// lacking the mask has the variable pruned entirely, with no fallback.
func (a *Accumulator) TotalSnowLiquidMM(model modelregistry.ModelConfig, runUnix int64, sample SnowSample) ([]float64, error) {
	if !model.HasPrecipTypeMasks {
		return nil, fmt.Errorf("model %q has no categorical precipitation-type mask", model.ID)
	}
	if sample.TpMM == nil || sample.Csnow == nil {
		return nil, fmt.Errorf("fh=%d: snowfall requires both tp and csnow fields", sample.ForecastHour)
	}

	key := seriesKey{ModelID: model.ID, RunUnix: runUnix}

	a.mu.Lock()
	defer a.mu.Unlock()

	series := a.seriesFor(a.snow, key)
	if total, ok := series[sample.ForecastHour]; ok {
		return total, nil
	}

	fraction := csnowFraction(sample.Csnow.Vals)
	increment := make([]float64, len(sample.TpMM.Vals))
	for i := range increment {
		increment[i] = sample.TpMM.Vals[i] * fraction[i]
	}

	prevTotal := previousBucketTotal(series, sample.ForecastHour, model)
	total := addGrids(prevTotal, increment)
	series[sample.ForecastHour] = total
	return total, nil
}

// csnowFraction normalizes a categorical snow mask onto [0, 1]. The source
// field is sometimes a 0..1 fraction and sometimes a 0..100 percentage
// with no reliable units attribute after GRIB decode, so this applies a
// heuristic: if any value exceeds 1.5, treat the whole field as a
// percentage.
func csnowFraction(vals []float64) []float64 {
	isPercent := false
	for _, v := range vals {
		if v > 1.5 {
			isPercent = true
			break
		}
	}

	out := make([]float64, len(vals))
	for i, v := range vals {
		f := v
		if isPercent {
			f = v / 100
		}
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		out[i] = f
	}
	return out
}

// SnowDepthMM converts a cumulative liquid-equivalent snow total to snow
// depth using the default 10:1 ratio.
func SnowDepthMM(liquidMM []float64) []float64 {
	out := make([]float64, len(liquidMM))
	for i, v := range liquidMM {
		out[i] = v * 10
	}
	return out
}
