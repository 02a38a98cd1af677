package derive

import (
	"math"
	"testing"

	"github.com/nwwx/forecastpipe/internal/griddata"
	"github.com/nwwx/forecastpipe/internal/modelregistry"
)

func snowModel() modelregistry.ModelConfig {
	m := bucketResetModel()
	m.HasPrecipTypeMasks = true
	return m
}

func TestTotalSnowLiquidMMAccumulatesAcrossBuckets(t *testing.T) {
	model := snowModel()
	acc := NewAccumulator()

	fh6, err := acc.TotalSnowLiquidMM(model, 99, SnowSample{
		ForecastHour: 6,
		TpMM:         &griddata.Variable{Vals: []float64{10, 10}, Nx: 2, Ny: 1},
		Csnow:        &griddata.Variable{Vals: []float64{1, 0}, Nx: 2, Ny: 1},
	})
	if err != nil {
		t.Fatalf("fh6: %v", err)
	}
	if fh6[0] != 10 || fh6[1] != 0 {
		t.Fatalf("fh6 = %v, want [10 0]", fh6)
	}

	fh12, err := acc.TotalSnowLiquidMM(model, 99, SnowSample{
		ForecastHour: 12,
		TpMM:         &griddata.Variable{Vals: []float64{4, 4}, Nx: 2, Ny: 1},
		Csnow:        &griddata.Variable{Vals: []float64{0.5, 1}, Nx: 2, Ny: 1},
	})
	if err != nil {
		t.Fatalf("fh12: %v", err)
	}
	if fh12[0] != 12 || fh12[1] != 4 {
		t.Fatalf("fh12 cumulative total = %v, want [12 4]", fh12)
	}
}

func TestTotalSnowLiquidMMRequiresBothFields(t *testing.T) {
	model := snowModel()
	acc := NewAccumulator()
	_, err := acc.TotalSnowLiquidMM(model, 1, SnowSample{ForecastHour: 0, TpMM: &griddata.Variable{Vals: []float64{1}}})
	if err == nil {
		t.Fatal("expected an error when csnow is missing")
	}
}

func TestSnowDepthMMAppliesTenToOneRatio(t *testing.T) {
	depth := SnowDepthMM([]float64{1, 2.5, 0})
	want := []float64{10, 25, 0}
	for i := range want {
		if math.Abs(depth[i]-want[i]) > 1e-9 {
			t.Fatalf("SnowDepthMM(%v)[%d] = %v, want %v", depth, i, depth[i], want[i])
		}
	}
}
