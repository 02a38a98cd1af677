package mapgen

import (
	"testing"
	"time"
)

func TestFilenameRoundTrip(t *testing.T) {
	runTime := time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC)
	cases := []struct {
		model, variable string
		fh              int
	}{
		{"gfs025", "temp_2m", 0},
		{"nwpacific3km", "level850_temp_wind_mslp", 48},
		{"graphwx", "precip_total", 240},
	}

	for _, c := range cases {
		name := Filename(c.model, runTime, c.variable, c.fh)
		key, err := ParseFilename(name)
		if err != nil {
			t.Fatalf("ParseFilename(%q): %v", name, err)
		}
		if key.ModelID != c.model || key.VariableID != c.variable || key.ForecastHour != c.fh || !key.RunTime.Equal(runTime) {
			t.Fatalf("round trip mismatch for %q: got %+v", name, key)
		}
	}
}

func TestColorScaleBucketsMonotonically(t *testing.T) {
	scale, ok := ScaleFor("temp_2m")
	if !ok {
		t.Fatal("expected temp_2m to have a registered scale")
	}
	below := scale.ColorFor(-50)
	if below != scale.Below {
		t.Fatalf("value below lowest level should use Below color")
	}
	above := scale.ColorFor(500)
	if above != scale.Above {
		t.Fatalf("value above highest level should use Above color")
	}
}

func TestScaleForUnknownVariable(t *testing.T) {
	if _, ok := ScaleFor("not_a_real_variable"); ok {
		t.Fatal("expected ok=false for unregistered variable")
	}
}
