package griddata

import "testing"

func TestVariableAtIsRowMajor(t *testing.T) {
	v := Variable{Name: "t2m", Nx: 3, Ny: 2, Vals: []float64{1, 2, 3, 4, 5, 6}}
	if got := v.At(0, 0); got != 1 {
		t.Errorf("At(0,0) = %v, want 1", got)
	}
	if got := v.At(2, 1); got != 6 {
		t.Errorf("At(2,1) = %v, want 6", got)
	}
	if got := v.At(1, 1); got != 5 {
		t.Errorf("At(1,1) = %v, want 5", got)
	}
}

func TestHasFieldAndRequireFields(t *testing.T) {
	d := New("gfs025", 0, 6, CoordRegularLatLon)
	d.Vars["t2m"] = &Variable{Name: "t2m"}

	if !d.HasField("t2m") {
		t.Error("expected t2m present")
	}
	if d.HasField("tp") {
		t.Error("expected tp absent")
	}
	if err := d.RequireFields([]string{"t2m"}); err != nil {
		t.Errorf("RequireFields: %v", err)
	}
	if err := d.RequireFields([]string{"t2m", "tp"}); err == nil {
		t.Error("expected an error for the missing tp field")
	}
}

func TestNormalizeLongitude(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{-180, -180},
		{200, -160},
		{-200, 160},
		{360, 0},
	}
	for _, c := range cases {
		if got := NormalizeLongitude(c.in); got != c.want {
			t.Errorf("NormalizeLongitude(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNormalizeLongitudes1D(t *testing.T) {
	lons := []float64{200, 0, -200}
	NormalizeLongitudes1D(lons)
	want := []float64{-160, 0, 160}
	for i := range want {
		if lons[i] != want[i] {
			t.Errorf("lons[%d] = %v, want %v", i, lons[i], want[i])
		}
	}
}

func TestReleaseDropsBackingStorage(t *testing.T) {
	d := New("gfs025", 0, 6, CoordRegularLatLon)
	d.Lat1D = []float64{1, 2}
	d.Lon1D = []float64{3, 4}
	d.Vars["t2m"] = &Variable{Name: "t2m"}

	d.Release()

	if d.Lat1D != nil || d.Lon1D != nil || d.Vars != nil {
		t.Error("Release should drop all backing storage")
	}
}
