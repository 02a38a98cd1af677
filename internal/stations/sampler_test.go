package stations

import (
	"testing"

	"github.com/nwwx/forecastpipe/internal/griddata"
	"github.com/nwwx/forecastpipe/internal/modelregistry"
)

func regularDataset() *griddata.Dataset {
	ds := griddata.New("test", 0, 0, griddata.CoordRegularLatLon)
	ds.Lon1D = []float64{-125, -120, -115}
	ds.Lat1D = []float64{50, 45, 40}
	ds.Nx, ds.Ny = 3, 3
	ds.Vars["tmp2m"] = &griddata.Variable{
		Name: "tmp2m", Nx: 3, Ny: 3,
		Vals: []float64{
			1, 2, 3,
			4, 5, 6,
			7, 8, 9,
		},
	}
	return ds
}

func TestSampleRegularLatLonNearest(t *testing.T) {
	s := NewSampler()
	ds := regularDataset()

	v, ok := s.Sample(ds, "tmp2m", modelregistry.ModelConfig{}, Station{Lon: -120.1, Lat: 44.9})
	if !ok {
		t.Fatal("expected sample ok")
	}
	if v != 5 {
		t.Fatalf("nearest value = %v, want 5 (center cell)", v)
	}
}

func TestSampleMissingVariable(t *testing.T) {
	s := NewSampler()
	ds := regularDataset()
	if _, ok := s.Sample(ds, "not_present", modelregistry.ModelConfig{}, Station{Lon: -120, Lat: 45}); ok {
		t.Fatal("expected ok=false for missing variable")
	}
}

func TestCurvilinearNearest(t *testing.T) {
	ds := griddata.New("test", 0, 0, griddata.CoordCurvilinear)
	ds.Nx, ds.Ny = 2, 2
	ds.Lon2D = []float64{-124, -122, -124, -122}
	ds.Lat2D = []float64{48, 48, 46, 46}
	ds.Vars["tmp2m"] = &griddata.Variable{Nx: 2, Ny: 2, Vals: []float64{10, 20, 30, 40}}

	s := NewSampler()
	v, ok := s.Sample(ds, "tmp2m", modelregistry.ModelConfig{}, Station{Lon: -122.1, Lat: 45.9})
	if !ok {
		t.Fatal("expected sample ok")
	}
	if v != 40 {
		t.Fatalf("nearest curvilinear value = %v, want 40 (bottom-right)", v)
	}
}

func TestDeclutterForcesAlwaysInclude(t *testing.T) {
	candidates := []LabeledStation{
		{Station: Station{ID: "a", Lon: -122, Lat: 45, Weight: 1, AlwaysInclude: true}, Value: 10},
		{Station: Station{ID: "b", Lon: -122.001, Lat: 45.001, Weight: 5}, Value: 20},
	}
	policy := OverlayPolicy{Enabled: true, MinPixelSpacing: 40}

	out := Declutter(candidates, policy, 800, 600, -125, 40, -120, 50)
	var sawA bool
	for _, c := range out {
		if c.Station.ID == "a" {
			sawA = true
		}
	}
	if !sawA {
		t.Fatal("always_include station must survive decluttering")
	}
}

func TestDeclutterDisabledPolicyReturnsNothing(t *testing.T) {
	out := Declutter([]LabeledStation{{Station: Station{ID: "a"}}}, DefaultOverlayPolicy(), 800, 600, -125, 40, -120, 50)
	if out != nil {
		t.Fatalf("expected nil for disabled policy, got %v", out)
	}
}
