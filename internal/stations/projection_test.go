package stations

import (
	"sync"
	"testing"

	"github.com/nwwx/forecastpipe/internal/griddata"
	"github.com/nwwx/forecastpipe/internal/modelregistry"
)

func lccModel() modelregistry.ModelConfig {
	return modelregistry.ModelConfig{
		ID: "nwpacific3km",
		FallbackProjection: &modelregistry.ProjectionSpec{
			Name:              "lcc",
			StandardParallel1: 38.5,
			StandardParallel2: 38.5,
			CentralMeridian:   -122.5,
			LatitudeOfOrigin:  38.5,
		},
	}
}

func TestSampleProjectedRectilinearUsesFallbackProjection(t *testing.T) {
	model := lccModel()
	s := NewSampler()

	// Build an x/y grid by projecting the four corners of a lon/lat box
	// through the same transformer the sampler falls back to, so the
	// station at the box's center should land near the grid's center cell.
	forward, err := buildTransformer(&griddata.GridMapping{
		Name: "lcc", StandardParallel1: 38.5, StandardParallel2: 38.5,
		CentralMeridian: -122.5, LatitudeOfOrigin: 38.5,
	})
	if err != nil {
		t.Fatalf("buildTransformer: %v", err)
	}
	x0, y0, err := forward(-125, 42)
	if err != nil {
		t.Fatalf("forward corner: %v", err)
	}
	x1, y1, err := forward(-120, 46)
	if err != nil {
		t.Fatalf("forward corner: %v", err)
	}

	ds := griddata.New("nwpacific3km", 0, 0, griddata.CoordProjectedRectilinear)
	ds.X = []float64{x0, (x0 + x1) / 2, x1}
	ds.Y = []float64{y0, (y0 + y1) / 2, y1}
	ds.Nx, ds.Ny = 3, 3
	ds.Vars["tmp2m"] = &griddata.Variable{
		Nx: 3, Ny: 3,
		Vals: []float64{
			1, 2, 3,
			4, 5, 6,
			7, 8, 9,
		},
	}

	v, ok := s.Sample(ds, "tmp2m", model, Station{Lon: -122.5, Lat: 44})
	if !ok {
		t.Fatal("expected a sample for a station inside the projected grid")
	}
	if v != 5 {
		t.Fatalf("expected the center cell (5), got %v", v)
	}
}

func TestBuildTransformerRejectsUnsupportedProjection(t *testing.T) {
	_, err := buildTransformer(&griddata.GridMapping{Name: "polar_stereographic"})
	if err == nil {
		t.Fatal("expected an error for an unsupported grid_mapping_name")
	}
}

func TestSampleProjectedRectilinearFailsWithNoProjectionAvailable(t *testing.T) {
	s := NewSampler()
	ds := griddata.New("m", 0, 0, griddata.CoordProjectedRectilinear)
	ds.X = []float64{0, 1}
	ds.Y = []float64{0, 1}
	ds.Nx, ds.Ny = 2, 2
	ds.Vars["tmp2m"] = &griddata.Variable{Nx: 2, Ny: 2, Vals: []float64{1, 2, 3, 4}}

	_, ok := s.Sample(ds, "tmp2m", modelregistry.ModelConfig{ID: "m"}, Station{Lon: -120, Lat: 45})
	if ok {
		t.Fatal("expected ok=false when no grid_mapping and no fallback projection are available")
	}
}

func TestSampleProjectedRectilinearCachesTransformer(t *testing.T) {
	model := lccModel()
	s := NewSampler()
	ds := griddata.New("nwpacific3km", 0, 0, griddata.CoordProjectedRectilinear)
	ds.X = []float64{-1, 0, 1}
	ds.Y = []float64{-1, 0, 1}
	ds.Nx, ds.Ny = 3, 3
	ds.Vars["tmp2m"] = &griddata.Variable{Nx: 3, Ny: 3, Vals: make([]float64, 9)}

	_, _, err1 := s.project(ds, model, Station{Lon: -122, Lat: 44})
	if err1 != nil {
		t.Fatalf("first project: %v", err1)
	}
	cacheLenBefore := mapLen(&s.transformCache)
	_, _, err2 := s.project(ds, model, Station{Lon: -121, Lat: 43})
	if err2 != nil {
		t.Fatalf("second project: %v", err2)
	}
	cacheLenAfter := mapLen(&s.transformCache)
	if cacheLenBefore != 1 || cacheLenAfter != 1 {
		t.Fatalf("expected the transformer cache to hold exactly one entry across repeated calls for the same grid, got %d then %d", cacheLenBefore, cacheLenAfter)
	}
}

func mapLen(m *sync.Map) int {
	n := 0
	m.Range(func(key, value any) bool {
		n++
		return true
	})
	return n
}
