// Package griddata defines the GridDataset contract: a concrete,
// named-coordinate record for gridded model output. Every value crossing
// the fetcher boundary satisfies: longitudes in [-180, 180], no scalar
// time-like coordinates, and subset to the configured region bbox unless
// full-globe was requested.
package griddata

import "fmt"

// CoordKind identifies which of the three coordinate layouts a dataset may
// carry.
type CoordKind int

const (
	// CoordRegularLatLon: 1D latitude and 1D longitude.
	CoordRegularLatLon CoordKind = iota
	// CoordProjectedRectilinear: 1D x and 1D y with a projection descriptor.
	CoordProjectedRectilinear
	// CoordCurvilinear: 2D latitude and 2D longitude, no 1D x/y.
	CoordCurvilinear
)

// Variable is one named 2D field on the dataset's grid, row-major
// (vals[j*Nx+i]).
type Variable struct {
	Name  string
	Units string
	Vals  []float64
	Nx    int
	Ny    int
}

// At returns the value at grid index (i, j).
func (v Variable) At(i, j int) float64 {
	return v.Vals[j*v.Nx+i]
}

// GridMapping carries the CF grid_mapping attributes needed to reconstruct
// a projection, read either from the target variable or, failing that,
// scanned from every variable on the dataset.
type GridMapping struct {
	Name              string // CF grid_mapping_name, e.g. "lambert_conformal_conic"
	StandardParallel1 float64
	StandardParallel2 float64
	CentralMeridian   float64
	LatitudeOfOrigin  float64
}

// Dataset is the GridDataset record: the sole cross-component contract
// between the fetcher and everything downstream of it.
type Dataset struct {
	ModelID     string
	RunHour     int
	ForecastHr  int
	Kind        CoordKind
	Lat1D       []float64 // CoordRegularLatLon
	Lon1D       []float64 // CoordRegularLatLon (normalized to [-180,180])
	X           []float64 // CoordProjectedRectilinear
	Y           []float64 // CoordProjectedRectilinear
	Lat2D       []float64 // CoordCurvilinear, row-major Nx*Ny
	Lon2D       []float64 // CoordCurvilinear, row-major Nx*Ny
	Nx, Ny      int
	GridMapping *GridMapping
	Vars        map[string]*Variable
}

// New returns an empty dataset of the given coordinate kind.
func New(modelID string, runHour, forecastHr int, kind CoordKind) *Dataset {
	return &Dataset{
		ModelID:    modelID,
		RunHour:    runHour,
		ForecastHr: forecastHr,
		Kind:       kind,
		Vars:       make(map[string]*Variable),
	}
}

// HasField reports whether name is present on the dataset.
func (d *Dataset) HasField(name string) bool {
	_, ok := d.Vars[name]
	return ok
}

// RequireFields validates that every name in fields is present, returning
// the first missing one. Callers wrap this in a MissingFieldError.
func (d *Dataset) RequireFields(fields []string) error {
	for _, f := range fields {
		if !d.HasField(f) {
			return fmt.Errorf("missing field %q", f)
		}
	}
	return nil
}

// NormalizeLongitude maps a longitude in any convention onto [-180, 180].
func NormalizeLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

// NormalizeLongitudes1D rewrites lons in place to the [-180, 180] convention.
func NormalizeLongitudes1D(lons []float64) {
	for i, l := range lons {
		lons[i] = NormalizeLongitude(l)
	}
}

// Release drops the dataset's backing storage. Per-task buffers must be
// released before a worker signals completion; this makes that an
// explicit, visible step rather than relying on GC timing.
func (d *Dataset) Release() {
	d.Lat1D, d.Lon1D, d.X, d.Y, d.Lat2D, d.Lon2D = nil, nil, nil, nil, nil, nil
	d.Vars = nil
}
