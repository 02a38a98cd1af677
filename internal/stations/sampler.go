package stations

import (
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/ctessum/geom/proj"
	"github.com/nwwx/forecastpipe/internal/griddata"
	"github.com/nwwx/forecastpipe/internal/modelregistry"
)

// Sampler picks the nearest grid value to a station location for whichever
// of the three coordinate layouts a dataset carries. A single Sampler is
// shared across a run: it caches the projection transformer and curvilinear
// spatial index so repeated forecast hours of the same model/grid shape
// don't rebuild them.
type Sampler struct {
	transformCache sync.Map // key: transformCacheKey -> proj.Transformer
	curviIndex     sync.Map // key: curviIndexKey -> *bucketIndex
}

// NewSampler returns an empty, run-scoped sampler cache.
func NewSampler() *Sampler {
	return &Sampler{}
}

// Sample returns the value of varName nearest to station st on ds's grid.
func (s *Sampler) Sample(ds *griddata.Dataset, varName string, model modelregistry.ModelConfig, st Station) (float64, bool) {
	v, ok := ds.Vars[varName]
	if !ok {
		return 0, false
	}

	switch ds.Kind {
	case griddata.CoordRegularLatLon:
		i := nearestIndex(ds.Lon1D, st.Lon)
		j := nearestIndex(ds.Lat1D, st.Lat)
		return v.At(i, j), true

	case griddata.CoordProjectedRectilinear:
		x, y, err := s.project(ds, model, st)
		if err != nil {
			log.Printf("stations: projecting %s onto model %s grid: %v", st.ID, model.ID, err)
			return 0, false
		}
		i := nearestIndex(ds.X, x)
		j := nearestIndex(ds.Y, y)
		return v.At(i, j), true

	case griddata.CoordCurvilinear:
		i, j, ok := s.curvilinearNearest(ds, st)
		if !ok {
			return 0, false
		}
		return v.At(i, j), true

	default:
		return 0, false
	}
}

// nearestIndex returns the index of the coordinate closest to v. coords
// need not be sorted in a particular direction — GRIB grids commonly run
// north-to-south — so this scans rather than assuming ascending order.
func nearestIndex(coords []float64, v float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range coords {
		d := math.Abs(c - v)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

type transformCacheKey struct {
	nx, ny          int
	gridMappingName string
}

// project resolves the dataset's CRS — from its GridMapping, the model's
// declarative fallback, or gives up with an error — and transforms a
// station's (lon, lat) into the dataset's native (x, y), caching the
// transformer per (grid shape, projection name) so it is built once per
// distinct grid rather than once per station.
func (s *Sampler) project(ds *griddata.Dataset, model modelregistry.ModelConfig, st Station) (float64, float64, error) {
	gm := ds.GridMapping
	if gm == nil && model.FallbackProjection != nil {
		log.Printf("stations: dataset for model %s carries no grid_mapping; using declared fallback projection %q",
			model.ID, model.FallbackProjection.Name)
		gm = &griddata.GridMapping{
			Name:              model.FallbackProjection.Name,
			StandardParallel1: model.FallbackProjection.StandardParallel1,
			StandardParallel2: model.FallbackProjection.StandardParallel2,
			CentralMeridian:   model.FallbackProjection.CentralMeridian,
			LatitudeOfOrigin:  model.FallbackProjection.LatitudeOfOrigin,
		}
	}
	if gm == nil {
		return 0, 0, fmt.Errorf("no grid_mapping on dataset and no fallback projection declared for model %q", model.ID)
	}

	key := transformCacheKey{nx: ds.Nx, ny: ds.Ny, gridMappingName: gm.Name}
	var forward proj.Transformer
	if cached, ok := s.transformCache.Load(key); ok {
		forward = cached.(proj.Transformer)
	} else {
		built, err := buildTransformer(gm)
		if err != nil {
			return 0, 0, err
		}
		s.transformCache.Store(key, built)
		forward = built
	}

	return forward(st.Lon, st.Lat)
}

// buildTransformer constructs a forward lon/lat -> x/y transformer for the
// projections this pipeline's models actually use. Only Lambert Conformal
// Conic is needed, for the regional convection-allowing model; a spherical
// earth is assumed, matching the grid definitions NWP centers publish for
// display purposes.
func buildTransformer(gm *griddata.GridMapping) (proj.Transformer, error) {
	switch gm.Name {
	case "lambert_conformal_conic", "lcc":
		sr := proj.NewSR()
		sr.Lat1 = gm.StandardParallel1 * math.Pi / 180
		sr.Lat2 = gm.StandardParallel2 * math.Pi / 180
		sr.Lat0 = gm.LatitudeOfOrigin * math.Pi / 180
		sr.Long0 = gm.CentralMeridian * math.Pi / 180
		sr.A, sr.B = 6370997, 6370997 // spherical earth, standard for weather-model display grids
		sr.X0, sr.Y0, sr.K0 = 0, 0, 1
		forward, _, err := proj.LCC(sr)
		if err != nil {
			return nil, fmt.Errorf("build LCC transformer: %w", err)
		}
		return forward, nil
	default:
		return nil, fmt.Errorf("unsupported grid_mapping %q", gm.Name)
	}
}
