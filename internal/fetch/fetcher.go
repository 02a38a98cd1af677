package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nwwx/forecastpipe/internal/config"
	"github.com/nwwx/forecastpipe/internal/gribcache"
	"github.com/nwwx/forecastpipe/internal/griddata"
	"github.com/nwwx/forecastpipe/internal/modelregistry"
	"github.com/nwwx/forecastpipe/internal/wxerrors"
)

// Fetcher resolves raw model fields into one merged, region-subset
// GridDataset: given a model, run time, forecast hour and the union of raw
// fields a set of target variables needs, it downloads (with caching and
// retry) and decodes whatever GRIB products carry those fields.
type Fetcher struct {
	Cache     *gribcache.Cache
	Providers []*Provider // priority order: first that succeeds wins
	Retry     config.ProviderConfig
	Region    config.BoundingBox
}

// New builds a Fetcher with two upstream providers: a filter-capable
// index+Range endpoint tried first, falling back to a full-product download
// from an object-store mirror.
func New(cache *gribcache.Cache, retry config.ProviderConfig, region config.BoundingBox, filterBaseURL, fullBaseURL string) *Fetcher {
	client := &http.Client{Timeout: retry.PerAttemptTimeout}
	return &Fetcher{
		Cache: cache,
		Providers: []*Provider{
			{Name: "filter", Client: client, BaseURL: filterBaseURL, FilterCapable: true},
			{Name: "full", Client: client, BaseURL: fullBaseURL, FilterCapable: false},
		},
		Retry:  retry,
		Region: region,
	}
}

// rawFieldProduct classifies a canonical raw field to the product file that
// carries it: surface fields ship in "sfc", pressure-level fields in "pres".
func rawFieldProduct(field string) string {
	switch field {
	case "tmp_850", "ugrd_850", "vgrd_850":
		return "pres"
	default:
		return "sfc"
	}
}

// groupByProduct partitions rawFields by the product file that serves them.
func groupByProduct(rawFields []string) map[string][]string {
	groups := make(map[string][]string)
	for _, f := range rawFields {
		p := rawFieldProduct(f)
		groups[p] = append(groups[p], f)
	}
	return groups
}

// FetchRawData resolves each needed product to a cache entry (downloading
// through the provider chain with retry/backoff on a cache miss), decodes
// the GRIB2 messages that match the requested fields, merges multi-product
// results onto one grid, and subsets to region. Returns a
// MissingFieldError, FetchError, DataDecodeError, or RegionMismatchError
// per the kind of failure encountered.
func (f *Fetcher) FetchRawData(ctx context.Context, model modelregistry.ModelConfig, runTime time.Time, forecastHour int, rawFields []string) (*griddata.Dataset, error) {
	groups := groupByProduct(rawFields)

	var merged *griddata.Dataset
	for product, fields := range groups {
		path, err := f.fetchProduct(ctx, model, runTime, forecastHour, product, fields)
		if err != nil {
			return nil, err
		}

		ds, err := decodeFields(path, model.ID, runTime.Hour(), forecastHour, fields)
		if err != nil {
			if wxerrors.KindOf(err) == wxerrors.KindDataDecode {
				// A corrupt cache entry must not poison future polls; delete
				// it so the next attempt re-downloads.
				f.Cache.Delete(cacheKey(model, runTime, forecastHour, product, fields))
			}
			return nil, err
		}

		merged, err = mergeDatasets(merged, ds, model.ID, forecastHour)
		if err != nil {
			return nil, err
		}
	}

	if merged == nil {
		return nil, wxerrors.New(wxerrors.KindMissingField, model.ID, runTime.Format(time.RFC3339), forecastHour, "",
			fmt.Errorf("no raw fields requested"))
	}

	subsetToRegion(merged, f.Region)
	if merged.Nx == 0 || merged.Ny == 0 {
		return nil, wxerrors.New(wxerrors.KindRegionMismatch, model.ID, runTime.Format(time.RFC3339), forecastHour, "",
			fmt.Errorf("region bbox [%g,%g,%g,%g] does not intersect model grid",
				f.Region.West, f.Region.South, f.Region.East, f.Region.North))
	}

	if err := merged.RequireFields(rawFields); err != nil {
		return nil, wxerrors.New(wxerrors.KindMissingField, model.ID, runTime.Format(time.RFC3339), forecastHour, "", err)
	}

	return merged, nil
}

// ProbeForecastHour issues a cheap existence check for a forecast hour's
// primary surface product, in provider priority order, without downloading
// or touching the cache. The scheduler's monitoring loop calls this once
// per expected forecast hour each poll tick.
func (f *Fetcher) ProbeForecastHour(ctx context.Context, model modelregistry.ModelConfig, runTime time.Time, forecastHour int) (bool, error) {
	req := request{
		ModelID:      model.ID,
		RunDate:      runTime.Format("20060102"),
		RunHour:      runTime.Format("15"),
		ForecastHour: forecastHour,
		Product:      "sfc",
	}
	var lastErr error
	for _, provider := range f.Providers {
		ok, err := provider.Probe(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, lastErr
}

func cacheKey(model modelregistry.ModelConfig, runTime time.Time, forecastHour int, product string, fields []string) gribcache.Key {
	return gribcache.Key{
		ModelID:      model.ID,
		RunTime:      runTime,
		ForecastHour: forecastHour,
		Product:      product,
		FilterSig:    filterSig(model, fields),
	}
}

// filterSig names the filter signature component of the cache filename:
// "full" when the model has no server-side filtering, or a short hash of
// the sorted requested field set so two different variable combinations
// needing different subsets of the same product never collide.
func filterSig(model modelregistry.ModelConfig, fields []string) string {
	if !model.FilterSupport {
		return "full"
	}
	return hashFields(fields)
}

func (f *Fetcher) fetchProduct(ctx context.Context, model modelregistry.ModelConfig, runTime time.Time, forecastHour int, product string, fields []string) (string, error) {
	key := cacheKey(model, runTime, forecastHour, product, fields)

	path, err := f.Cache.AcquireOrDownload(key, func(partialPath string) error {
		return f.downloadWithRetry(ctx, model, runTime, forecastHour, product, fields, partialPath)
	})
	if err != nil {
		return "", wxerrors.New(wxerrors.KindFetch, model.ID, runTime.Format(time.RFC3339), forecastHour, product, err)
	}
	return path, nil
}

// downloadWithRetry tries each provider in priority order, retrying each
// with exponential backoff up to Retry.MaxAttempts before falling through
// to the next provider.
func (f *Fetcher) downloadWithRetry(ctx context.Context, model modelregistry.ModelConfig, runTime time.Time, forecastHour int, product string, fields []string, partialPath string) error {
	req := request{
		ModelID:      model.ID,
		RunDate:      runTime.Format("20060102"),
		RunHour:      runTime.Format("15"),
		ForecastHour: forecastHour,
		Product:      product,
		Fields:       fields,
	}

	var lastErr error
	for _, provider := range f.Providers {
		if provider.FilterCapable && !model.FilterSupport {
			continue
		}
		for attempt := 0; attempt < f.Retry.MaxAttempts; attempt++ {
			var err error
			if provider.FilterCapable {
				err = provider.fetchFilterCapable(ctx, req, partialPath)
			} else {
				err = provider.fetchFullProduct(ctx, req, partialPath)
			}
			if err == nil {
				return nil
			}
			lastErr = err
			if !retryable(err) {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt, f.Retry.InitialBackoff, f.Retry.MaxBackoff)):
			}
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured for model %q", model.ID)
	}
	return lastErr
}

// mergeDatasets folds src's variables into dst, creating dst from src if
// dst is nil. Multi-product merges for the same model/run share one grid by
// construction, so this only validates that assumption rather than
// reprojecting; a genuine grid mismatch is a RegionMismatchError since it
// means the two products disagree about the model's own geometry.
func mergeDatasets(dst, src *griddata.Dataset, modelID string, forecastHour int) (*griddata.Dataset, error) {
	if dst == nil {
		return src, nil
	}
	if dst.Nx != src.Nx || dst.Ny != src.Ny {
		return nil, wxerrors.New(wxerrors.KindRegionMismatch, modelID, "", forecastHour, "",
			fmt.Errorf("product grids disagree: %dx%d vs %dx%d", dst.Nx, dst.Ny, src.Nx, src.Ny))
	}
	for name, v := range src.Vars {
		dst.Vars[name] = v
	}
	return dst, nil
}

// subsetToRegion trims the dataset's regular lat/lon grid to the configured
// bbox in place. Longitudes are compared directly against the bbox, so they
// are expected in the -180..180 convention that decode already normalises to.
// Projected and curvilinear grids are left whole; the map renderer crops
// those at draw time instead, since their index space does not correspond
// directly to a lat/lon rectangle.
func subsetToRegion(ds *griddata.Dataset, region config.BoundingBox) {
	if ds.Kind != griddata.CoordRegularLatLon {
		return
	}

	loKeep := make([]int, 0, len(ds.Lon1D))
	for i, lon := range ds.Lon1D {
		if lon >= region.West && lon <= region.East {
			loKeep = append(loKeep, i)
		}
	}
	laKeep := make([]int, 0, len(ds.Lat1D))
	for j, lat := range ds.Lat1D {
		if lat >= region.South && lat <= region.North {
			laKeep = append(laKeep, j)
		}
	}
	if len(loKeep) == 0 || len(laKeep) == 0 {
		ds.Nx, ds.Ny = 0, 0
		ds.Lon1D, ds.Lat1D = nil, nil
		for _, v := range ds.Vars {
			v.Vals, v.Nx, v.Ny = nil, 0, 0
		}
		return
	}

	newNx, newNy := len(loKeep), len(laKeep)
	newLon := make([]float64, newNx)
	for k, i := range loKeep {
		newLon[k] = ds.Lon1D[i]
	}
	newLat := make([]float64, newNy)
	for k, j := range laKeep {
		newLat[k] = ds.Lat1D[j]
	}

	for _, v := range ds.Vars {
		newVals := make([]float64, newNx*newNy)
		for nj, j := range laKeep {
			for ni, i := range loKeep {
				newVals[nj*newNx+ni] = v.At(i, j)
			}
		}
		v.Vals, v.Nx, v.Ny = newVals, newNx, newNy
	}

	ds.Lon1D, ds.Lat1D, ds.Nx, ds.Ny = newLon, newLat, newNx, newNy
}
