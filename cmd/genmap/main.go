// Command genmap is a manual, single-shot entry point for exercising the
// fetch -> derive -> sample -> render pipeline outside the scheduler's
// polling loop: useful for backfilling one forecast hour or checking a
// new model/variable combination by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nwwx/forecastpipe/internal/config"
	"github.com/nwwx/forecastpipe/internal/derive"
	"github.com/nwwx/forecastpipe/internal/fetch"
	"github.com/nwwx/forecastpipe/internal/griddata"
	"github.com/nwwx/forecastpipe/internal/gribcache"
	"github.com/nwwx/forecastpipe/internal/mapgen"
	"github.com/nwwx/forecastpipe/internal/modelregistry"
	"github.com/nwwx/forecastpipe/internal/stations"
	"github.com/nwwx/forecastpipe/internal/variableregistry"
	"github.com/nwwx/forecastpipe/internal/wxerrors"
)

func main() {
	var (
		mode          = flag.String("mode", "all", "Mode: download, render, or all")
		modelID       = flag.String("model", "gfs025", "model_id from the model registry")
		runStr        = flag.String("run", "", "run time YYYYMMDDHH (UTC), required")
		forecastHour  = flag.Int("fh", 0, "forecast hour to render")
		variableID    = flag.String("variable", "", "variable_id to render; empty means every variable the model supports")
		filterBaseURL = flag.String("filter-base-url", "https://nomads.ncep.noaa.gov/cgi-bin/filter_gfs_0p25", "filter-capable provider base URL")
		fullBaseURL   = flag.String("full-base-url", "https://noaa-gfs-bdp-pds.s3.amazonaws.com", "full-product fallback provider base URL")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[GENMAP] ", log.LstdFlags)

	if *runStr == "" {
		logger.Fatal("-run is required (YYYYMMDDHH, UTC)")
	}
	runTime, err := time.Parse("2006010215", *runStr)
	if err != nil {
		logger.Fatalf("invalid -run value: %v", err)
	}

	if err := config.LoadEnv(); err != nil {
		logger.Fatalf("load .env: %v", err)
	}
	cfg := config.NewConfig()

	models := modelregistry.New()
	model, err := models.Get(*modelID)
	if err != nil {
		logger.Fatalf("unknown model: %v", err)
	}

	vars := variableregistry.New()
	variableIDs := []string{*variableID}
	if *variableID == "" {
		variableIDs = vars.SupportedForModel(model)
	}

	cache, err := gribcache.New(cfg.Storage.CacheRoot, cfg.Retain.PartialMaxAge)
	if err != nil {
		logger.Fatalf("open GRIB cache: %v", err)
	}
	fetcher := fetch.New(cache, cfg.Provider, cfg.Region, *filterBaseURL, *fullBaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Provider.PerAttemptTimeout*time.Duration(cfg.Provider.MaxAttempts+1))
	defer cancel()

	rawFields, err := vars.RawFieldUnion(variableIDs, model)
	if err != nil {
		logger.Fatalf("resolve raw fields: %v", err)
	}

	logger.Printf("fetching %s run=%s fh=%03d fields=%v", model.ID, runTime.Format("2006-01-02 15Z"), *forecastHour, rawFields)
	ds, err := fetcher.FetchRawData(ctx, model, runTime, *forecastHour, rawFields)
	if err != nil {
		logger.Fatalf("fetch raw data: %v", err)
	}
	defer ds.Release()

	if *mode == "download" {
		logger.Println("download complete, dataset cached")
		return
	}

	if err := os.MkdirAll(cfg.Storage.PublishPath, 0o755); err != nil {
		logger.Fatalf("create publish directory: %v", err)
	}

	catalog, err := stations.Load(cfg.Stations.CatalogPath, cfg.Stations.OverridesPath, cfg.Region)
	if err != nil {
		logger.Printf("station catalog unavailable, rendering without overlays: %v", err)
		catalog = &stations.Catalog{}
	}
	sampler := stations.NewSampler()
	accum := derive.NewAccumulator()

	region := mapgen.Region{
		West: cfg.Region.West, South: cfg.Region.South,
		East: cfg.Region.East, North: cfg.Region.North,
		PixelWidth: 1024,
	}

	rendered := 0
	for _, variableID := range variableIDs {
		reqs, err := vars.RequirementsFor(variableID, model)
		if err != nil {
			logger.Printf("%s: %v", variableID, err)
			continue
		}

		if err := applyDerivedFields(accum, ds, model, runTime, *forecastHour, reqs); err != nil {
			logger.Printf("%s: %v", variableID, err)
			continue
		}

		overlay := mapgen.Overlay{Policy: stations.OverlayPolicy{Enabled: true, MinPixelSpacing: 36}}
		overlay.Stations = sampleStations(sampler, catalog, ds, reqs, model, overlay.Policy, region)

		publishPath, err := mapgen.GenerateMap(cfg.Storage.PublishPath, ds, reqs, model.ID, model.DisplayColor, runTime, *forecastHour, region, overlay)
		if err != nil {
			logger.Printf("%s: %v", variableID, err)
			continue
		}
		logger.Printf("%s: wrote %s", variableID, publishPath)
		rendered++
	}

	logger.Printf("rendered %d/%d variables", rendered, len(variableIDs))
}

func applyDerivedFields(accum *derive.Accumulator, ds *griddata.Dataset, model modelregistry.ModelConfig, runTime time.Time, fh int, reqs variableregistry.VariableRequirements) error {
	if !reqs.NeedsAccumulation {
		return nil
	}

	runUnix := runTime.Unix()
	sample := derive.PrecipSample{ForecastHour: fh, TpMM: ds.Vars["tp"], PrateKgM2S: ds.Vars["prate"]}
	totalMM, err := accum.TotalPrecipMM(model, runUnix, sample)
	if err != nil {
		return wxerrors.New(wxerrors.KindDataDecode, model.ID, runTime.Format(time.RFC3339), fh, reqs.ID, err)
	}
	ds.Vars["tp_total"] = &griddata.Variable{Name: "tp_total", Units: "in", Vals: derive.MMToInches(totalMM), Nx: ds.Nx, Ny: ds.Ny}

	if !reqs.NeedsSnowTotal {
		return nil
	}
	csnow, ok := ds.Vars["csnow"]
	if !ok {
		return wxerrors.New(wxerrors.KindMissingField, model.ID, runTime.Format(time.RFC3339), fh, reqs.ID,
			fmt.Errorf("snow_total requires a csnow field"))
	}
	liquidMM, err := accum.TotalSnowLiquidMM(model, runUnix, derive.SnowSample{ForecastHour: fh, TpMM: sample.TpMM, Csnow: csnow})
	if err != nil {
		return wxerrors.New(wxerrors.KindDataDecode, model.ID, runTime.Format(time.RFC3339), fh, reqs.ID, err)
	}
	ds.Vars["tp_snow_total"] = &griddata.Variable{Name: "tp_snow_total", Units: "in", Vals: derive.MMToInches(derive.SnowDepthMM(liquidMM)), Nx: ds.Nx, Ny: ds.Ny}
	return nil
}

func sampleStations(sampler *stations.Sampler, catalog *stations.Catalog, ds *griddata.Dataset, reqs variableregistry.VariableRequirements, model modelregistry.ModelConfig, policy stations.OverlayPolicy, region mapgen.Region) []stations.LabeledStation {
	field := reqs.ID
	if len(reqs.DerivedFields) > 0 {
		field = reqs.DerivedFields[0]
	} else if len(reqs.RawFields) > 0 {
		field = reqs.RawFields[0]
	}

	var candidates []stations.LabeledStation
	for _, st := range catalog.Stations {
		value, ok := sampler.Sample(ds, field, model, st)
		if !ok {
			continue
		}
		candidates = append(candidates, stations.LabeledStation{Station: st, Value: value})
	}

	pixelHeight := int(float64(region.PixelWidth) * (region.North - region.South) / (region.East - region.West))
	if pixelHeight < 1 {
		pixelHeight = 1
	}
	return stations.Declutter(candidates, policy, region.PixelWidth, pixelHeight, region.West, region.South, region.East, region.North)
}
