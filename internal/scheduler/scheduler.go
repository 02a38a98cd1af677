package scheduler

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nwwx/forecastpipe/internal/config"
	"github.com/nwwx/forecastpipe/internal/derive"
	"github.com/nwwx/forecastpipe/internal/fetch"
	"github.com/nwwx/forecastpipe/internal/gribcache"
	"github.com/nwwx/forecastpipe/internal/griddata"
	"github.com/nwwx/forecastpipe/internal/mapgen"
	"github.com/nwwx/forecastpipe/internal/metrics"
	"github.com/nwwx/forecastpipe/internal/modelregistry"
	"github.com/nwwx/forecastpipe/internal/stations"
	"github.com/nwwx/forecastpipe/internal/store"
	"github.com/nwwx/forecastpipe/internal/variableregistry"
	"github.com/nwwx/forecastpipe/internal/wxerrors"
)

// Scheduler is the long-lived orchestrator: it discovers new model runs on
// a wall-clock schedule, polls providers for newly available forecast
// hours, and dispatches render tasks through a bounded worker pool.
type Scheduler struct {
	Cfg      *config.Config
	Models   *modelregistry.Registry
	Vars     *variableregistry.Registry
	Fetcher  *fetch.Fetcher
	Cache    *gribcache.Cache
	Catalog  *stations.Catalog
	Sampler  *stations.Sampler
	Accum    *derive.Accumulator
	Ledger   *store.Ledger // nil disables ledger recording
	Overlays map[string]stations.OverlayPolicy

	pool    *Pool
	cron    *cron.Cron
	started map[string]time.Time // model_id -> run_time already launched
	mu      sync.Mutex
}

// New constructs a Scheduler with its own accumulation cache and station
// sampler — both run-scoped, shared across every task the scheduler
// dispatches over a process lifetime.
func New(cfg *config.Config, models *modelregistry.Registry, vars *variableregistry.Registry, fetcher *fetch.Fetcher, cache *gribcache.Cache, catalog *stations.Catalog, ledger *store.Ledger) *Scheduler {
	return &Scheduler{
		Cfg:      cfg,
		Models:   models,
		Vars:     vars,
		Fetcher:  fetcher,
		Cache:    cache,
		Catalog:  catalog,
		Sampler:  stations.NewSampler(),
		Accum:    derive.NewAccumulator(),
		Ledger:   ledger,
		Overlays: defaultOverlayPolicies(),
		started:  make(map[string]time.Time),
	}
}

// defaultOverlayPolicies enables a station-value overlay for the three
// variables where per-point values are the main thing a reader compares
// against the raster; every other variable_id falls back to the fail-safe
// disabled policy.
func defaultOverlayPolicies() map[string]stations.OverlayPolicy {
	return map[string]stations.OverlayPolicy{
		"temp_2m":      {Enabled: true, MinPixelSpacing: 36},
		"precip_total": {Enabled: true, MinPixelSpacing: 36},
		"snow_total":   {Enabled: true, MinPixelSpacing: 36},
	}
}

// Run is the top-level control loop: it sizes the worker pool, registers
// the per-model trigger check, runs one catch-up pass immediately for any
// run whose check time has already elapsed, and blocks until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	totalGB, availGB := SystemMemoryGB()
	metrics.MemoryAvailableBytes.Set(availGB * (1 << 30))
	workers := SizeWorkerPool(totalGB, availGB, s.Cfg.Workers.LowMemThreshGB, s.Cfg.Workers.HeadroomGB, s.Cfg.Workers.MemPerWorkerGB, s.Cfg.Workers.MaxWorkers)
	s.pool = NewPool(workers)
	log.Printf("scheduler: sized worker pool to %d (total=%.1fGB available=%.1fGB)", workers, totalGB, availGB)

	s.cron = cron.New()
	// A 5-minute trigger-check cadence is coarser than any one model's
	// check offset, but well inside the tolerance of a schedule expressed
	// in hours; it lets one cron job cover every model instead of a
	// dynamically rebuilt expression per model per run.
	if _, err := s.cron.AddFunc("*/5 * * * *", func() { s.checkAndLaunch(ctx) }); err != nil {
		return fmt.Errorf("register scheduler trigger: %w", err)
	}
	s.cron.Start()
	defer s.cron.Stop()

	// Catch-up: a run whose check time has already passed at startup
	// (e.g. the process restarted mid-window) launches immediately rather
	// than waiting for the next 5-minute tick.
	s.checkAndLaunch(ctx)

	<-ctx.Done()
	log.Println("scheduler: shutdown signal received, draining worker pool")
	return s.shutdown()
}

// shutdown waits for in-flight tasks up to the configured deadline.
// GenerateMap takes no context: a task already rendering when ctx is
// cancelled still renames its finished file into place, and a task still
// running when the deadline is hit leaves its .partial file behind. A
// published artifact is only ever a complete file.
func (s *Scheduler) shutdown() error {
	done := make(chan struct{})
	go func() {
		if s.pool != nil {
			s.pool.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		log.Println("scheduler: all tasks drained cleanly")
		return nil
	case <-time.After(s.Cfg.Monitor.ShutdownDeadline):
		log.Printf("scheduler: shutdown deadline (%s) exceeded, exiting with tasks still in flight", s.Cfg.Monitor.ShutdownDeadline)
		return nil
	}
}

// checkAndLaunch computes, for every enabled model, the latest permitted
// run_time and launches generateForecastForModelProgressive once that
// run's check offset has elapsed and it has not already been started.
func (s *Scheduler) checkAndLaunch(ctx context.Context) {
	now := time.Now().UTC()
	for _, model := range s.Models.ListEnabled() {
		runTime, ok := latestPermittedRunTime(model, now)
		if !ok {
			continue
		}
		if now.Before(runTime.Add(model.CheckOffset)) {
			continue
		}
		if !s.claimRun(model.ID, runTime) {
			continue
		}
		model := model
		runTime := runTime
		go s.generateForecastForModelProgressive(ctx, model, runTime)
	}
}

// claimRun reports whether (modelID, runTime) has not yet been started,
// atomically marking it started if so.
func (s *Scheduler) claimRun(modelID string, runTime time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.started[modelID]; ok && !last.Before(runTime) {
		return false
	}
	s.started[modelID] = runTime
	return true
}

// latestPermittedRunTime finds the most recent wall-clock hour at or before
// now that is one of model's permitted run hours.
func latestPermittedRunTime(model modelregistry.ModelConfig, now time.Time) (time.Time, bool) {
	for daysBack := 0; daysBack <= 1; daysBack++ {
		day := now.AddDate(0, 0, -daysBack)
		for h := 23; h >= 0; h-- {
			if !model.PermitsRunHour(h) {
				continue
			}
			candidate := time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, time.UTC)
			if candidate.After(now) {
				continue
			}
			return candidate, true
		}
	}
	return time.Time{}, false
}

// generateForecastForModelProgressive runs the per-model run algorithm:
// enumerate expected forecast hours and target variables,
// then poll until the run completes or its monitoring window expires,
// dispatching each newly available forecast hour through the shared
// worker pool in ascending order.
func (s *Scheduler) generateForecastForModelProgressive(ctx context.Context, model modelregistry.ModelConfig, runTime time.Time) {
	startedAt := time.Now()
	defer func() {
		metrics.RunDurationSeconds.WithLabelValues(model.ID).Observe(time.Since(startedAt).Seconds())
		s.tearDownRun(model)
		debug.FreeOSMemory()
	}()

	expectedHours := model.ExpectedForecastHours()
	variableIDs := s.Vars.SupportedForModel(model)

	run := NewRunState(expectedHours)
	run.BeginMonitoring()
	s.recordState(model.ID, runTime, run.Phase)

	deadline := runTime.Add(model.AvailabilityDeadline).Add(s.Cfg.Monitor.Window)
	ticker := time.NewTicker(s.Cfg.Monitor.CheckInterval)
	defer ticker.Stop()

	log.Printf("run %s %s: monitoring %d expected forecast hours, %d variables",
		model.ID, runTime.Format("2006-01-02 15Z"), len(expectedHours), len(variableIDs))

	for {
		select {
		case <-ctx.Done():
			run.SetPhase(PhaseAbandoned)
			s.recordState(model.ID, runTime, run.Phase)
			return

		case <-ticker.C:
			available, err := s.probeAvailable(ctx, model, runTime, expectedHours)
			if err != nil {
				log.Printf("run %s %s: provider probe failed: %v", model.ID, runTime.Format("2006-01-02 15Z"), err)
				continue
			}

			// Forecast hours of the same run dispatch and complete in
			// ascending order, one at a time: the accumulator's O(H)
			// running totals depend on it (derive.Accumulator doc
			// comment). The pool bound still gates the work itself, and
			// other models' monitoring loops keep submitting to the same
			// pool concurrently, which is where the cross-model fairness
			// comes from.
			for _, fh := range run.NewlyAvailable(available) {
				fh := fh
				doneCh := make(chan struct{})
				s.pool.Submit(func() {
					defer close(doneCh)
					s.runForecastHourTask(ctx, model, runTime, fh, variableIDs, run)
				})
				<-doneCh
				debug.FreeOSMemory()
			}

			if run.IsComplete() {
				run.SetPhase(PhaseComplete)
				s.recordState(model.ID, runTime, run.Phase)
				log.Printf("run %s %s: COMPLETE (%d/%d forecast hours)",
					model.ID, runTime.Format("2006-01-02 15Z"), len(run.Completed()), len(expectedHours))
				return
			}
			if time.Now().After(deadline) {
				run.SetPhase(PhaseAbandoned)
				s.recordState(model.ID, runTime, run.Phase)
				log.Printf("run %s %s: ABANDONED after monitoring window (%d/%d forecast hours completed)",
					model.ID, runTime.Format("2006-01-02 15Z"), len(run.Completed()), len(expectedHours))
				return
			}
		}
	}
}

// probeAvailable issues a cheap existence probe per expected forecast hour,
// completed or not, returning those the provider reports ready.
func (s *Scheduler) probeAvailable(ctx context.Context, model modelregistry.ModelConfig, runTime time.Time, expected []int) ([]int, error) {
	var available []int
	for _, fh := range expected {
		ok, err := s.Fetcher.ProbeForecastHour(ctx, model, runTime, fh)
		if err != nil {
			return nil, err
		}
		if ok {
			available = append(available, fh)
		}
	}
	sort.Ints(available)
	return available, nil
}

// runForecastHourTask is the unit of work dispatched to the worker pool:
// build one merged dataset for the union of raw fields this forecast
// hour's variables need, then render every supported variable from it.
func (s *Scheduler) runForecastHourTask(ctx context.Context, model modelregistry.ModelConfig, runTime time.Time, fh int, variableIDs []string, run *RunState) {
	rawFields, err := s.Vars.RawFieldUnion(variableIDs, model)
	if err != nil {
		s.failHour(model, runTime, fh, run, err)
		return
	}

	ds, err := s.Fetcher.FetchRawData(ctx, model, runTime, fh, rawFields)
	if err != nil {
		s.failHour(model, runTime, fh, run, err)
		return
	}
	defer ds.Release()

	successes := 0
	for _, variableID := range variableIDs {
		if err := s.renderOneVariable(ds, model, runTime, fh, variableID); err != nil {
			log.Printf("run %s %s fh=%03d %s: %v", model.ID, runTime.Format("2006-01-02 15Z"), fh, variableID, err)
			s.recordOutcome(model.ID, runTime, fh, variableID, "failed", err.Error())
			metrics.MapsGenerated.WithLabelValues(model.ID, variableID, "failed").Inc()
			continue
		}
		successes++
		s.recordOutcome(model.ID, runTime, fh, variableID, "success", "")
		metrics.MapsGenerated.WithLabelValues(model.ID, variableID, "success").Inc()
	}

	log.Printf("run %s %s fh=%03d: %d/%d variables rendered",
		model.ID, runTime.Format("2006-01-02 15Z"), fh, successes, len(variableIDs))
	run.MarkCompleted(fh)
}

func (s *Scheduler) failHour(model modelregistry.ModelConfig, runTime time.Time, fh int, run *RunState, err error) {
	log.Printf("run %s %s fh=%03d: %v", model.ID, runTime.Format("2006-01-02 15Z"), fh, err)
	s.recordOutcome(model.ID, runTime, fh, "", "failed", err.Error())
	run.MarkFailed(fh)
}

// renderOneVariable runs the derived-field layer this variable needs (if
// any), samples stations for its overlay, and calls the map generator.
func (s *Scheduler) renderOneVariable(ds *griddata.Dataset, model modelregistry.ModelConfig, runTime time.Time, fh int, variableID string) error {
	reqs, err := s.Vars.RequirementsFor(variableID, model)
	if err != nil {
		return err
	}

	if err := s.applyDerivedFields(ds, model, runTime, fh, reqs); err != nil {
		return err
	}

	policy, ok := s.Overlays[variableID]
	if !ok {
		policy = stations.DefaultOverlayPolicy()
	}
	var overlay mapgen.Overlay
	overlay.Policy = policy
	if policy.Enabled && s.Catalog != nil {
		overlay.Stations = s.sampleOverlayStations(ds, reqs, model, policy)
	}

	region := mapgen.Region{
		West: s.Cfg.Region.West, South: s.Cfg.Region.South,
		East: s.Cfg.Region.East, North: s.Cfg.Region.North,
		PixelWidth: 1024,
	}

	_, err = mapgen.GenerateMap(s.Cfg.Storage.PublishPath, ds, reqs, model.ID, model.DisplayColor, runTime, fh, region, overlay)
	return err
}

// applyDerivedFields runs the accumulation and snowfall transforms over the
// raw fields already on ds, writing their outputs back onto ds.Vars under
// the names variableregistry.VariableRequirements declares in
// DerivedFields. Variables needing no derivation (a raw field, or a
// composite of already-present raw fields) are a no-op here.
func (s *Scheduler) applyDerivedFields(ds *griddata.Dataset, model modelregistry.ModelConfig, runTime time.Time, fh int, reqs variableregistry.VariableRequirements) error {
	if !reqs.NeedsAccumulation {
		return nil
	}

	runUnix := runTime.Unix()
	sample := derive.PrecipSample{
		ForecastHour: fh,
		TpMM:         ds.Vars["tp"],
		PrateKgM2S:   ds.Vars["prate"],
	}

	totalMM, err := s.Accum.TotalPrecipMM(model, runUnix, sample)
	if err != nil {
		return wxerrors.New(wxerrors.KindDataDecode, model.ID, runTime.Format(time.RFC3339), fh, reqs.ID, err)
	}
	ds.Vars["tp_total"] = &griddata.Variable{
		Name: "tp_total", Units: "in", Vals: derive.MMToInches(totalMM), Nx: ds.Nx, Ny: ds.Ny,
	}

	if !reqs.NeedsSnowTotal {
		return nil
	}

	csnow, ok := ds.Vars["csnow"]
	if !ok {
		return wxerrors.New(wxerrors.KindMissingField, model.ID, runTime.Format(time.RFC3339), fh, reqs.ID,
			fmt.Errorf("snow_total requires a csnow field"))
	}
	snowSample := derive.SnowSample{ForecastHour: fh, TpMM: sample.TpMM, Csnow: csnow}
	liquidMM, err := s.Accum.TotalSnowLiquidMM(model, runUnix, snowSample)
	if err != nil {
		return wxerrors.New(wxerrors.KindDataDecode, model.ID, runTime.Format(time.RFC3339), fh, reqs.ID, err)
	}
	ds.Vars["tp_snow_total"] = &griddata.Variable{
		Name: "tp_snow_total", Units: "in", Vals: derive.MMToInches(derive.SnowDepthMM(liquidMM)), Nx: ds.Nx, Ny: ds.Ny,
	}
	return nil
}

// sampleOverlayStations samples this variable's render field at every
// catalog station and declutters the result for the region's pixel grid.
func (s *Scheduler) sampleOverlayStations(ds *griddata.Dataset, reqs variableregistry.VariableRequirements, model modelregistry.ModelConfig, policy stations.OverlayPolicy) []stations.LabeledStation {
	field := reqs.ID
	if len(reqs.DerivedFields) > 0 {
		field = reqs.DerivedFields[0]
	} else if len(reqs.RawFields) > 0 {
		field = reqs.RawFields[0]
	}

	var candidates []stations.LabeledStation
	for _, st := range s.Catalog.Stations {
		value, ok := s.Sampler.Sample(ds, field, model, st)
		if !ok {
			continue
		}
		candidates = append(candidates, stations.LabeledStation{Station: st, Value: value})
	}

	west, south, east, north := s.Cfg.Region.West, s.Cfg.Region.South, s.Cfg.Region.East, s.Cfg.Region.North
	pixelWidth := 1024
	pixelHeight := int(float64(pixelWidth) * (north - south) / (east - west))
	if pixelHeight < 1 {
		pixelHeight = 1
	}
	return stations.Declutter(candidates, policy, pixelWidth, pixelHeight, west, south, east, north)
}

func (s *Scheduler) recordState(modelID string, runTime time.Time, phase Phase) {
	if s.Ledger == nil {
		return
	}
	if err := s.Ledger.RecordState(modelID, runTime, phase.String()); err != nil {
		log.Printf("scheduler: record run state: %v", err)
	}
}

func (s *Scheduler) recordOutcome(modelID string, runTime time.Time, fh int, variableID, outcome, detail string) {
	if s.Ledger == nil {
		return
	}
	if err := s.Ledger.RecordTaskOutcome(modelID, runTime, fh, variableID, outcome, detail); err != nil {
		log.Printf("scheduler: record task outcome: %v", err)
	}
}

// tearDownRun applies retention to the cache and publish directory after a
// run reaches COMPLETE or ABANDONED.
func (s *Scheduler) tearDownRun(model modelregistry.ModelConfig) {
	if err := s.Cache.Retain(gribcache.Policy{
		RunsPerModel: s.Cfg.Retain.RunsPerModel,
		MaxAge:       s.Cfg.Retain.CacheWindow,
	}); err != nil {
		log.Printf("scheduler: cache retention for %s: %v", model.ID, err)
	}
	if err := retainPublishDir(s.Cfg.Storage.PublishPath, model.ID, s.Cfg.Retain.RunsPerModel); err != nil {
		log.Printf("scheduler: publish retention for %s: %v", model.ID, err)
	}
}
