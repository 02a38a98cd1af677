package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nwwx/forecastpipe/internal/config"
	"github.com/nwwx/forecastpipe/internal/fetch"
	"github.com/nwwx/forecastpipe/internal/gribcache"
	"github.com/nwwx/forecastpipe/internal/metrics"
	"github.com/nwwx/forecastpipe/internal/modelregistry"
	"github.com/nwwx/forecastpipe/internal/scheduler"
	"github.com/nwwx/forecastpipe/internal/stations"
	"github.com/nwwx/forecastpipe/internal/store"
	"github.com/nwwx/forecastpipe/internal/variableregistry"
)

func main() {
	var (
		filterBaseURL = flag.String("filter-base-url", "https://nomads.ncep.noaa.gov/cgi-bin/filter_gfs_0p25", "filter-capable provider base URL")
		fullBaseURL   = flag.String("full-base-url", "https://noaa-gfs-bdp-pds.s3.amazonaws.com", "full-product fallback provider base URL")
		skipLedger    = flag.Bool("no-ledger", false, "run without the Postgres run ledger")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[PIPELINE] ", log.LstdFlags)

	if err := config.LoadEnv(); err != nil {
		logger.Fatalf("load .env: %v", err)
	}
	cfg := config.NewConfig()

	cache, err := gribcache.New(cfg.Storage.CacheRoot, cfg.Retain.PartialMaxAge)
	if err != nil {
		logger.Fatalf("open GRIB cache: %v", err)
	}

	if err := os.MkdirAll(cfg.Storage.PublishPath, 0o755); err != nil {
		logger.Fatalf("create publish directory: %v", err)
	}

	models := modelregistry.New()
	vars := variableregistry.New()
	fetcher := fetch.New(cache, cfg.Provider, cfg.Region, *filterBaseURL, *fullBaseURL)

	catalog, err := stations.Load(cfg.Stations.CatalogPath, cfg.Stations.OverridesPath, cfg.Region)
	if err != nil {
		logger.Fatalf("load station catalog: %v", err)
	}
	logger.Printf("loaded %d stations for region", len(catalog.Stations))

	var ledger *store.Ledger
	if !*skipLedger {
		db, err := store.Connect(cfg.Database)
		if err != nil {
			logger.Fatalf("connect run ledger: %v", err)
		}
		defer db.Close()
		if err := db.RunMigrations(); err != nil {
			logger.Fatalf("run ledger migrations: %v", err)
		}
		ledger = store.NewLedger(db)
	} else {
		logger.Println("run ledger disabled (-no-ledger)")
	}

	sched := scheduler.New(cfg, models, vars, fetcher, cache, catalog, ledger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Println("received shutdown signal")
		cancel()
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		logger.Printf("metrics listening on %s", cfg.Metrics.ListenAddr)
		if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server stopped: %v", err)
		}
	}()

	logger.Println("starting scheduler")
	if err := sched.Run(ctx); err != nil {
		logger.Fatalf("scheduler exited with error: %v", err)
	}
	logger.Println("scheduler stopped cleanly")
}
