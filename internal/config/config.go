// Package config loads process-wide, immutable-after-startup configuration
// for the forecast-map pipeline.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-configurable setting for the pipeline.
type Config struct {
	Storage  StorageConfig
	Region   BoundingBox
	Retain   RetentionConfig
	Provider ProviderConfig
	Workers  WorkerConfig
	Monitor  MonitorConfig
	Stations StationConfig
	Database DatabaseConfig
	Metrics  MetricsConfig
}

// StorageConfig points at the publish directory and the GRIB cache root.
type StorageConfig struct {
	PublishPath string
	CacheRoot   string
}

// BoundingBox is the region bbox (west, south, east, north) in degrees,
// longitudes west-negative, that every published map is subset to.
type BoundingBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// RetentionConfig bounds how much history is kept on disk; the ledger is not pruned.
type RetentionConfig struct {
	RunsPerModel     int
	CacheWindow      time.Duration
	PartialMaxAge    time.Duration
}

// ProviderConfig configures retry/backoff and per-provider timeouts for the
// data fetcher.
type ProviderConfig struct {
	PerAttemptTimeout time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

// WorkerConfig bounds the render worker pool.
type WorkerConfig struct {
	MaxWorkers       int
	LowMemThreshGB   float64
	HeadroomGB       float64
	MemPerWorkerGB   float64
}

// MonitorConfig controls the scheduler's MONITORING state.
type MonitorConfig struct {
	CheckInterval    time.Duration
	Window           time.Duration
	ShutdownDeadline time.Duration
}

// StationConfig points at the station catalog and its override file.
type StationConfig struct {
	CatalogPath   string
	OverridesPath string
}

// DatabaseConfig configures the Postgres-backed run ledger.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	ListenAddr string
}

// LoadEnv loads a local .env file if present. Missing files are not an error.
func LoadEnv() error {
	err := godotenv.Load()
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// NewConfig builds a Config from environment variables, falling back to a
// hard-coded default inline wherever a variable is unset or invalid.
func NewConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			PublishPath: getEnv("STORAGE_PATH", "./data/images"),
			CacheRoot:   getEnv("CACHE_ROOT", "./data/cache"),
		},
		Region: BoundingBox{
			West:  getEnvFloat("REGION_WEST", -130.0),
			South: getEnvFloat("REGION_SOUTH", 40.0),
			East:  getEnvFloat("REGION_EAST", -110.0),
			North: getEnvFloat("REGION_NORTH", 55.0),
		},
		Retain: RetentionConfig{
			RunsPerModel:  getEnvInt("RETAIN_RUNS_PER_MODEL", 4),
			CacheWindow:   getEnvDuration("RETAIN_CACHE_WINDOW", 48*time.Hour),
			PartialMaxAge: getEnvDuration("RETAIN_PARTIAL_MAX_AGE", 1*time.Hour),
		},
		Provider: ProviderConfig{
			PerAttemptTimeout: getEnvDuration("PROVIDER_TIMEOUT", 120*time.Second),
			MaxAttempts:       getEnvInt("PROVIDER_MAX_ATTEMPTS", 3),
			InitialBackoff:    getEnvDuration("PROVIDER_INITIAL_BACKOFF", 1*time.Second),
			MaxBackoff:        getEnvDuration("PROVIDER_MAX_BACKOFF", 30*time.Second),
		},
		Workers: WorkerConfig{
			MaxWorkers:     getEnvInt("MAX_WORKERS", 8),
			LowMemThreshGB: getEnvFloat("LOW_MEM_THRESHOLD_GB", 6.0),
			HeadroomGB:     getEnvFloat("MEM_HEADROOM_GB", 4.0),
			MemPerWorkerGB: getEnvFloat("MEM_PER_WORKER_GB", 4.0),
		},
		Monitor: MonitorConfig{
			CheckInterval:    getEnvDuration("CHECK_INTERVAL", 60*time.Second),
			Window:           getEnvDuration("MONITORING_WINDOW", 90*time.Minute),
			ShutdownDeadline: getEnvDuration("SHUTDOWN_DEADLINE", 30*time.Second),
		},
		Stations: StationConfig{
			CatalogPath:   getEnv("STATION_CATALOG_PATH", "./data/stations.json"),
			OverridesPath: getEnv("STATION_OVERRIDES_PATH", "./data/station_overrides.json"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "forecastpipe"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Name:     getEnv("POSTGRES_DB", "forecastpipe"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Metrics: MetricsConfig{
			ListenAddr: getEnv("METRICS_LISTEN_ADDR", "127.0.0.1:9108"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}
