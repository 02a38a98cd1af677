// Package stations implements the station catalog and per-model grid
// sampler: a fixed set of point locations sampled out of a GridDataset and
// decluttered for legible map overlays.
package stations

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nwwx/forecastpipe/internal/config"
)

// Station is one catalog entry. IDs are internal lookup keys only and are
// never rendered onto a map.
type Station struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	AlwaysInclude bool    `json:"always_include"`
	Weight        float64 `json:"weight"`
}

type override struct {
	AlwaysInclude *bool    `json:"always_include"`
	Weight        *float64 `json:"weight"`
}

// Catalog is the process-wide, filtered station list: loaded once, trimmed
// to the configured region bbox on first use.
type Catalog struct {
	Stations []Station
}

// Load reads the station catalog JSON and an optional overrides file
// keyed by station id, then filters to region.
func Load(catalogPath, overridesPath string, region config.BoundingBox) (*Catalog, error) {
	raw, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("read station catalog: %w", err)
	}
	var all []Station
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("parse station catalog: %w", err)
	}

	overrides, err := loadOverrides(overridesPath)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if ov, ok := overrides[all[i].ID]; ok {
			if ov.AlwaysInclude != nil {
				all[i].AlwaysInclude = *ov.AlwaysInclude
			}
			if ov.Weight != nil {
				all[i].Weight = *ov.Weight
			}
		}
	}

	var filtered []Station
	for _, s := range all {
		if s.AlwaysInclude || inRegion(s, region) {
			filtered = append(filtered, s)
		}
	}

	return &Catalog{Stations: filtered}, nil
}

func loadOverrides(path string) (map[string]override, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]override{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read station overrides: %w", err)
	}
	var overrides map[string]override
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse station overrides: %w", err)
	}
	return overrides, nil
}

func inRegion(s Station, region config.BoundingBox) bool {
	return s.Lon >= region.West && s.Lon <= region.East && s.Lat >= region.South && s.Lat <= region.North
}
