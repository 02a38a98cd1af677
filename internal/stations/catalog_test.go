package stations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nwwx/forecastpipe/internal/config"
)

func writeJSON(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFiltersToRegionUnlessAlwaysInclude(t *testing.T) {
	dir := t.TempDir()
	catalogPath := writeJSON(t, dir, "stations.json", `[
		{"id": "in-region", "lat": 45, "lon": -120, "weight": 1},
		{"id": "out-of-region", "lat": 10, "lon": -10, "weight": 1},
		{"id": "forced", "lat": 10, "lon": -10, "weight": 1, "always_include": true}
	]`)
	region := config.BoundingBox{West: -130, South: 40, East: -110, North: 55}

	cat, err := Load(catalogPath, filepath.Join(dir, "missing.json"), region)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ids := map[string]bool{}
	for _, s := range cat.Stations {
		ids[s.ID] = true
	}
	if !ids["in-region"] {
		t.Error("expected in-region station to survive filtering")
	}
	if ids["out-of-region"] {
		t.Error("expected out-of-region station to be dropped")
	}
	if !ids["forced"] {
		t.Error("expected always_include station to survive despite being outside region")
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	catalogPath := writeJSON(t, dir, "stations.json", `[
		{"id": "a", "lat": 45, "lon": -120, "weight": 1, "always_include": false}
	]`)
	overridesPath := writeJSON(t, dir, "overrides.json", `{
		"a": {"weight": 9.5, "always_include": true}
	}`)
	region := config.BoundingBox{West: -130, South: 40, East: -110, North: 55}

	cat, err := Load(catalogPath, overridesPath, region)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.Stations) != 1 {
		t.Fatalf("expected 1 station, got %d", len(cat.Stations))
	}
	got := cat.Stations[0]
	if got.Weight != 9.5 || !got.AlwaysInclude {
		t.Fatalf("override not applied: %+v", got)
	}
}

func TestLoadMissingOverridesFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	catalogPath := writeJSON(t, dir, "stations.json", `[{"id": "a", "lat": 45, "lon": -120, "weight": 1}]`)
	region := config.BoundingBox{West: -130, South: 40, East: -110, North: 55}

	if _, err := Load(catalogPath, filepath.Join(dir, "does-not-exist.json"), region); err != nil {
		t.Fatalf("Load should tolerate a missing overrides file: %v", err)
	}
}

func TestLoadMissingCatalogFails(t *testing.T) {
	dir := t.TempDir()
	region := config.BoundingBox{West: -130, South: 40, East: -110, North: 55}
	if _, err := Load(filepath.Join(dir, "nope.json"), filepath.Join(dir, "nope2.json"), region); err == nil {
		t.Fatal("expected an error for a missing catalog file")
	}
}
