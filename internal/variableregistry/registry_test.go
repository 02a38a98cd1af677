package variableregistry

import (
	"testing"

	"github.com/nwwx/forecastpipe/internal/modelregistry"
)

func TestRequirementsForExcludedVariableFails(t *testing.T) {
	r := New()
	model := modelregistry.ModelConfig{ID: "m", ExcludedVariables: map[string]bool{"snow_total": true}}
	if _, err := r.RequirementsFor("snow_total", model); err == nil {
		t.Fatal("expected an error for a model-excluded variable")
	}
}

func TestRequirementsForGatesOnPrecipTypeMasks(t *testing.T) {
	r := New()
	model := modelregistry.ModelConfig{ID: "m", HasPrecipTypeMasks: false, ExcludedVariables: map[string]bool{}}
	if _, err := r.RequirementsFor("snow_total", model); err == nil {
		t.Fatal("snow_total requires has_precip_type_masks")
	}
}

func TestRequirementsForGatesOnUpperAir(t *testing.T) {
	r := New()
	model := modelregistry.ModelConfig{ID: "m", HasUpperAir: false, ExcludedVariables: map[string]bool{}}
	if _, err := r.RequirementsFor("level850_temp_wind_mslp", model); err == nil {
		t.Fatal("level850_temp_wind_mslp requires has_upper_air")
	}
}

func TestSupportedForModelExcludesUnsatisfiedVariables(t *testing.T) {
	r := New()
	model := modelregistry.ModelConfig{
		ID:                 "m",
		HasPrecipTypeMasks: false,
		HasUpperAir:        false,
		ExcludedVariables:  map[string]bool{},
	}
	supported := r.SupportedForModel(model)
	for _, id := range supported {
		if id == "snow_total" || id == "level850_temp_wind_mslp" {
			t.Errorf("variable %q should not be supported by a model with no precip-type masks/upper air", id)
		}
	}
}

func TestRawFieldUnionDeduplicatesAcrossVariables(t *testing.T) {
	r := New()
	model := modelregistry.ModelConfig{ID: "m", HasUpperAir: true, HasPrecipTypeMasks: true, ExcludedVariables: map[string]bool{}}
	fields, err := r.RawFieldUnion([]string{"precip_total", "mslp_precip"}, model)
	if err != nil {
		t.Fatalf("RawFieldUnion: %v", err)
	}
	seen := map[string]int{}
	for _, f := range fields {
		seen[f]++
	}
	if seen["tp"] != 1 {
		t.Fatalf("expected tp exactly once across both variables, got field set %v", fields)
	}
}
