// Package variableregistry is the read-only table mapping a variable_id to
// the raw/derived fields required to render it.
package variableregistry

import (
	"fmt"
	"sort"

	"github.com/nwwx/forecastpipe/internal/modelregistry"
	"github.com/nwwx/forecastpipe/internal/wxerrors"
)

// VariableRequirements is one row of the variable registry.
type VariableRequirements struct {
	ID               string
	RawFields        []string
	OptionalFields   []string
	DerivedFields    []string
	NeedsAccumulation bool
	NeedsPrecipType  bool
	NeedsSnowTotal   bool
	NeedsUpperAir    bool
	Units            string
	DisplayName      string
}

// Registry is the immutable, process-wide variable table.
type Registry struct {
	vars  map[string]VariableRequirements
	order []string
}

// New constructs the registry for the six render targets this pipeline
// publishes.
func New() *Registry {
	r := &Registry{vars: make(map[string]VariableRequirements)}

	r.add(VariableRequirements{
		ID:          "temp_2m",
		RawFields:   []string{"tmp2m"},
		Units:       "°F",
		DisplayName: "2m Temperature",
	})

	r.add(VariableRequirements{
		ID:                "precip_total",
		RawFields:         []string{"tp"},
		OptionalFields:    []string{"prate"},
		DerivedFields:     []string{"tp_total"},
		NeedsAccumulation: true,
		Units:             "in",
		DisplayName:       "Total Precipitation",
	})

	r.add(VariableRequirements{
		ID:                "snow_total",
		RawFields:         []string{"tp", "csnow"},
		OptionalFields:    []string{"prate"},
		DerivedFields:     []string{"tp_snow_total"},
		NeedsAccumulation: true,
		NeedsPrecipType:   true,
		NeedsSnowTotal:    true,
		Units:             "in",
		DisplayName:       "Total Snowfall",
	})

	r.add(VariableRequirements{
		ID:            "mslp_precip",
		RawFields:     []string{"prmsl", "tp"},
		DerivedFields: []string{"tp_total"},
		NeedsAccumulation: true,
		Units:         "hPa / in",
		DisplayName:   "MSLP + Precipitation",
	})

	r.add(VariableRequirements{
		ID:            "level850_temp_wind_mslp",
		RawFields:     []string{"tmp_850", "ugrd_850", "vgrd_850", "prmsl"},
		NeedsUpperAir: true,
		Units:         "°C / kt / hPa",
		DisplayName:   "850mb Temperature/Wind + MSLP",
	})

	r.add(VariableRequirements{
		ID:          "radar_reflectivity",
		RawFields:   []string{"refc"},
		Units:       "dBZ",
		DisplayName: "Simulated Reflectivity",
	})

	return r
}

func (r *Registry) add(v VariableRequirements) {
	r.vars[v.ID] = v
	r.order = append(r.order, v.ID)
}

// All returns every registered variable id, in registration order.
func (r *Registry) All() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// RequirementsFor looks up a variable's requirements and applies the
// model's excluded_variables list, rejecting unsupported targets.
func (r *Registry) RequirementsFor(variableID string, model modelregistry.ModelConfig) (VariableRequirements, error) {
	v, ok := r.vars[variableID]
	if !ok {
		return VariableRequirements{}, wxerrors.Config(fmt.Errorf("unknown variable %q", variableID))
	}
	if model.ExcludesVariable(variableID) {
		return VariableRequirements{}, wxerrors.Config(
			fmt.Errorf("variable %q excluded for model %q", variableID, model.ID))
	}
	if v.NeedsSnowTotal && !model.HasPrecipTypeMasks {
		return VariableRequirements{}, wxerrors.Config(
			fmt.Errorf("variable %q requires precipitation-type masks, model %q has none", variableID, model.ID))
	}
	if v.NeedsUpperAir && !model.HasUpperAir {
		return VariableRequirements{}, wxerrors.Config(
			fmt.Errorf("variable %q requires upper-air levels, model %q has none", variableID, model.ID))
	}
	return v, nil
}

// SupportedForModel returns the variable ids a model can render: every
// registered variable minus the model's excluded set and any whose flags
// the model's capabilities cannot satisfy.
func (r *Registry) SupportedForModel(model modelregistry.ModelConfig) []string {
	var out []string
	for _, id := range r.order {
		if _, err := r.RequirementsFor(id, model); err == nil {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// RawFieldUnion collects the union of raw+optional fields needed to satisfy
// variableIDs for model, so the fetcher can issue one request per
// (run_time, forecast_hour, product) covering all of them.
func (r *Registry) RawFieldUnion(variableIDs []string, model modelregistry.ModelConfig) ([]string, error) {
	seen := make(map[string]bool)
	var fields []string
	for _, id := range variableIDs {
		req, err := r.RequirementsFor(id, model)
		if err != nil {
			return nil, err
		}
		for _, f := range append(append([]string{}, req.RawFields...), req.OptionalFields...) {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}
	sort.Strings(fields)
	return fields, nil
}
