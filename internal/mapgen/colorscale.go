// Package mapgen implements the map generator: it renders one GridDataset
// variable to a published raster image with a fixed color scale, optional
// station-value overlay, and a legend.
package mapgen

import "image/color"

// ColorScale is a fixed set of level breaks and the fill color for values
// falling in each bucket. Breaks are identical across every run and
// forecast hour for a given variable so consecutive frames of an
// animation are visually comparable.
type ColorScale struct {
	Levels []float64
	Colors []color.NRGBA
	// Below is used for values under Levels[0]; Above for values at or
	// above the final break.
	Below, Above color.NRGBA
}

// ColorFor returns the fill color for value under this scale's level table.
func (cs ColorScale) ColorFor(value float64) color.NRGBA {
	for i, level := range cs.Levels {
		if value < level {
			if i == 0 {
				return cs.Below
			}
			return cs.Colors[i-1]
		}
	}
	return cs.Above
}

// defaultScales are the production color tables for the six registered
// variables. Breaks are chosen in each field's display unit.
var defaultScales = map[string]ColorScale{
	"temp_2m": {
		Levels: []float64{0, 20, 32, 45, 60, 75, 90, 100},
		Colors: []color.NRGBA{
			{R: 140, G: 0, B: 140, A: 255},
			{R: 0, G: 0, B: 200, A: 255},
			{R: 0, G: 140, B: 220, A: 255},
			{R: 0, G: 180, B: 80, A: 255},
			{R: 230, G: 220, B: 0, A: 255},
			{R: 240, G: 140, B: 0, A: 255},
			{R: 220, G: 0, B: 0, A: 255},
		},
		Below: color.NRGBA{R: 80, G: 0, B: 80, A: 255},
		Above: color.NRGBA{R: 140, G: 0, B: 0, A: 255},
	},
	"precip_total": {
		Levels: []float64{0.01, 0.1, 0.25, 0.5, 1, 2, 4},
		Colors: []color.NRGBA{
			{R: 170, G: 230, B: 170, A: 255},
			{R: 80, G: 200, B: 80, A: 255},
			{R: 0, G: 160, B: 60, A: 255},
			{R: 0, G: 120, B: 200, A: 255},
			{R: 0, G: 60, B: 200, A: 255},
			{R: 150, G: 0, B: 200, A: 255},
		},
		Below: color.NRGBA{A: 0},
		Above: color.NRGBA{R: 200, G: 0, B: 120, A: 255},
	},
	"snow_total": {
		Levels: []float64{0.1, 1, 2, 4, 8, 12, 18},
		Colors: []color.NRGBA{
			{R: 200, G: 220, B: 255, A: 255},
			{R: 140, G: 180, B: 255, A: 255},
			{R: 80, G: 140, B: 255, A: 255},
			{R: 0, G: 90, B: 230, A: 255},
			{R: 120, G: 0, B: 200, A: 255},
			{R: 200, G: 0, B: 120, A: 255},
		},
		Below: color.NRGBA{A: 0},
		Above: color.NRGBA{R: 150, G: 0, B: 80, A: 255},
	},
	"mslp_precip": {
		Levels: []float64{0.01, 0.1, 0.25, 0.5, 1, 2},
		Colors: []color.NRGBA{
			{R: 170, G: 230, B: 170, A: 255},
			{R: 80, G: 200, B: 80, A: 255},
			{R: 0, G: 160, B: 60, A: 255},
			{R: 0, G: 120, B: 200, A: 255},
			{R: 0, G: 60, B: 200, A: 255},
		},
		Below: color.NRGBA{A: 0},
		Above: color.NRGBA{R: 150, G: 0, B: 200, A: 255},
	},
	"level850_temp_wind_mslp": {
		Levels: []float64{-20, -10, 0, 10, 20, 30},
		Colors: []color.NRGBA{
			{R: 0, G: 0, B: 200, A: 255},
			{R: 0, G: 140, B: 220, A: 255},
			{R: 0, G: 180, B: 80, A: 255},
			{R: 230, G: 220, B: 0, A: 255},
			{R: 240, G: 140, B: 0, A: 255},
		},
		Below: color.NRGBA{R: 80, G: 0, B: 160, A: 255},
		Above: color.NRGBA{R: 200, G: 0, B: 0, A: 255},
	},
	"radar_reflectivity": {
		Levels: []float64{5, 15, 25, 35, 45, 55, 65},
		Colors: []color.NRGBA{
			{R: 0, G: 200, B: 230, A: 255},
			{R: 0, G: 160, B: 0, A: 255},
			{R: 230, G: 220, B: 0, A: 255},
			{R: 240, G: 140, B: 0, A: 255},
			{R: 220, G: 0, B: 0, A: 255},
			{R: 200, G: 0, B: 200, A: 255},
		},
		Below: color.NRGBA{A: 0},
		Above: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
	},
}

// ScaleFor returns the fixed color scale for a variable, or ok=false if the
// variable has no registered scale (a configuration bug — the scheduler
// should never dispatch a render for such a variable).
func ScaleFor(variableID string) (ColorScale, bool) {
	cs, ok := defaultScales[variableID]
	return cs, ok
}
