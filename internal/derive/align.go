package derive

import (
	"fmt"

	"gonum.org/v1/gonum/interp"

	"github.com/nwwx/forecastpipe/internal/griddata"
)

// AlignToGrid interpolates src (on its own regular lat/lon grid) onto the
// dstLat x dstLon grid using separable bilinear interpolation: first along
// longitude for each source row bracketing a destination latitude, then
// along latitude between those two interpolated rows. This is needed
// whenever a required pair of fields live on different grids, typical when
// a pressure-level product and a surface product are combined for one
// variable.
func AlignToGrid(src *griddata.Variable, srcLat, srcLon []float64, dstLat, dstLon []float64) (*griddata.Variable, error) {
	if len(srcLat) < 2 || len(srcLon) < 2 {
		return nil, fmt.Errorf("source grid too small to interpolate: %d lats x %d lons", len(srcLat), len(srcLon))
	}

	out := make([]float64, len(dstLon)*len(dstLat))
	rowCache := make(map[int][]float64, len(srcLat))

	lonAt := func(rowIdx int) ([]float64, error) {
		if row, ok := rowCache[rowIdx]; ok {
			return row, nil
		}
		var lon1D interp.PiecewiseLinear
		rowVals := make([]float64, len(srcLon))
		for i := range srcLon {
			rowVals[i] = src.At(i, rowIdx)
		}
		if err := lon1D.Fit(srcLon, rowVals); err != nil {
			return nil, fmt.Errorf("fit longitude row %d: %w", rowIdx, err)
		}
		row := make([]float64, len(dstLon))
		for k, lon := range dstLon {
			row[k] = lon1D.Predict(clamp(lon, srcLon[0], srcLon[len(srcLon)-1]))
		}
		rowCache[rowIdx] = row
		return row, nil
	}

	for j, lat := range dstLat {
		jLo, jHi, frac := bracket(srcLat, lat)
		rowLo, err := lonAt(jLo)
		if err != nil {
			return nil, err
		}
		rowHi, err := lonAt(jHi)
		if err != nil {
			return nil, err
		}
		for i := range dstLon {
			out[j*len(dstLon)+i] = rowLo[i]*(1-frac) + rowHi[i]*frac
		}
	}

	return &griddata.Variable{Name: src.Name, Units: src.Units, Vals: out, Nx: len(dstLon), Ny: len(dstLat)}, nil
}

// bracket finds the pair of indices in sorted coords bracketing v and the
// fractional position of v between them, clamping at the ends.
func bracket(coords []float64, v float64) (lo, hi int, frac float64) {
	if v <= coords[0] {
		return 0, 0, 0
	}
	if v >= coords[len(coords)-1] {
		last := len(coords) - 1
		return last, last, 0
	}
	for i := 1; i < len(coords); i++ {
		if coords[i] >= v {
			span := coords[i] - coords[i-1]
			if span == 0 {
				return i - 1, i, 0
			}
			return i - 1, i, (v - coords[i-1]) / span
		}
	}
	last := len(coords) - 1
	return last, last, 0
}

func clamp(v, lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
