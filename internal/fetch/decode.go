package fetch

import (
	"fmt"
	"os"

	"github.com/nilsmagnus/grib/griblib"
	"github.com/nwwx/forecastpipe/internal/griddata"
	"github.com/nwwx/forecastpipe/internal/wxerrors"
)

// paramKey identifies a GRIB2 message by its parameter category/number pair
// and level description, used to pick out the messages matching requested
// canonical fields and rename them to canonical names.
type paramKey struct {
	category int
	number   int
	level    string // "surface", "2 m above ground", "850 mb", "mean sea level", "entire atmosphere", "10 m above ground"
}

// canonicalParams maps each canonical field name this pipeline understands
// to the WMO GRIB2 parameter identity that produces it.
var canonicalParams = map[string]paramKey{
	"tmp2m":    {category: 0, number: 0, level: "2 m above ground"},
	"tmp_850":  {category: 0, number: 0, level: "850 mb"},
	"ugrd10m":  {category: 2, number: 2, level: "10 m above ground"},
	"vgrd10m":  {category: 2, number: 3, level: "10 m above ground"},
	"ugrd_850": {category: 2, number: 2, level: "850 mb"},
	"vgrd_850": {category: 2, number: 3, level: "850 mb"},
	"prmsl":    {category: 3, number: 1, level: "mean sea level"},
	"tp":       {category: 1, number: 8, level: "surface"},
	"prate":    {category: 1, number: 7, level: "surface"},
	"csnow":    {category: 1, number: 192, level: "surface"},
	"refc":     {category: 16, number: 196, level: "entire atmosphere"},
}

// decodeFields opens a downloaded GRIB2 file, selects the messages matching
// wantFields, and builds a Dataset with canonical variable names. Time-like
// coordinates never make it onto the Dataset — only the grid and the
// requested values are copied across.
func decodeFields(path, modelID string, runHour, forecastHr int, wantFields []string) (*griddata.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wxerrors.New(wxerrors.KindDataDecode, modelID, "", forecastHr, "", err)
	}
	defer f.Close()

	messages, err := griblib.ReadMessages(f)
	if err != nil {
		return nil, wxerrors.New(wxerrors.KindDataDecode, modelID, "", forecastHr, "", err)
	}

	want := make(map[string]paramKey, len(wantFields))
	for _, name := range wantFields {
		if pk, ok := canonicalParams[name]; ok {
			want[name] = pk
		}
	}

	var ds *griddata.Dataset
	for _, msg := range messages {
		pk, name, ok := matchMessage(msg, want)
		if !ok {
			continue
		}
		grid, vals, err := extractGrid(msg)
		if err != nil {
			return nil, wxerrors.New(wxerrors.KindDataDecode, modelID, "", forecastHr, name, err)
		}
		if ds == nil {
			ds = griddata.New(modelID, runHour, forecastHr, grid.kind)
			ds.Lat1D, ds.Lon1D = grid.lat1D, grid.lon1D
			ds.Nx, ds.Ny = grid.nx, grid.ny
			if ds.Lon1D != nil {
				griddata.NormalizeLongitudes1D(ds.Lon1D)
			}
		}
		ds.Vars[name] = Variable_(name, vals, grid.nx, grid.ny)
		_ = pk
	}

	if ds == nil {
		return nil, wxerrors.New(wxerrors.KindMissingField, modelID, "", forecastHr, "",
			fmt.Errorf("no requested fields (%v) found in decoded file", wantFields))
	}

	if missing := missingFields(ds, wantFields); len(missing) > 0 {
		return nil, wxerrors.New(wxerrors.KindMissingField, modelID, "", forecastHr, "",
			fmt.Errorf("fields absent after decode: %v", missing))
	}

	return ds, nil
}

func missingFields(ds *griddata.Dataset, want []string) []string {
	var missing []string
	for _, f := range want {
		if !ds.HasField(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// decodedGrid is the grid shape recovered from a message's Section 3.
type decodedGrid struct {
	kind  griddata.CoordKind
	lat1D []float64
	lon1D []float64
	nx, ny int
}

// matchMessage reports whether msg's parameter+level identity is one of the
// wanted canonical fields, by inspecting Section 4's product definition
// (parameter category/number and first fixed surface).
func matchMessage(msg griblib.Message, want map[string]paramKey) (paramKey, string, bool) {
	cat := int(msg.Section4.ProductDefinitionTemplate.ParameterCategory)
	num := int(msg.Section4.ProductDefinitionTemplate.ParameterNumber)
	level := levelDescription(msg)
	for name, pk := range want {
		if pk.category == cat && pk.number == num && (pk.level == "" || pk.level == level) {
			return pk, name, true
		}
	}
	return paramKey{}, "", false
}

func levelDescription(msg griblib.Message) string {
	pdt := msg.Section4.ProductDefinitionTemplate
	switch pdt.FirstFixedSurfaceType {
	case 100:
		return fmt.Sprintf("%d mb", int(pdt.FirstFixedSurfaceValue/100))
	case 101:
		return "mean sea level"
	case 103:
		if pdt.FirstFixedSurfaceValue == 2 {
			return "2 m above ground"
		}
		if pdt.FirstFixedSurfaceValue == 10 {
			return "10 m above ground"
		}
	case 1:
		return "surface"
	case 10:
		return "entire atmosphere"
	}
	return ""
}

// extractGrid reads Section 3's grid definition and Section 7's unpacked
// values into a flat row-major slice.
func extractGrid(msg griblib.Message) (decodedGrid, []float64, error) {
	def := msg.Section3.GridDefinition
	nx, ny := int(def.Nx), int(def.Ny)
	if nx <= 0 || ny <= 0 {
		return decodedGrid{}, nil, fmt.Errorf("invalid grid dimensions %dx%d", nx, ny)
	}

	lat1D := make([]float64, ny)
	lon1D := make([]float64, nx)
	la1 := float64(def.La1) / 1e6
	lo1 := float64(def.Lo1) / 1e6
	di := float64(def.Di) / 1e6
	dj := float64(def.Dj) / 1e6
	for j := 0; j < ny; j++ {
		lat1D[j] = la1 + float64(j)*dj
	}
	for i := 0; i < nx; i++ {
		lon1D[i] = lo1 + float64(i)*di
	}

	vals := msg.Section7.Data
	if len(vals) != nx*ny {
		return decodedGrid{}, nil, fmt.Errorf("decoded %d values, expected %dx%d=%d", len(vals), nx, ny, nx*ny)
	}

	return decodedGrid{kind: griddata.CoordRegularLatLon, lat1D: lat1D, lon1D: lon1D, nx: nx, ny: ny}, vals, nil
}

// Variable_ avoids exporting a constructor name that collides with
// griddata.Variable's zero-value construction style used elsewhere.
func Variable_(name string, vals []float64, nx, ny int) *griddata.Variable {
	return &griddata.Variable{Name: name, Vals: vals, Nx: nx, Ny: ny}
}
