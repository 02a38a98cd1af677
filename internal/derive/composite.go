package derive

import (
	"fmt"

	"github.com/nwwx/forecastpipe/internal/griddata"
)

// Composite co-locates previously computed single-field variables onto one
// dataset for display — e.g. MSLP + precipitation, or 850 mb
// temperature/wind/MSLP — without any further arithmetic.
func Composite(base *griddata.Dataset, fields map[string]*griddata.Variable) error {
	for name, v := range fields {
		if v.Nx != base.Nx || v.Ny != base.Ny {
			return fmt.Errorf("composite field %q is %dx%d, dataset grid is %dx%d", name, v.Nx, v.Ny, base.Nx, base.Ny)
		}
		base.Vars[name] = v
	}
	return nil
}
