package mapgen

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nwwx/forecastpipe/internal/griddata"
	"github.com/nwwx/forecastpipe/internal/stations"
	"github.com/nwwx/forecastpipe/internal/variableregistry"
	"github.com/nwwx/forecastpipe/internal/wxerrors"
)

// Region is the geographic extent and target pixel width a map is
// rendered at.
type Region struct {
	West, South, East, North float64
	PixelWidth               int
}

// Overlay carries the sampled, decluttered stations to label on the map,
// and the policy that was applied to produce them.
type Overlay struct {
	Policy   stations.OverlayPolicy
	Stations []stations.LabeledStation
}

// Filename builds the canonical published-artifact filename:
// {model_id}_{YYYYMMDD}_{HH}_{variable_id}_{FFF}.png
func Filename(modelID string, runTime time.Time, variableID string, forecastHour int) string {
	return fmt.Sprintf("%s_%s_%s_%s_%03d.png",
		modelID, runTime.Format("20060102"), runTime.Format("15"), variableID, forecastHour)
}

// ArtifactKey is the parsed identity of a PublishArtifact filename.
type ArtifactKey struct {
	ModelID      string
	RunTime      time.Time
	VariableID   string
	ForecastHour int
}

// ParseFilename is the inverse of Filename: parse ∘ build is the identity
// on valid tuples, making this the consumer-side canonical source of truth
// for what a published file represents.
func ParseFilename(name string) (ArtifactKey, error) {
	name = strings.TrimSuffix(name, ".png")
	parts := strings.Split(name, "_")
	if len(parts) < 5 {
		return ArtifactKey{}, fmt.Errorf("malformed publish filename %q", name)
	}
	forecastHour, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return ArtifactKey{}, fmt.Errorf("malformed forecast hour in %q: %w", name, err)
	}
	variableID := strings.Join(parts[3:len(parts)-1], "_")
	runTime, err := time.Parse("20060102_15", parts[1]+"_"+parts[2])
	if err != nil {
		return ArtifactKey{}, fmt.Errorf("malformed run time in %q: %w", name, err)
	}
	return ArtifactKey{
		ModelID:      parts[0],
		RunTime:      runTime,
		VariableID:   variableID,
		ForecastHour: forecastHour,
	}, nil
}

// GenerateMap renders one variable's dataset to the publish directory and
// returns the published path. On any failure it removes the partial file
// (if one was created) and returns a RenderError; resources are always
// released before return, success or failure.
func GenerateMap(publishDir string, ds *griddata.Dataset, reqs variableregistry.VariableRequirements, modelID, displayColor string, runTime time.Time, forecastHour int, region Region, overlay Overlay) (publishPath string, err error) {
	scale, ok := ScaleFor(reqs.ID)
	if !ok {
		return "", wxerrors.New(wxerrors.KindRender, modelID, runTime.Format(time.RFC3339), forecastHour, reqs.ID,
			fmt.Errorf("no registered color scale for variable %q", reqs.ID))
	}

	primaryField := reqs.ID
	if len(reqs.DerivedFields) > 0 {
		primaryField = reqs.DerivedFields[0]
	} else if len(reqs.RawFields) > 0 {
		primaryField = reqs.RawFields[0]
	}

	canvas := NewRasterCanvas(region.West, region.South, region.East, region.North, region.PixelWidth)

	final := filepath.Join(publishDir, Filename(modelID, runTime, reqs.ID, forecastHour))
	partial := final + ".partial"

	renderErr := func() error {
		if err := canvas.DrawRaster(ds, primaryField, scale); err != nil {
			return err
		}

		if overlay.Policy.Enabled {
			for _, labeled := range overlay.Stations {
				canvas.DrawStationLabel(labeled.Station.Lon, labeled.Station.Lat, fmt.Sprintf("%.1f", labeled.Value))
			}
		}

		canvas.DrawLegend([]string{
			reqs.DisplayName + " (" + reqs.Units + ")",
			fmt.Sprintf("%s  run %s %sZ  fh %03d  valid %s",
				modelID, runTime.Format("2006-01-02"), runTime.Format("15"), forecastHour,
				runTime.Add(time.Duration(forecastHour)*time.Hour).Format("2006-01-02 15:00 MST")),
		})

		f, err := os.Create(partial)
		if err != nil {
			return err
		}
		defer f.Close()
		return canvas.WriteTo(f)
	}()

	if renderErr != nil {
		os.Remove(partial)
		return "", wxerrors.New(wxerrors.KindRender, modelID, runTime.Format(time.RFC3339), forecastHour, reqs.ID, renderErr)
	}

	if err := os.Rename(partial, final); err != nil {
		os.Remove(partial)
		return "", wxerrors.New(wxerrors.KindRender, modelID, runTime.Format(time.RFC3339), forecastHour, reqs.ID,
			fmt.Errorf("publish rename: %w", err))
	}

	return final, nil
}
