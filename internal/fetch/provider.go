// Package fetch implements the per-provider data fetcher: given
// (model_id, run_time, forecast_hour, raw_field_set), it materializes a
// canonical GridDataset covering the regional bounding box.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// Provider fetches one product file (or byte-subset of one) for a given
// model run/forecast-hour/product into the cache's ".partial" path.
// Implementations correspond to the pipeline's two upstream protocols: a
// filter-capable index+Range endpoint, and a full-product download.
type Provider struct {
	Name    string
	Client  *http.Client
	// BaseURL is the provider's root, e.g.
	// "https://nomads.ncep.noaa.gov/cgi-bin/filter_gfs" for a filter-capable
	// endpoint, or an S3/object-store bucket root otherwise.
	BaseURL string
	// FilterCapable providers support server-side field/region subsetting
	// via an index file + byte-range GET, modeled on Geal-AI-grib2hrrr's
	// HRRRClient (idx lookup + Range request).
	FilterCapable bool
}

// request describes one download from a specific provider.
type request struct {
	ModelID      string
	RunDate      string // YYYYMMDD
	RunHour      string // HH
	ForecastHour int
	Product      string
	Fields       []string // canonical field names this request must yield
	RegionWSEN   [4]float64
}

// fetchFilterCapable issues one byte-range request per matching .idx line
// and concatenates the resulting GRIB2 messages into partialPath.
// This mirrors Geal-AI-grib2hrrr's two-step idx-lookup-then-Range-GET.
func (p *Provider) fetchFilterCapable(ctx context.Context, req request, partialPath string) error {
	idxURL := p.productURL(req) + ".idx"

	idx, err := p.getBody(ctx, idxURL, maxIdxBytes)
	if err != nil {
		return fmt.Errorf("index fetch: %w", err)
	}

	ranges, err := matchByteRanges(idx, req.Fields)
	if err != nil {
		return err
	}

	out, err := createFile(partialPath)
	if err != nil {
		return err
	}
	defer out.Close()

	gribURL := p.productURL(req)
	for _, r := range ranges {
		chunk, err := p.getRange(ctx, gribURL, r.start, r.end)
		if err != nil {
			return fmt.Errorf("range fetch %d-%d: %w", r.start, r.end, err)
		}
		if _, err := out.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// fetchFullProduct downloads the whole product file unfiltered, for
// providers without server-side subsetting.
func (p *Provider) fetchFullProduct(ctx context.Context, req request, partialPath string) error {
	body, err := p.getBody(ctx, p.productURL(req), maxGRIBBytes)
	if err != nil {
		return err
	}
	out, err := createFile(partialPath)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = out.Write(body)
	return err
}

const (
	maxIdxBytes  = 10 << 20
	maxGRIBBytes = 256 << 20
)

// productURL builds the full-product URL:
// …/{model}.YYYYMMDD/HH/…/{model}.tHHz.{product}.fFFF.grib2
func (p *Provider) productURL(req request) string {
	return fmt.Sprintf("%s/%s.%s/%s/%s.t%sz.%s.f%03d.grib2",
		p.BaseURL, req.ModelID, req.RunDate, req.RunHour,
		req.ModelID, req.RunHour, req.Product, req.ForecastHour)
}

func (p *Provider) getBody(ctx context.Context, url string, limit int64) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusErr(resp.StatusCode, url); err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

func (p *Provider) getRange(ctx context.Context, url string, start, end int64) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if end == math.MaxInt64 {
		httpReq.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))
	} else {
		httpReq.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	}
	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{Code: resp.StatusCode, URL: url}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxGRIBBytes))
}

// Probe issues a cheap HEAD request to check whether a forecast hour's
// product file exists yet, without downloading it.
func (p *Provider) Probe(ctx context.Context, req request) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, p.productURL(req), nil)
	if err != nil {
		return false, err
	}
	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

type byteRange struct {
	start, end int64
}

// matchByteRanges parses a NOMADS/NCEP-style ".idx" listing (one
// colon-delimited line per message: "N:offset:date:PARAM:LEVEL:...") and
// returns the byte ranges covering the requested canonical fields, exactly
// as Geal-AI-grib2hrrr's findByteRange does for a single field.
func matchByteRanges(idx []byte, fields []string) ([]byteRange, error) {
	lines := strings.Split(strings.TrimSpace(string(idx)), "\n")
	wanted := make(map[string]bool, len(fields))
	for _, f := range fields {
		wanted[canonicalToIdxToken(f)] = true
	}

	var ranges []byteRange
	for i, line := range lines {
		matched := false
		for token := range wanted {
			if strings.Contains(line, token) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			continue
		}
		start, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		end := int64(math.MaxInt64)
		if i+1 < len(lines) {
			nextParts := strings.Split(lines[i+1], ":")
			if len(nextParts) >= 2 {
				if nextStart, err := strconv.ParseInt(nextParts[1], 10, 64); err == nil {
					end = nextStart - 1
				}
			}
		}
		ranges = append(ranges, byteRange{start: start, end: end})
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no index entries matched requested fields %v", fields)
	}
	return ranges, nil
}

// canonicalToIdxToken maps a canonical field name to the substring expected
// in a provider's .idx listing.
func canonicalToIdxToken(field string) string {
	tokens := map[string]string{
		"tmp2m":  ":TMP:2 m above ground:",
		"tmp_850": ":TMP:850 mb:",
		"ugrd_850": ":UGRD:850 mb:",
		"vgrd_850": ":VGRD:850 mb:",
		"ugrd10m": ":UGRD:10 m above ground:",
		"vgrd10m": ":VGRD:10 m above ground:",
		"prmsl":  ":PRMSL:mean sea level:",
		"tp":     ":APCP:surface:",
		"prate":  ":PRATE:surface:",
		"csnow":  ":CSNOW:surface:",
		"refc":   ":REFC:entire atmosphere:",
	}
	if t, ok := tokens[field]; ok {
		return t
	}
	return field
}

func statusErr(code int, url string) error {
	if code == http.StatusOK {
		return nil
	}
	return &httpStatusError{Code: code, URL: url}
}
