package gribcache

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Policy bounds how many run directories per model are retained.
type Policy struct {
	RunsPerModel int
	MaxAge       time.Duration
	// InFlight lists run directory names (YYYYMMDD_HH) that must never be
	// deleted regardless of policy: an in-flight run is never eligible for
	// deletion.
	InFlight map[string]bool
}

// Retain deletes whole cache run-directories whose run_time falls outside
// policy, never truncating a file and never touching an in-flight run.
// Idempotent: a second call with the same policy and no new writes is a
// no-op.
func (c *Cache) Retain(policy Policy) error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, modelEntry := range entries {
		if !modelEntry.IsDir() {
			continue
		}
		modelDir := filepath.Join(c.root, modelEntry.Name())
		runDirs, err := os.ReadDir(modelDir)
		if err != nil {
			continue
		}

		var names []string
		for _, rd := range runDirs {
			if rd.IsDir() {
				names = append(names, rd.Name())
			}
		}
		sort.Strings(names) // YYYYMMDD_HH sorts chronologically as strings

		cutoffIdx := len(names) - policy.RunsPerModel
		now := time.Now()
		for i, name := range names {
			if policy.InFlight[name] {
				continue
			}
			byCount := policy.RunsPerModel > 0 && i < cutoffIdx
			byAge := policy.MaxAge > 0 && runDirAge(name, now) > policy.MaxAge
			if byCount || byAge {
				os.RemoveAll(filepath.Join(modelDir, name))
			}
		}
	}
	return nil
}

func runDirAge(name string, now time.Time) time.Duration {
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 {
		return 0
	}
	t, err := time.Parse("20060102_15", parts[0]+"_"+parts[1])
	if err != nil {
		return 0
	}
	return now.Sub(t)
}
