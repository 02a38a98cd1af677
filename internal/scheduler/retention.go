package scheduler

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/nwwx/forecastpipe/internal/mapgen"
)

// retainPublishDir keeps only the runsPerModel most recent run_times'
// published artifacts for modelID, deleting the rest. It parses each
// filename with mapgen.ParseFilename rather than trusting directory
// listing order, since a published artifact's run_time is the only
// reliable recency signal (mtime survives a republish, a clock change, or
// a restore from backup differently than the filename does).
func retainPublishDir(publishDir, modelID string, runsPerModel int) error {
	if runsPerModel <= 0 {
		return nil
	}

	entries, err := os.ReadDir(publishDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	runTimes := make(map[int64][]string) // run_time unix -> filenames
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, err := mapgen.ParseFilename(e.Name())
		if err != nil || key.ModelID != modelID {
			continue
		}
		unix := key.RunTime.Unix()
		runTimes[unix] = append(runTimes[unix], e.Name())
	}
	if len(runTimes) <= runsPerModel {
		return nil
	}

	var uniq []int64
	for t := range runTimes {
		uniq = append(uniq, t)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	cut := len(uniq) - runsPerModel
	for _, t := range uniq[:cut] {
		for _, name := range runTimes[t] {
			os.Remove(filepath.Join(publishDir, name))
		}
	}
	return nil
}
