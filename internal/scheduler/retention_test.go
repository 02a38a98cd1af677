package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nwwx/forecastpipe/internal/mapgen"
)

func touchArtifact(t *testing.T, dir, modelID string, runTime time.Time, variableID string, fh int) {
	t.Helper()
	name := mapgen.Filename(modelID, runTime, variableID, fh)
	if err := os.WriteFile(filepath.Join(dir, name), []byte("png"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestRetainPublishDirKeepsMostRecentRuns(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	var runTimes []time.Time
	for i := 0; i < 5; i++ {
		rt := base.Add(time.Duration(i) * 6 * time.Hour)
		runTimes = append(runTimes, rt)
		touchArtifact(t, dir, "gfs025", rt, "temp_2m", 0)
		touchArtifact(t, dir, "gfs025", rt, "precip_total", 6)
	}

	if err := retainPublishDir(dir, "gfs025", 2); err != nil {
		t.Fatalf("retainPublishDir: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	survivingRunTimes := map[time.Time]bool{}
	for _, e := range entries {
		key, err := mapgen.ParseFilename(e.Name())
		if err != nil {
			t.Fatalf("ParseFilename(%q): %v", e.Name(), err)
		}
		survivingRunTimes[key.RunTime] = true
	}
	if len(survivingRunTimes) != 2 {
		t.Fatalf("expected 2 surviving run_times, got %d: %v", len(survivingRunTimes), survivingRunTimes)
	}
	for i, rt := range runTimes {
		wantKept := i >= 3
		if wantKept != survivingRunTimes[rt] {
			t.Errorf("run %d (%v) kept=%v, want %v", i, rt, survivingRunTimes[rt], wantKept)
		}
	}
}

func TestRetainPublishDirLeavesOtherModelsAlone(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		touchArtifact(t, dir, "gfs025", base.Add(time.Duration(i)*6*time.Hour), "temp_2m", 0)
	}
	touchArtifact(t, dir, "graphwx", base, "temp_2m", 0)

	if err := retainPublishDir(dir, "gfs025", 1); err != nil {
		t.Fatalf("retainPublishDir: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	var sawGraphwx bool
	for _, e := range entries {
		key, err := mapgen.ParseFilename(e.Name())
		if err != nil {
			t.Fatalf("ParseFilename(%q): %v", e.Name(), err)
		}
		if key.ModelID == "graphwx" {
			sawGraphwx = true
		}
	}
	if !sawGraphwx {
		t.Fatal("retention for gfs025 should not touch graphwx's artifacts")
	}
}

func TestRetainPublishDirNonPositiveIsNoop(t *testing.T) {
	dir := t.TempDir()
	touchArtifact(t, dir, "gfs025", time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC), "temp_2m", 0)

	if err := retainPublishDir(dir, "gfs025", 0); err != nil {
		t.Fatalf("retainPublishDir: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected the single artifact to survive a non-positive retention count, got %d entries", len(entries))
	}
}

func TestRetainPublishDirMissingDirIsNotAnError(t *testing.T) {
	if err := retainPublishDir(filepath.Join(t.TempDir(), "does-not-exist"), "gfs025", 2); err != nil {
		t.Fatalf("expected a missing publish dir to be a no-op, got: %v", err)
	}
}
