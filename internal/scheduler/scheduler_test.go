package scheduler

import (
	"testing"
	"time"

	"github.com/nwwx/forecastpipe/internal/modelregistry"
)

func TestLatestPermittedRunTimeFindsMostRecentHour(t *testing.T) {
	model := modelregistry.ModelConfig{RunHours: []int{0, 6, 12, 18}}
	now := time.Date(2026, 7, 31, 14, 30, 0, 0, time.UTC)

	got, ok := latestPermittedRunTime(model, now)
	if !ok {
		t.Fatal("expected a permitted run time")
	}
	want := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLatestPermittedRunTimeCrossesMidnight(t *testing.T) {
	model := modelregistry.ModelConfig{RunHours: []int{18}}
	now := time.Date(2026, 7, 31, 2, 0, 0, 0, time.UTC)

	got, ok := latestPermittedRunTime(model, now)
	if !ok {
		t.Fatal("expected a permitted run time from the previous day")
	}
	want := time.Date(2026, 7, 30, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLatestPermittedRunTimeNoRunHoursConfigured(t *testing.T) {
	model := modelregistry.ModelConfig{}
	if _, ok := latestPermittedRunTime(model, time.Now()); ok {
		t.Fatal("expected ok=false when the model has no run hours")
	}
}

func TestClaimRunOnlyClaimsEachRunOnce(t *testing.T) {
	s := &Scheduler{started: make(map[string]time.Time)}
	runTime := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	if !s.claimRun("gfs025", runTime) {
		t.Fatal("first claim should succeed")
	}
	if s.claimRun("gfs025", runTime) {
		t.Fatal("second claim of the same run should fail")
	}
}

func TestClaimRunAllowsLaterRunAfterEarlierClaim(t *testing.T) {
	s := &Scheduler{started: make(map[string]time.Time)}
	first := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	second := first.Add(6 * time.Hour)

	if !s.claimRun("gfs025", first) {
		t.Fatal("first claim should succeed")
	}
	if !s.claimRun("gfs025", second) {
		t.Fatal("a later run_time should still be claimable")
	}
}

func TestClaimRunIsPerModel(t *testing.T) {
	s := &Scheduler{started: make(map[string]time.Time)}
	runTime := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	if !s.claimRun("gfs025", runTime) {
		t.Fatal("first model's claim should succeed")
	}
	if !s.claimRun("graphwx", runTime) {
		t.Fatal("a different model with the same run_time should still be claimable")
	}
}
