package modelregistry

import "testing"

func TestExpectedForecastHours(t *testing.T) {
	m := ModelConfig{MaxForecastHour: 12, ForecastIncrement: 6}
	got := m.ExpectedForecastHours()
	want := []int{0, 6, 12}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestExpectedForecastHoursZeroIncrementIsEmpty(t *testing.T) {
	m := ModelConfig{MaxForecastHour: 12, ForecastIncrement: 0}
	if got := m.ExpectedForecastHours(); got != nil {
		t.Fatalf("expected nil for zero increment, got %v", got)
	}
}

func TestExpectedForecastHoursTwoPhaseIncrement(t *testing.T) {
	m := ModelConfig{
		MaxForecastHour:                18,
		ForecastIncrement:              6,
		FineForecastIncrement:          1,
		FineForecastIncrementUntilHour: 3,
	}
	got := m.ExpectedForecastHours()
	want := []int{0, 1, 2, 3, 9, 15}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestExpectedForecastHoursGFS025MatchesHourlyThenSixHourly(t *testing.T) {
	r := New()
	m, err := r.Get("gfs025")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	hours := m.ExpectedForecastHours()
	for _, h := range []int{0, 1, 5, 119, 120} {
		found := false
		for _, got := range hours {
			if got == h {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected hourly forecast hour %d in gfs025's schedule", h)
		}
	}
	for _, h := range []int{121, 122, 123, 124, 125} {
		for _, got := range hours {
			if got == h {
				t.Errorf("forecast hour %d should not appear once gfs025 switches to 6-hourly", h)
			}
		}
	}
	last := hours[len(hours)-1]
	if last != 384 {
		t.Errorf("expected the schedule to end at fh 384, got %d", last)
	}
}

func TestPermitsRunHour(t *testing.T) {
	m := ModelConfig{RunHours: []int{0, 6, 12, 18}}
	if !m.PermitsRunHour(6) {
		t.Fatal("6 should be permitted")
	}
	if m.PermitsRunHour(3) {
		t.Fatal("3 should not be permitted")
	}
}

func TestGetUnknownModelFails(t *testing.T) {
	r := New()
	if _, err := r.Get("does-not-exist"); err == nil {
		t.Fatal("expected an error for an unknown model id")
	}
}

func TestListEnabledReturnsRegisteredModels(t *testing.T) {
	r := New()
	enabled := r.ListEnabled()
	if len(enabled) != 3 {
		t.Fatalf("expected 3 enabled models, got %d", len(enabled))
	}
	seen := map[string]bool{}
	for _, m := range enabled {
		seen[m.ID] = true
	}
	for _, id := range []string{"gfs025", "graphwx", "nwpacific3km"} {
		if !seen[id] {
			t.Errorf("expected model %q in registry", id)
		}
	}
}
