package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerServesPrometheusExposition(t *testing.T) {
	FetchesAttempted.WithLabelValues("gfs025", "nomads", "success").Inc()
	MapsGenerated.WithLabelValues("gfs025", "temp_2m", "success").Inc()
	WorkerQueueDepth.Set(3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"forecastpipe_fetches_attempted_total", "forecastpipe_maps_generated_total", "forecastpipe_worker_queue_depth"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected scrape body to contain %q", want)
		}
	}
}
