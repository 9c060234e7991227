package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T, registry *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	return rec.Body.String()
}

func TestRegistry_Handler(t *testing.T) {
	body := scrape(t, NewRegistry())
	for _, metric := range []string{
		"go_goroutines",
		"process_cpu_seconds_total",
		"recordlock_http_requests_in_flight",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("expected metric %s not found in output", metric)
		}
	}
}

func TestRegistry_StartRequest(t *testing.T) {
	registry := NewRegistry()

	finishList := registry.StartRequest(http.MethodGet)
	finishDelete := registry.StartRequest(http.MethodDelete)
	if got := testutil.ToFloat64(registry.inFlight); got != 2 {
		t.Fatalf("in flight = %v, want 2", got)
	}
	finishList("/locks", http.StatusOK)
	finishDelete("/locks/{object}/{id}", http.StatusNoContent)
	if got := testutil.ToFloat64(registry.inFlight); got != 0 {
		t.Fatalf("in flight = %v, want 0", got)
	}

	body := scrape(t, registry)
	for _, labels := range []string{
		`method="GET",route="/locks",status="200"`,
		`method="DELETE",route="/locks/{object}/{id}",status="204"`,
	} {
		if !strings.Contains(body, labels) {
			t.Errorf("expected labels %s not found in metrics", labels)
		}
	}
	if !strings.Contains(body, "recordlock_http_request_duration_seconds_count") {
		t.Error("request duration histogram not found")
	}
}

func TestRegistry_Independent(t *testing.T) {
	first, second := NewRegistry(), NewRegistry()
	first.StartRequest(http.MethodGet)("/locks", http.StatusOK)

	if got := testutil.ToFloat64(second.requests.WithLabelValues(http.MethodGet, "/locks", "200")); got != 0 {
		t.Fatalf("second registry saw %v requests", got)
	}
	if first.Gatherer() == second.Gatherer() {
		t.Fatal("expected distinct gatherers")
	}
}
