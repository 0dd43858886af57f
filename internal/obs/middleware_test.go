package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/noah-isme/discount-engine/internal/obs"
)

func TestHTTPMetricsLabelsByRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("discount", []float64{10, 1}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/v1/admin/discounts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/discounts/abc", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/admin/discounts/{id}", "204"))
	if total != 1 {
		t.Fatalf("expected counter to be 1, got %v", total)
	}
	if samples := testutil.CollectAndCount(metrics.ReqDur); samples == 0 {
		t.Fatalf("expected histogram sample")
	}
	if val := testutil.ToFloat64(metrics.InFlight); val != 0 {
		t.Fatalf("expected no in-flight requests, got %v", val)
	}
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("discount", nil, registry)
	second := obs.NewHTTPMetrics("discount", nil, registry)
	if first.ReqTotal != second.ReqTotal {
		t.Fatalf("expected the registered counter to be reused")
	}
}

func TestDiscountMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewDiscountMetrics("discount", registry)

	metrics.ObserveEvaluation("applied", map[string]int{"bogo": 2, "volume": 0}, 0)
	metrics.ObserveEvaluation("no_candidates", nil, 0)
	metrics.ObserveCache(true)
	metrics.ObserveCache(false)
	metrics.ObserveCache(false)

	if v := testutil.ToFloat64(metrics.Evaluations.WithLabelValues("applied")); v != 1 {
		t.Fatalf("expected one applied evaluation, got %v", v)
	}
	if v := testutil.ToFloat64(metrics.Candidates.WithLabelValues("bogo")); v != 2 {
		t.Fatalf("expected two bogo candidates, got %v", v)
	}
	if n := testutil.CollectAndCount(metrics.Candidates); n != 1 {
		t.Fatalf("expected zero-count strategies to be skipped, got %d series", n)
	}
	if v := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")); v != 2 {
		t.Fatalf("expected two misses, got %v", v)
	}

	var nilMetrics *obs.DiscountMetrics
	nilMetrics.ObserveEvaluation("applied", nil, 0)
	nilMetrics.ObserveCache(true)
}

func TestParseBucketsCSV(t *testing.T) {
	got := obs.ParseBucketsCSV("5, 10,abc,-1,,25")
	if len(got) != 3 || got[0] != 5 || got[2] != 25 {
		t.Fatalf("unexpected buckets %v", got)
	}
}
