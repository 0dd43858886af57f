package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/discount-engine/internal/health"
)

func okProbe(name string) health.Probe {
	return health.Probe{Name: name, Check: func(context.Context) error { return nil }}
}

func ready(t *testing.T, h *health.Handler) (int, map[string]string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	return rr.Code, status
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	(&health.Handler{}).Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyWithoutProbes(t *testing.T) {
	code, status := ready(t, &health.Handler{})
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, status)
}

func TestReadyReportsFailingProbe(t *testing.T) {
	h := &health.Handler{Probes: []health.Probe{
		okProbe("db"),
		{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	}}
	code, status := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "ok", status["db"])
	require.Equal(t, "connection refused", status["redis"])
}

func TestReadyAppliesProbeTimeout(t *testing.T) {
	h := &health.Handler{Probes: []health.Probe{{
		Name:    "db",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}}}
	code, status := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, context.DeadlineExceeded.Error(), status["db"])
}

func TestReadyWhileDraining(t *testing.T) {
	h := &health.Handler{Probes: []health.Probe{okProbe("db")}}
	h.SetDraining(true)
	code, status := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "draining", status["server"])

	h.SetDraining(false)
	code, _ = ready(t, h)
	require.Equal(t, http.StatusOK, code)
}
