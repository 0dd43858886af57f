package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/discount-engine/internal/common"
)

// Probe checks one optional dependency.
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

// Handler exposes liveness and readiness endpoints. The engine has no hard dependencies, so
// readiness only reflects the probes that were configured and the draining flag.
type Handler struct {
	Probes   []Probe
	draining atomic.Bool
}

// SetDraining flips readiness off while the server shuts down.
func (h *Handler) SetDraining(draining bool) {
	h.draining.Store(draining)
}

// Live reports that the process is up.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe and answers 503 if any fails or the server is draining.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]string, len(h.Probes)+1)
	healthy := !h.draining.Load()
	if !healthy {
		status["server"] = "draining"
	}
	for _, probe := range h.Probes {
		if probe.Check == nil {
			continue
		}
		timeout := probe.Timeout
		if timeout <= 0 {
			timeout = 500 * time.Millisecond
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		err := probe.Check(ctx)
		cancel()
		if err != nil {
			status[probe.Name] = err.Error()
			healthy = false
			continue
		}
		status[probe.Name] = "ok"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}
