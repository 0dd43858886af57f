package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/discount-engine/internal/common"
	"github.com/noah-isme/discount-engine/internal/obs"
)

// HTTPRecorder records HTTP requests after they have been handled.
type HTTPRecorder struct {
	Service   *Service
	OnError   func(error)
	ActorFunc func(*http.Request) Actor
}

// HTTPConfig customises how the entry is produced for a route.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	// SkipFailed drops entries for responses with a status of 400 or above.
	SkipFailed bool
	// MutationsOnly skips GET, HEAD and OPTIONS requests.
	MutationsOnly bool
}

// Middleware returns a chi-compatible middleware that records entries.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled || (cfg.MutationsOnly && readOnly(req.Method)) {
				next.ServeHTTP(w, req)
				return
			}

			recorder := obs.NewStatusRecorder(w)
			next.ServeHTTP(recorder, req)
			if cfg.SkipFailed && recorder.Status() >= http.StatusBadRequest {
				return
			}

			resourceID := ""
			if cfg.ResourceIDParam != "" {
				resourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			err := r.Service.Record(req.Context(), r.actor(req), cfg.Action, cfg.ResourceType, resourceID, req, recorder.Status())
			if err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

func readOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func (r HTTPRecorder) actor(req *http.Request) Actor {
	if r.ActorFunc != nil {
		return r.ActorFunc(req)
	}
	if subject, ok := common.Subject(req.Context()); ok && subject != "" {
		return Actor{Kind: ActorKindAdmin, Subject: subject}
	}
	return Actor{Kind: ActorKindAnonymous}
}
