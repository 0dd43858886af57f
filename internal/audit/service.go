// Package audit keeps a trail of admin mutations on stored discount definitions.
package audit

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/noah-isme/discount-engine/internal/common"
	"github.com/noah-isme/discount-engine/internal/obs"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	// ActorKindAdmin is an authenticated admin token subject.
	ActorKindAdmin ActorKind = "admin"
	// ActorKindSystem represents internal automated actions.
	ActorKindSystem ActorKind = "system"
	// ActorKindAnonymous represents unauthenticated actors.
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes the entity performing the action.
type Actor struct {
	Kind    ActorKind `json:"kind"`
	Subject string    `json:"subject,omitempty"`
}

// Entry is one recorded action.
type Entry struct {
	At           time.Time `json:"at"`
	Actor        Actor     `json:"actor"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resourceType"`
	ResourceID   string    `json:"resourceId,omitempty"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	Route        string    `json:"route,omitempty"`
	Status       int       `json:"status"`
	IP           string    `json:"ip,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
}

// Sink receives finished entries.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// Service builds entries from requests and hands them to a sink.
type Service struct {
	Sink         Sink
	Enabled      bool
	SamplingRate float64
	TrustProxy   bool
	Now          func() time.Time
}

// Record writes an entry for req when auditing is enabled.
func (s Service) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string, req *http.Request, status int) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 && rand.Float64() > s.SamplingRate {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Sink == nil {
		return errors.New("audit: sink not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if rc := chi.RouteContext(req.Context()); route == "" && rc != nil {
		route = rc.RoutePattern()
	}
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if status == 0 {
		status = http.StatusOK
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	requestID := middleware.GetReqID(req.Context())
	if requestID == "" {
		requestID = strings.TrimSpace(req.Header.Get("X-Request-ID"))
	}

	return s.Sink.Write(ctx, Entry{
		At:           now().UTC(),
		Actor:        normalizeActor(actor),
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   strings.TrimSpace(resourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        route,
		Status:       status,
		IP:           common.ClientIP(req, s.TrustProxy),
		UserAgent:    strings.TrimSpace(req.Header.Get("User-Agent")),
		RequestID:    requestID,
	})
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	return strings.Join(segments, ".")
}

func normalizeActor(a Actor) Actor {
	a.Subject = strings.TrimSpace(a.Subject)
	switch a.Kind {
	case ActorKindAdmin, ActorKindSystem:
		return a
	default:
		return Actor{Kind: ActorKindAnonymous}
	}
}

// LogSink writes entries as structured log events.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Write(ctx context.Context, e Entry) error {
	s.Logger.Info().Ctx(ctx).
		Str("actor_kind", string(e.Actor.Kind)).
		Str("actor", e.Actor.Subject).
		Str("action", e.Action).
		Str("resource_type", e.ResourceType).
		Str("resource_id", e.ResourceID).
		Int("status", e.Status).
		Str("ip", e.IP).
		Str("request_id", e.RequestID).
		Msg("audit")
	return nil
}

// RingSink keeps the most recent entries in memory, newest first.
type RingSink struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewRingSink returns a sink holding up to capacity entries.
func NewRingSink(capacity int) *RingSink {
	if capacity <= 0 {
		capacity = 500
	}
	return &RingSink{entries: make([]Entry, capacity)}
}

func (r *RingSink) Write(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

// List returns a window of entries, newest first, and the number held.
func (r *RingSink) List(offset, limit int) ([]Entry, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	held := r.next
	if r.full {
		held = len(r.entries)
	}
	out := []Entry{}
	for i := offset; i < held && len(out) < limit; i++ {
		idx := (r.next - 1 - i + len(r.entries)) % len(r.entries)
		out = append(out, r.entries[idx])
	}
	return out, held
}

// MultiSink fans an entry out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
