package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/discount-engine/internal/common"
)

// Handler enforces a limit per key before delegating. Limiter errors fail open.
type Handler struct {
	Limiter   Allower
	Key       func(*http.Request) string
	OnError   func(error)
	OnLimited func(*http.Request)
}

// Middleware implements chi middleware.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Key == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := h.Limiter.Allow(r.Context(), h.Key(r))
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(time.Until(decision.ResetAt).Seconds())
			headers.Set("Retry-After", strconv.Itoa(max(retryAfter, 0)))
			if h.OnLimited != nil {
				h.OnLimited(r)
			}
			common.JSONError(w, http.StatusTooManyRequests, common.CodeRateLimited, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientKey keys requests by client IP.
func ClientKey(trustProxy bool) func(*http.Request) string {
	return func(r *http.Request) string {
		return "ip:" + common.ClientIP(r, trustProxy)
	}
}
