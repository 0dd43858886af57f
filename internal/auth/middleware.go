package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/discount-engine/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// Middleware guards the admin API.
type Middleware struct {
	Verifier *Verifier
}

// RequireAdmin rejects requests without a valid bearer token and stores the subject on the context.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := m.Verifier.Verify(bearerToken(r))
		if err != nil {
			common.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithSubject(r.Context(), subject)))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
