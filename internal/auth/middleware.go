package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"
)

// JWTAuth rejects requests without a valid bearer token backed by a live
// session and stores the resolved claims in the request context. Roles come
// from the account, not the token, so role changes apply immediately.
func JWTAuth(db *gorm.DB, tokens *Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := tokens.Verify(raw)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			claims, err = Resolve(r.Context(), db, claims, time.Now())
			switch {
			case errors.Is(err, ErrNoSession), errors.Is(err, ErrSessionEnded), errors.Is(err, ErrAccountDisabled):
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			case err != nil:
				http.Error(w, "session lookup failed", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// RequireRole lets the request through when the caller holds any of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !FromContext(r.Context()).HasAnyRole(roles...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
