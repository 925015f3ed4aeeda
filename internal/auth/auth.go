// Package auth implements the shared-secret check that guards every
// marketplace-facing endpoint. The marketplace sends the secret either in
// the legacy x-pg-secret header or as a bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// HeaderSecret is the legacy header carrying the shared secret.
const HeaderSecret = "x-pg-secret"

// RequireSecret returns middleware that rejects requests whose shared
// secret does not match. Comparison is constant-time.
func RequireSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || !matches(r, secret) {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func matches(r *http.Request, secret string) bool {
	got := r.Header.Get(HeaderSecret)
	if got == "" {
		if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
			got = strings.TrimPrefix(bearer, "Bearer ")
		}
	}
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}
