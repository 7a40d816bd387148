package controller

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	appErrors "github.com/unclebandit/anniversary-reminder/internal/errors"
)

// SecretHeader carries the shared admin secret.
const SecretHeader = "X-Secret"

// RequireSecret guards admin routes. An empty secret disables them with 503
// rather than leaving them open.
func RequireSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeError(w, fmt.Errorf("admin secret: %w", appErrors.ErrNotConfigured))
				return
			}
			got := r.Header.Get(SecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				writeError(w, appErrors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
