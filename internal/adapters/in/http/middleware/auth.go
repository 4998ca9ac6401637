package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bnema/zerowrap"

	"github.com/rcarmo/guerite/internal/adapters/dto"
)

// BearerAuth gates the control surface (§6) behind a single shared bearer
// token. An empty token disables the check entirely, which is the daemon's
// default when GUERITE_HTTP_API_TOKEN is unset; the listen address
// (GUERITE_HTTP_API_HOST) is not changed in that case.
func BearerAuth(token string, log zerowrap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !isAuthenticated(r, token) {
				log.Warn().
					Str(zerowrap.FieldLayer, "adapter").
					Str(zerowrap.FieldAdapter, "http").
					Str(zerowrap.FieldMethod, r.Method).
					Str(zerowrap.FieldPath, r.URL.Path).
					Msg("rejected unauthenticated control surface request")
				sendUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isAuthenticated checks the request's Authorization header against the
// configured token using a constant-time comparison, so a timing
// side-channel can't be used to guess the token byte by byte.
func isAuthenticated(r *http.Request, token string) bool {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	presented := strings.TrimPrefix(header, prefix)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}

func sendUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="guerite"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "unauthorized"})
}
