package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gymgate/access-router/internal/metrics"
)

// Middleware returns Chi-compatible middleware that requires a valid dashboard
// bearer token and stores the resulting Principal in the request context.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := v.VerifyDashboardToken(extractBearerToken(r))
			if err != nil {
				if errors.Is(err, ErrMissingToken) {
					metrics.RecordAuthFailure("missing_token")
					writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
					return
				}
				metrics.RecordAuthFailure("invalid_token")
				writeJSONError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// extractBearerToken gets token from "Authorization: Bearer <token>" header
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Response write errors are unrecoverable
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
