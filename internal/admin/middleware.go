package admin

import (
	"net/http"

	"github.com/gymgate/access-router/internal/auth"
)

// RequireSuper rejects callers without super scope with 403.
// It must run after auth.Middleware.
func (h *Handler) RequireSuper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.PrincipalFromContext(r.Context())
		if p == nil || !p.Super {
			WriteErrorWithHint(w, http.StatusForbidden, ErrCodeSuperRequired,
				"This endpoint requires a super admin token",
				"Use a token issued with role \"super\"")
			return
		}
		next.ServeHTTP(w, r)
	})
}
