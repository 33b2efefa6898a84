package admin

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gymgate/access-router/internal/auth"
	"github.com/gymgate/access-router/internal/metrics"
	"github.com/gymgate/access-router/internal/middleware"
)

// maxRequestBody bounds admin request bodies.
const maxRequestBody = 4 << 10

// loggedFields are the JSON fields HTTPLogging keeps in admin bodies.
var loggedFields = []string{"level", "status", "database", "count", "error", "message"}

// NewRouter creates the admin router. The websocket endpoint is mounted
// beside it, not under it, so none of these writers wrap the upgrade.
func (h *Handler) NewRouter(verifier *auth.Verifier) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.HTTPLogging(h.logger, loggedFields))

	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.MaxBodySize(maxRequestBody))
		r.Use(auth.Middleware(verifier))

		r.Get("/whoami", h.HandleWhoami)
		r.Get("/scanmode", h.HandleScanMode)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireSuper)
			r.Get("/connections", h.HandleConnections)
			r.Post("/loglevel", h.HandleSetLogLevel)
		})
	})

	return r
}
