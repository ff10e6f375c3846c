package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware returns the admin authentication middleware for other domains
// mounting routes under /api/admin.
func (h *Handler) Middleware() func(http.Handler) http.Handler {
	return AuthMiddleware(h.jwtSvc, h.service)
}

// Routes returns admin auth and audit routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.Middleware())

		r.Get("/auth/me", h.Me)

		r.Route("/audit", func(r chi.Router) {
			r.Use(RequirePermission(PermViewAuditLogs))
			r.Get("/logs", h.AuditLogs)
		})
	})

	return r
}
