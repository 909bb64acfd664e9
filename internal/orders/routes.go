package orders

import (
	"github.com/go-chi/chi/v5"

	"github.com/tailorhub/tailorhub/internal/access"
)

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(access.RequirePrincipal)
		r.Get("/orders", h.list)
		r.Get("/orders/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(access.RequireWriter)
		r.Post("/orders", h.create)
		r.Put("/orders/{id}", h.update)
		r.Post("/orders/{id}/status", h.changeStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(access.RequireRole(access.RoleAdmin))
		r.Delete("/orders/{id}", h.remove)
	})
}
