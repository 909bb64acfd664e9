package customers

import (
	"github.com/go-chi/chi/v5"

	"github.com/tailorhub/tailorhub/internal/access"
)

// MountRoutes registers customer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(access.RequirePrincipal)
		r.Get("/customers", h.list)
		r.Get("/customers/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(access.RequireWriter)
		r.Post("/customers", h.create)
		r.Put("/customers/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(access.RequireRole(access.RoleAdmin))
		r.Delete("/customers/{id}", h.remove)
	})
}
