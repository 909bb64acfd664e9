package payments

import (
	"github.com/go-chi/chi/v5"

	"github.com/tailorhub/tailorhub/internal/access"
)

// MountRoutes registers payment routes. Payments are immutable: there is no
// update or delete route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(access.RequirePrincipal)
		r.Get("/orders/{id}/payments", h.listForOrder)
		r.Get("/payments", h.listRange)
	})
	r.Group(func(r chi.Router) {
		r.Use(access.RequireWriter)
		r.Post("/orders/{id}/payments", h.record)
	})
}
