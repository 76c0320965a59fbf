// internal/app/features/children/routes.go
package children

import (
	"github.com/go-chi/chi/v5"
	"github.com/kinderlink/kinderlink/internal/app/system/auth"
	"github.com/kinderlink/kinderlink/internal/domain/models"
)

// Routes returns a subrouter mounted under /api/children.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(models.RoleAdmin))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})

	return r
}
