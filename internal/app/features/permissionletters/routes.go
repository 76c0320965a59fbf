// internal/app/features/permissionletters/routes.go
package permissionletters

import (
	"github.com/go-chi/chi/v5"
	"github.com/kinderlink/kinderlink/internal/app/system/auth"
	"github.com/kinderlink/kinderlink/internal/domain/models"
)

// Routes returns a subrouter mounted under /api/permission-letters.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(models.RoleAdmin))
		r.Delete("/{id}", h.Delete)
	})

	return r
}
