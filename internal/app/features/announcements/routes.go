// internal/app/features/announcements/routes.go
package announcements

import (
	"github.com/go-chi/chi/v5"
	"github.com/kinderlink/kinderlink/internal/app/system/auth"
	"github.com/kinderlink/kinderlink/internal/domain/models"
)

// Routes returns a subrouter mounted under /api/announcements. Reads
// are public; the notice board doubles as the school's public feed.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSignedIn)
		r.Use(auth.RequireRole(models.RoleAdmin))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})

	return r
}
