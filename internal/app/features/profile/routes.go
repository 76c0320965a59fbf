// internal/app/features/profile/routes.go
package profile

import (
	"github.com/go-chi/chi/v5"
	"github.com/kinderlink/kinderlink/internal/app/system/auth"
)

// Routes returns a subrouter mounted under /api/users.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Get("/profile", h.Get)
	r.Put("/profile", h.Update)
	r.Put("/complete-profile", h.Complete)
	return r
}
