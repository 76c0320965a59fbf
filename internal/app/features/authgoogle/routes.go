// internal/app/features/authgoogle/routes.go
package authgoogle

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter mounted under /api/auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/google", h.ServeLogin)
	r.Get("/google/callback", h.ServeCallback)
	r.Post("/google/registration", h.ServeRegistration)
	return r
}
