// internal/app/features/useradmin/routes.go
package useradmin

import (
	"github.com/go-chi/chi/v5"
	"github.com/mwhitaker/enrollhub/internal/app/system/auth"
)

// Routes returns the subrouter mounted under /users. The literal
// bulk-edit route is registered before the {userID} routes so chi
// doesn't treat "bulk-edit" as an id.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Use(auth.RequireRole("admin"))

		pr.Get("/", h.List)
		pr.Post("/", h.Create)
		pr.Patch("/bulk-edit", h.BulkEdit)
		pr.Get("/{userID}", h.Get)
		pr.Patch("/{userID}", h.Update)
		pr.Delete("/{userID}", h.Delete)
		pr.Get("/{userID}/assignments", h.Entitlements)
	})
	return r
}
