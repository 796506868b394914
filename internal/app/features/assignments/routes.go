// internal/app/features/assignments/routes.go
package assignments

import (
	"github.com/go-chi/chi/v5"
	"github.com/mwhitaker/enrollhub/internal/app/system/auth"
)

// Routes returns the subrouter mounted under /assignments. Both
// endpoints mutate entitlements, so they are admin-only.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Use(auth.RequireRole("admin"))
		pr.Post("/bulk-assign", h.BulkAssign)
		pr.Post("/bulk-deassign", h.BulkDeassign)
	})
	return r
}
