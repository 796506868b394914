// internal/app/features/catalog/routes.go
package catalog

import (
	"github.com/go-chi/chi/v5"
	"github.com/mwhitaker/enrollhub/internal/app/system/auth"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
)

// Routes returns the catalog subrouter, mounted under /catalog.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Use(auth.RequireRole("admin"))

		pr.Post("/programs", h.create(models.KindProgram))
		pr.Get("/programs/{itemID}", h.get(models.KindProgram))
		pr.Post("/courses", h.create(models.KindCourse))
		pr.Get("/courses/{itemID}", h.get(models.KindCourse))
	})
	return r
}
