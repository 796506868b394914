// internal/app/features/usertypes/routes.go
package usertypes

import (
	"github.com/go-chi/chi/v5"
	"github.com/mwhitaker/enrollhub/internal/app/system/auth"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
)

// Routes returns the subrouter mounted under /user-types.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Use(auth.RequireRole("admin"))

		pr.Post("/", h.Create)
		pr.Get("/", h.List)
		pr.Delete("/{typeID}", h.Delete)

		pr.Post("/{typeID}/programs", h.addLink(models.KindProgram))
		pr.Get("/{typeID}/programs", h.listLinks(models.KindProgram))
		pr.Delete("/{typeID}/programs/{itemID}", h.removeLink(models.KindProgram))

		pr.Post("/{typeID}/courses", h.addLink(models.KindCourse))
		pr.Get("/{typeID}/courses", h.listLinks(models.KindCourse))
		pr.Delete("/{typeID}/courses/{itemID}", h.removeLink(models.KindCourse))
	})
	return r
}
