// internal/app/features/catalog/handler.go
//
// Minimal catalog endpoints: programs and courses are authored in
// another service, but admins need to register and inspect the items
// entitlements refer to.
package catalog

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mwhitaker/enrollhub/internal/app/features/shared/jsonapi"
	assignmentstore "github.com/mwhitaker/enrollhub/internal/app/store/assignments"
	coursestore "github.com/mwhitaker/enrollhub/internal/app/store/courses"
	programstore "github.com/mwhitaker/enrollhub/internal/app/store/programs"
	"github.com/mwhitaker/enrollhub/internal/app/system/normalize"
	"github.com/mwhitaker/enrollhub/internal/app/system/status"
	"github.com/mwhitaker/enrollhub/internal/app/system/timeouts"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Programs *programstore.Store
	Courses  *coursestore.Store
	Assigns  map[models.ItemKind]*assignmentstore.Store
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Programs: programstore.New(db),
		Courses:  coursestore.New(db),
		Assigns: map[models.ItemKind]*assignmentstore.Store{
			models.KindProgram: assignmentstore.NewPrograms(db),
			models.KindCourse:  assignmentstore.NewCourses(db),
		},
		Log: logger,
	}
}

type createItemRequest struct {
	Title string `json:"title"`
}

func (h *Handler) create(kind models.ItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createItemRequest
		if err := jsonapi.Decode(r, &req); err != nil {
			jsonapi.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		title := normalize.Title(req.Title)
		if title == "" {
			jsonapi.Error(w, http.StatusBadRequest, "title is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
		defer cancel()

		if kind == models.KindProgram {
			p, err := h.Programs.Create(ctx, models.Program{Title: title, Status: status.Active})
			if err != nil {
				h.Log.Error("create program failed", zap.Error(err))
				jsonapi.Error(w, http.StatusInternalServerError, "could not create program")
				return
			}
			jsonapi.Respond(w, http.StatusCreated, p)
			return
		}
		c, err := h.Courses.Create(ctx, models.Course{Title: title, Status: status.Active})
		if err != nil {
			h.Log.Error("create course failed", zap.Error(err))
			jsonapi.Error(w, http.StatusInternalServerError, "could not create course")
			return
		}
		jsonapi.Respond(w, http.StatusCreated, c)
	}
}

// get also reports how many active assignment rows point at the item,
// which the admin UI shows before allowing a catalog removal.
func (h *Handler) get(kind models.ItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "itemID"))
		if err != nil {
			jsonapi.Error(w, http.StatusBadRequest, "invalid item id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()

		var item any
		if kind == models.KindProgram {
			item, err = h.Programs.GetByID(ctx, id)
		} else {
			item, err = h.Courses.GetByID(ctx, id)
		}
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				jsonapi.Error(w, http.StatusNotFound, string(kind)+" not found")
				return
			}
			h.Log.Error("get catalog item failed", zap.Error(err))
			jsonapi.Error(w, http.StatusInternalServerError, "could not load item")
			return
		}

		assigned, err := h.Assigns[kind].CountActiveByItem(ctx, id)
		if err != nil {
			h.Log.Warn("get catalog item: assignment count failed", zap.Error(err))
		}
		jsonapi.Respond(w, http.StatusOK, map[string]any{
			"item":             item,
			"active_assignees": assigned,
		})
	}
}
