// internal/app/features/usertypes/handler.go
//
// User-type management: the types themselves plus the links that grant
// their members inherited access to programs and courses. Link changes
// fan out to member assignment rows through the sync engine.
package usertypes

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mwhitaker/enrollhub/internal/app/features/shared/jsonapi"
	"github.com/mwhitaker/enrollhub/internal/app/store/audit"
	coursestore "github.com/mwhitaker/enrollhub/internal/app/store/courses"
	programstore "github.com/mwhitaker/enrollhub/internal/app/store/programs"
	typelinkstore "github.com/mwhitaker/enrollhub/internal/app/store/typelinks"
	userstore "github.com/mwhitaker/enrollhub/internal/app/store/users"
	usertypestore "github.com/mwhitaker/enrollhub/internal/app/store/usertypes"
	syncengine "github.com/mwhitaker/enrollhub/internal/app/sync"
	"github.com/mwhitaker/enrollhub/internal/app/system/auditlog"
	"github.com/mwhitaker/enrollhub/internal/app/system/authz"
	"github.com/mwhitaker/enrollhub/internal/app/system/htmlsanitize"
	"github.com/mwhitaker/enrollhub/internal/app/system/normalize"
	"github.com/mwhitaker/enrollhub/internal/app/system/timeouts"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	UserTypes *usertypestore.Store
	Users     *userstore.Store
	Programs  *programstore.Store
	Courses   *coursestore.Store
	Links     map[models.ItemKind]*typelinkstore.Store
	Engine    *syncengine.Engine
	AuditLog  *auditlog.Logger
	Log       *zap.Logger
}

func NewHandler(db *mongo.Database, engine *syncengine.Engine, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		UserTypes: usertypestore.New(db),
		Users:     userstore.New(db),
		Programs:  programstore.New(db),
		Courses:   coursestore.New(db),
		Links: map[models.ItemKind]*typelinkstore.Store{
			models.KindProgram: typelinkstore.NewPrograms(db),
			models.KindCourse:  typelinkstore.NewCourses(db),
		},
		Engine:   engine,
		AuditLog: auditLog,
		Log:      logger,
	}
}

type createTypeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Create handles POST /user-types.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTypeRequest
	if err := jsonapi.Decode(r, &req); err != nil {
		jsonapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	name := normalize.Name(req.Name)
	if name == "" {
		jsonapi.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	t, err := h.UserTypes.Create(ctx, models.UserType{
		Name:        name,
		Description: htmlsanitize.Plain(req.Description),
	})
	if err != nil {
		if errors.Is(err, usertypestore.ErrDuplicateName) {
			jsonapi.Error(w, http.StatusConflict, "a user type with this name already exists")
			return
		}
		h.Log.Error("create user type failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not create user type")
		return
	}

	_, _, actorID, _ := authz.UserCtx(r)
	h.AuditLog.AdminAction(ctx, r, audit.EventUserTypeCreated, actorID, "", map[string]string{
		"user_type_id": t.ID.Hex(),
		"name":         t.Name,
	})
	jsonapi.Respond(w, http.StatusCreated, t)
}

// List handles GET /user-types.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	types, err := h.UserTypes.List(ctx)
	if err != nil {
		h.Log.Error("list user types failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not list user types")
		return
	}
	jsonapi.Respond(w, http.StatusOK, map[string]any{"user_types": types})
}

// Delete handles DELETE /user-types/{typeID}: retract every link (and
// the members' inherited rows with them), detach the members, then drop
// the type document.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "typeID"))
	if err != nil {
		jsonapi.Error(w, http.StatusBadRequest, "invalid user type id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	if _, err := h.UserTypes.GetByID(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			jsonapi.Error(w, http.StatusNotFound, "user type not found")
			return
		}
		h.Log.Error("delete user type: lookup failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not delete user type")
		return
	}

	result, err := h.Engine.OnTypeDeleted(ctx, id)
	if err != nil {
		h.Log.Error("delete user type: link retraction failed",
			zap.String("user_type_id", id.Hex()), zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not retract the type's links; retry the delete")
		return
	}
	detached, err := h.Users.ClearUserTypeForAll(ctx, id)
	if err != nil {
		h.Log.Error("delete user type: member detach failed",
			zap.String("user_type_id", id.Hex()), zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not detach members; retry the delete")
		return
	}
	if _, err := h.UserTypes.Delete(ctx, id); err != nil {
		h.Log.Error("delete user type failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not delete user type")
		return
	}

	_, _, actorID, _ := authz.UserCtx(r)
	h.AuditLog.AdminAction(ctx, r, audit.EventUserTypeDeleted, actorID, "", map[string]string{
		"user_type_id": id.Hex(),
	})
	jsonapi.Respond(w, http.StatusOK, map[string]any{
		"success":          true,
		"rows_removed":     result.Removed,
		"members_detached": detached,
	})
}
