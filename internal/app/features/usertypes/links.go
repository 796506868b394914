// internal/app/features/usertypes/links.go
package usertypes

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mwhitaker/enrollhub/internal/app/features/shared/jsonapi"
	"github.com/mwhitaker/enrollhub/internal/app/store/audit"
	typelinkstore "github.com/mwhitaker/enrollhub/internal/app/store/typelinks"
	syncengine "github.com/mwhitaker/enrollhub/internal/app/sync"
	"github.com/mwhitaker/enrollhub/internal/app/system/authz"
	"github.com/mwhitaker/enrollhub/internal/app/system/timeouts"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type addLinkRequest struct {
	ItemID string `json:"item_id"`
}

func (h *Handler) typeFromPath(ctx context.Context, w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "typeID"))
	if err != nil {
		jsonapi.Error(w, http.StatusBadRequest, "invalid user type id")
		return primitive.NilObjectID, false
	}
	if _, err := h.UserTypes.GetByID(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			jsonapi.Error(w, http.StatusNotFound, "user type not found")
			return primitive.NilObjectID, false
		}
		h.Log.Error("user type lookup failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not load user type")
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *Handler) itemExists(ctx context.Context, kind models.ItemKind, id primitive.ObjectID) (bool, error) {
	if kind == models.KindProgram {
		return h.Programs.Exists(ctx, id)
	}
	return h.Courses.Exists(ctx, id)
}

// addLink handles POST /user-types/{typeID}/(programs|courses): create
// the link, then grant the item to every current member.
func (h *Handler) addLink(kind models.ItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addLinkRequest
		if err := jsonapi.Decode(r, &req); err != nil {
			jsonapi.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		itemID, err := primitive.ObjectIDFromHex(req.ItemID)
		if err != nil {
			jsonapi.Error(w, http.StatusBadRequest, "item_id is not a valid id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
		defer cancel()

		typeID, ok := h.typeFromPath(ctx, w, r)
		if !ok {
			return
		}
		exists, err := h.itemExists(ctx, kind, itemID)
		if err != nil {
			h.Log.Error("add link: item lookup failed", zap.Error(err))
			jsonapi.Error(w, http.StatusInternalServerError, "could not add link")
			return
		}
		if !exists {
			jsonapi.Error(w, http.StatusNotFound, string(kind)+" not found")
			return
		}

		_, actorName, actorID, _ := authz.UserCtx(r)

		link, err := h.Links[kind].Add(ctx, typeID, itemID, actorName)
		if err != nil {
			if errors.Is(err, typelinkstore.ErrDuplicateLink) {
				jsonapi.Error(w, http.StatusConflict, "this user type is already linked to the item")
				return
			}
			h.Log.Error("add link failed", zap.Error(err))
			jsonapi.Error(w, http.StatusInternalServerError, "could not add link")
			return
		}

		added, err := h.Engine.OnLinkAdded(ctx, kind, typeID, itemID)
		if err != nil {
			// The link is in place; a retried add converges on 409 but the
			// next membership change repairs the rows.
			h.Log.Error("add link: member fan-out failed",
				zap.String("user_type_id", typeID.Hex()),
				zap.String("item_id", itemID.Hex()),
				zap.Error(err))
			jsonapi.Error(w, http.StatusInternalServerError, "link created but member sync failed; re-run the member sync")
			return
		}

		h.AuditLog.AdminAction(ctx, r, audit.EventTypeLinkAdded, actorID, "", map[string]string{
			"user_type_id": typeID.Hex(),
			"item_id":      itemID.Hex(),
			"item_kind":    string(kind),
			"rows_added":   strconv.FormatInt(added, 10),
		})
		jsonapi.Respond(w, http.StatusCreated, map[string]any{
			"link":       link,
			"rows_added": added,
		})
	}
}

// removeLink handles DELETE /user-types/{typeID}/(programs|courses)/{itemID}.
func (h *Handler) removeLink(kind models.ItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "itemID"))
		if err != nil {
			jsonapi.Error(w, http.StatusBadRequest, "invalid item id")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
		defer cancel()

		typeID, ok := h.typeFromPath(ctx, w, r)
		if !ok {
			return
		}

		removed, err := h.Engine.OnLinkRemoved(ctx, kind, typeID, itemID)
		if err != nil {
			if errors.Is(err, syncengine.ErrLinkNotFound) {
				jsonapi.Error(w, http.StatusNotFound, "link not found")
				return
			}
			h.Log.Error("remove link failed",
				zap.String("user_type_id", typeID.Hex()),
				zap.String("item_id", itemID.Hex()),
				zap.Error(err))
			jsonapi.Error(w, http.StatusInternalServerError, "could not remove link")
			return
		}

		_, _, actorID, _ := authz.UserCtx(r)
		h.AuditLog.AdminAction(ctx, r, audit.EventTypeLinkRemoved, actorID, "", map[string]string{
			"user_type_id": typeID.Hex(),
			"item_id":      itemID.Hex(),
			"item_kind":    string(kind),
			"rows_removed": strconv.FormatInt(removed, 10),
		})
		jsonapi.Respond(w, http.StatusOK, map[string]any{
			"success": true,
			"removed": removed,
		})
	}
}

// listLinks handles GET /user-types/{typeID}/(programs|courses).
func (h *Handler) listLinks(kind models.ItemKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()

		typeID, ok := h.typeFromPath(ctx, w, r)
		if !ok {
			return
		}

		links, err := h.Links[kind].ListByType(ctx, typeID)
		if err != nil {
			h.Log.Error("list links failed", zap.Error(err))
			jsonapi.Error(w, http.StatusInternalServerError, "could not list links")
			return
		}
		jsonapi.Respond(w, http.StatusOK, map[string]any{"links": links})
	}
}
