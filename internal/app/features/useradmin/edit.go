// internal/app/features/useradmin/edit.go
package useradmin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	bulkops "github.com/mwhitaker/enrollhub/internal/app/bulk"
	"github.com/mwhitaker/enrollhub/internal/app/features/shared/jsonapi"
	"github.com/mwhitaker/enrollhub/internal/app/store/audit"
	userstore "github.com/mwhitaker/enrollhub/internal/app/store/users"
	"github.com/mwhitaker/enrollhub/internal/app/system/authz"
	"github.com/mwhitaker/enrollhub/internal/app/system/htmlsanitize"
	"github.com/mwhitaker/enrollhub/internal/app/system/status"
	"github.com/mwhitaker/enrollhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// updateBody is the shared updates shape of the single and bulk edit
// endpoints. Nil pointers leave the field alone; user_type_id carries a
// tri-state: absent = unchanged, "" = clear the type, hex = set it.
type updateBody struct {
	Department  *string `json:"department"`
	Designation *string `json:"designation"`
	Status      *string `json:"status"`
	UserTypeID  *string `json:"user_type_id"`
}

func (b updateBody) toUpdates() (bulkops.UserUpdates, error) {
	var upd bulkops.UserUpdates
	if b.Department != nil {
		clean := htmlsanitize.Plain(*b.Department)
		upd.Department = &clean
	}
	if b.Designation != nil {
		clean := htmlsanitize.Plain(*b.Designation)
		upd.Designation = &clean
	}
	if b.Status != nil {
		if !status.IsValid(*b.Status) {
			return upd, fmt.Errorf("status must be %q or %q", status.Active, status.Disabled)
		}
		upd.Status = b.Status
	}
	if b.UserTypeID != nil {
		upd.SetUserType = true
		if *b.UserTypeID != "" {
			id, err := primitive.ObjectIDFromHex(*b.UserTypeID)
			if err != nil {
				return upd, errors.New("user_type_id is not a valid id")
			}
			upd.UserTypeID = &id
		}
	}
	return upd, nil
}

func (b updateBody) empty() bool {
	return b.Department == nil && b.Designation == nil && b.Status == nil && b.UserTypeID == nil
}

type bulkEditRequest struct {
	UserIDs []string   `json:"user_ids"`
	Updates updateBody `json:"updates"`
}

// BulkEdit handles PATCH /users/bulk-edit.
func (h *Handler) BulkEdit(w http.ResponseWriter, r *http.Request) {
	var req bulkEditRequest
	if err := jsonapi.Decode(r, &req); err != nil {
		jsonapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.UserIDs) == 0 {
		jsonapi.Error(w, http.StatusBadRequest, "user_ids must be non-empty")
		return
	}
	if req.Updates.empty() {
		jsonapi.Error(w, http.StatusBadRequest, "updates must set at least one field")
		return
	}
	userIDs := make([]primitive.ObjectID, 0, len(req.UserIDs))
	for _, hex := range req.UserIDs {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			jsonapi.Error(w, http.StatusBadRequest, fmt.Sprintf("user_ids contains invalid id %q", hex))
			return
		}
		userIDs = append(userIDs, id)
	}
	updates, err := req.Updates.toUpdates()
	if err != nil {
		jsonapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	res, err := h.Coordinator.BulkEditUsers(ctx, userIDs, updates)
	if err != nil {
		if errors.Is(err, bulkops.ErrUserTypeNotFound) {
			jsonapi.Error(w, http.StatusNotFound, "user type not found")
			return
		}
		h.Log.Error("bulk user edit failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "bulk edit failed")
		return
	}

	_, _, actorID, _ := authz.UserCtx(r)
	h.AuditLog.AdminAction(ctx, r, audit.EventBulkEditUsers, actorID, res.OperationID, map[string]string{
		"users":   strconv.Itoa(len(userIDs)),
		"updated": strconv.FormatInt(res.Updated, 10),
		"synced":  strconv.FormatInt(syncedCount(res), 10),
	})
	jsonapi.Respond(w, http.StatusOK, res)
}

// Update handles PATCH /users/{userID}: the single-user form of the bulk
// edit, returning the refreshed user plus the sync counts when the edit
// moved them to a different type.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		jsonapi.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var body updateBody
	if err := jsonapi.Decode(r, &body); err != nil {
		jsonapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.empty() {
		jsonapi.Error(w, http.StatusBadRequest, "updates must set at least one field")
		return
	}
	updates, err := body.toUpdates()
	if err != nil {
		jsonapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			jsonapi.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.Log.Error("update user: lookup failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not update user")
		return
	}

	if updates.SetUserType && updates.UserTypeID != nil {
		if _, err := h.UserTypes.GetByID(ctx, *updates.UserTypeID); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				jsonapi.Error(w, http.StatusNotFound, "user type not found")
				return
			}
			h.Log.Error("update user: type lookup failed", zap.Error(err))
			jsonapi.Error(w, http.StatusInternalServerError, "could not update user")
			return
		}
	}

	if updates.Department != nil || updates.Designation != nil || updates.Status != nil {
		if _, err := h.Users.UpdateFields(ctx, id, userstore.FieldUpdate{
			Department:  updates.Department,
			Designation: updates.Designation,
			Status:      updates.Status,
		}); err != nil {
			h.Log.Error("update user: field update failed", zap.Error(err))
			jsonapi.Error(w, http.StatusInternalServerError, "could not update user")
			return
		}
	}

	var sync any
	if updates.SetUserType && !sameTypeID(u.UserTypeID, updates.UserTypeID) {
		oldType := u.UserTypeID
		if _, err := h.Users.SetUserType(ctx, id, updates.UserTypeID); err != nil {
			h.Log.Error("update user: type change failed", zap.Error(err))
			jsonapi.Error(w, http.StatusInternalServerError, "could not update user")
			return
		}
		result, err := h.Engine.OnUserTypeChanged(ctx, id, oldType, updates.UserTypeID)
		if err != nil {
			h.Log.Error("update user: assignment sync failed",
				zap.String("user_id", id.Hex()), zap.Error(err))
			jsonapi.Error(w, http.StatusInternalServerError, "type updated but assignment sync failed; retry the edit")
			return
		}
		sync = result

		_, _, actorID, _ := authz.UserCtx(r)
		h.AuditLog.AdminAction(ctx, r, audit.EventUserTypeChanged, actorID, "", map[string]string{
			"user_id":  id.Hex(),
			"old_type": hexOrEmpty(oldType),
			"new_type": hexOrEmpty(updates.UserTypeID),
		})
	}

	fresh, err := h.Users.GetByID(ctx, id)
	if err != nil {
		h.Log.Error("update user: reload failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not load updated user")
		return
	}
	jsonapi.Respond(w, http.StatusOK, map[string]any{
		"user": fresh,
		"sync": sync,
	})
}

func sameTypeID(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func hexOrEmpty(id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	return id.Hex()
}

func syncedCount(res bulkops.EditResult) int64 {
	if res.ProgramSync == nil {
		return 0
	}
	return res.ProgramSync.Synced
}
