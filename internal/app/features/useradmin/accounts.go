// internal/app/features/useradmin/accounts.go
package useradmin

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mwhitaker/enrollhub/internal/app/features/shared/jsonapi"
	"github.com/mwhitaker/enrollhub/internal/app/store/audit"
	userstore "github.com/mwhitaker/enrollhub/internal/app/store/users"
	"github.com/mwhitaker/enrollhub/internal/app/system/authz"
	"github.com/mwhitaker/enrollhub/internal/app/system/htmlsanitize"
	"github.com/mwhitaker/enrollhub/internal/app/system/normalize"
	"github.com/mwhitaker/enrollhub/internal/app/system/status"
	"github.com/mwhitaker/enrollhub/internal/app/system/timeouts"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type createUserRequest struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	Department  string `json:"department,omitempty"`
	Designation string `json:"designation,omitempty"`
	UserTypeID  string `json:"user_type_id,omitempty"`
}

// Create handles POST /users. A user created with a type immediately
// inherits that type's linked items.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := jsonapi.Decode(r, &req); err != nil {
		jsonapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	fullName := normalize.Name(req.FullName)
	email := normalize.Email(req.Email)
	if fullName == "" || email == "" || req.Password == "" {
		jsonapi.Error(w, http.StatusBadRequest, "full_name, email, and password are required")
		return
	}
	if req.Role != "admin" && req.Role != "learner" {
		jsonapi.Error(w, http.StatusBadRequest, "role must be admin or learner")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var typeID *primitive.ObjectID
	if req.UserTypeID != "" {
		id, err := primitive.ObjectIDFromHex(req.UserTypeID)
		if err != nil {
			jsonapi.Error(w, http.StatusBadRequest, "user_type_id is not a valid id")
			return
		}
		if _, err := h.UserTypes.GetByID(ctx, id); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				jsonapi.Error(w, http.StatusNotFound, "user type not found")
				return
			}
			h.Log.Error("create user: type lookup failed", zap.Error(err))
			jsonapi.Error(w, http.StatusInternalServerError, "could not create user")
			return
		}
		typeID = &id
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Log.Error("create user: password hash failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not create user")
		return
	}

	u, err := h.Users.Create(ctx, models.User{
		FullName:     fullName,
		Email:        email,
		Role:         req.Role,
		Status:       status.Active,
		PasswordHash: string(hash),
		Department:   htmlsanitize.Plain(req.Department),
		Designation:  htmlsanitize.Plain(req.Designation),
		UserTypeID:   typeID,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			jsonapi.Error(w, http.StatusConflict, "a user with this email already exists")
			return
		}
		h.Log.Error("create user failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not create user")
		return
	}

	if typeID != nil {
		if _, err := h.Engine.OnUserTypeChanged(ctx, u.ID, nil, typeID); err != nil {
			h.Log.Warn("create user: inherited assignment sync failed",
				zap.String("user_id", u.ID.Hex()), zap.Error(err))
		}
	}

	_, _, actorID, _ := authz.UserCtx(r)
	h.AuditLog.AdminAction(ctx, r, audit.EventUserCreated, actorID, "", map[string]string{
		"user_id": u.ID.Hex(),
		"email":   u.Email,
		"role":    u.Role,
	})
	jsonapi.Respond(w, http.StatusCreated, u)
}

// Get handles GET /users/{userID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		jsonapi.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			jsonapi.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.Log.Error("get user failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not load user")
		return
	}
	jsonapi.Respond(w, http.StatusOK, u)
}

// Delete handles DELETE /users/{userID}. The user's assignment rows of
// both sources and both kinds go with the account.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		jsonapi.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	deleted, err := h.Users.Delete(ctx, id)
	if err != nil {
		h.Log.Error("delete user failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not delete user")
		return
	}
	if deleted == 0 {
		jsonapi.Error(w, http.StatusNotFound, "user not found")
		return
	}

	var removed int64
	for _, store := range h.Assigns {
		n, err := store.DeleteAllForUser(ctx, id)
		if err != nil {
			h.Log.Error("delete user: assignment cleanup failed",
				zap.String("user_id", id.Hex()),
				zap.String("kind", string(store.Kind())),
				zap.Error(err))
			continue
		}
		removed += n
	}

	_, _, actorID, _ := authz.UserCtx(r)
	h.AuditLog.AdminAction(ctx, r, audit.EventUserDeleted, actorID, "", map[string]string{
		"user_id":      id.Hex(),
		"rows_removed": strconv.FormatInt(removed, 10),
	})
	jsonapi.Respond(w, http.StatusOK, map[string]any{
		"success":      true,
		"rows_removed": removed,
	})
}
