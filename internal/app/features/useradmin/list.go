// internal/app/features/useradmin/list.go
package useradmin

import (
	"context"
	"net/http"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/mwhitaker/enrollhub/internal/app/features/shared/jsonapi"
	userstore "github.com/mwhitaker/enrollhub/internal/app/store/users"
	"github.com/mwhitaker/enrollhub/internal/app/system/timeouts"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type listUsersResponse struct {
	Users      []models.User `json:"users"`
	Total      int64         `json:"total"`
	HasPrev    bool          `json:"has_prev"`
	HasNext    bool          `json:"has_next"`
	PrevCursor string        `json:"prev_cursor,omitempty"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// List handles GET /users. Supports ?search= (name prefix or email),
// ?status=, ?role=, ?user_type_id=, and keyset paging via
// ?after=/?before= cursors from a previous page.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	opts := userstore.ListOptions{
		Search: query.Get(r, "search"),
		Status: query.Get(r, "status"),
		Role:   query.Get(r, "role"),
		Before: query.Get(r, "before"),
		After:  query.Get(r, "after"),
	}
	if raw := query.Get(r, "user_type_id"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			jsonapi.Error(w, http.StatusBadRequest, "invalid user_type_id")
			return
		}
		opts.UserTypeID = &id
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	page, err := h.Users.List(ctx, opts)
	if err != nil {
		h.Log.Error("list users failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not list users")
		return
	}
	if page.Users == nil {
		page.Users = []models.User{}
	}

	jsonapi.Respond(w, http.StatusOK, listUsersResponse{
		Users:      page.Users,
		Total:      page.Total,
		HasPrev:    page.HasPrev,
		HasNext:    page.HasNext,
		PrevCursor: page.PrevCursor,
		NextCursor: page.NextCursor,
	})
}
