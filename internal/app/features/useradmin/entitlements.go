// internal/app/features/useradmin/entitlements.go
package useradmin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mwhitaker/enrollhub/internal/app/features/shared/jsonapi"
	"github.com/mwhitaker/enrollhub/internal/app/policy/provenance"
	"github.com/mwhitaker/enrollhub/internal/app/system/timeouts"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type assignmentRow struct {
	ItemID         string     `json:"item_id"`
	Source         string     `json:"source"`
	IsActive       bool       `json:"is_active"`
	AssignedAt     time.Time  `json:"assigned_at"`
	AssignedByName string     `json:"assigned_by_name,omitempty"`
	DeactivatedAt  *time.Time `json:"deactivated_at,omitempty"`
}

type provenanceRow struct {
	ItemID         string `json:"item_id"`
	ItemKind       string `json:"item_kind"`
	Classification string `json:"classification"`
}

type entitlementsResponse struct {
	Programs   []assignmentRow `json:"programs"`
	Courses    []assignmentRow `json:"courses"`
	Provenance []provenanceRow `json:"provenance"`
}

// Entitlements handles GET /users/{userID}/assignments: every assignment
// row the user holds (soft-deleted manual rows included, for history)
// plus the derived per-item provenance of the active ones.
func (h *Handler) Entitlements(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		jsonapi.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Users.GetByID(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			jsonapi.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.Log.Error("entitlements: user lookup failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not load assignments")
		return
	}

	resp := entitlementsResponse{
		Programs:   []assignmentRow{},
		Courses:    []assignmentRow{},
		Provenance: []provenanceRow{},
	}

	for _, kind := range []models.ItemKind{models.KindProgram, models.KindCourse} {
		rows, err := h.Assigns[kind].ListByUser(ctx, id)
		if err != nil {
			h.Log.Error("entitlements: row load failed",
				zap.String("kind", string(kind)), zap.Error(err))
			jsonapi.Error(w, http.StatusInternalServerError, "could not load assignments")
			return
		}

		out := make([]assignmentRow, 0, len(rows))
		for _, row := range rows {
			out = append(out, assignmentRow{
				ItemID:         row.ItemID.Hex(),
				Source:         row.Source,
				IsActive:       row.IsActive,
				AssignedAt:     row.AssignedAt,
				AssignedByName: row.AssignedByName,
				DeactivatedAt:  row.DeactivatedAt,
			})
		}
		if kind == models.KindProgram {
			resp.Programs = out
		} else {
			resp.Courses = out
		}

		for itemID, class := range provenance.ByItem(rows) {
			resp.Provenance = append(resp.Provenance, provenanceRow{
				ItemID:         itemID.Hex(),
				ItemKind:       string(kind),
				Classification: string(class),
			})
		}
	}

	jsonapi.Respond(w, http.StatusOK, resp)
}
