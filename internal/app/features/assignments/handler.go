// internal/app/features/assignments/handler.go
//
// Bulk entitlement endpoints: grant and withdraw manual assignments over
// a cross product of users and items.
package assignments

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	bulkops "github.com/mwhitaker/enrollhub/internal/app/bulk"
	"github.com/mwhitaker/enrollhub/internal/app/features/shared/jsonapi"
	"github.com/mwhitaker/enrollhub/internal/app/store/audit"
	"github.com/mwhitaker/enrollhub/internal/app/system/auditlog"
	"github.com/mwhitaker/enrollhub/internal/app/system/authz"
	"github.com/mwhitaker/enrollhub/internal/app/system/timeouts"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// maxBatchPairs caps the cross product of one bulk call.
const maxBatchPairs = 10000

type Handler struct {
	Coordinator *bulkops.Coordinator
	AuditLog    *auditlog.Logger
	Log         *zap.Logger
}

func NewHandler(coordinator *bulkops.Coordinator, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Coordinator: coordinator,
		AuditLog:    auditLog,
		Log:         logger,
	}
}

type bulkRequest struct {
	UserIDs  []string `json:"user_ids"`
	ItemIDs  []string `json:"item_ids"`
	ItemKind string   `json:"item_kind"`
}

func (req bulkRequest) parse() (models.ItemKind, []primitive.ObjectID, []primitive.ObjectID, error) {
	kind := models.ItemKind(req.ItemKind)
	if !kind.Valid() {
		return "", nil, nil, fmt.Errorf("item_kind must be %q or %q", models.KindProgram, models.KindCourse)
	}
	if len(req.UserIDs) == 0 || len(req.ItemIDs) == 0 {
		return "", nil, nil, fmt.Errorf("user_ids and item_ids must be non-empty")
	}
	if len(req.UserIDs)*len(req.ItemIDs) > maxBatchPairs {
		return "", nil, nil, fmt.Errorf("batch too large: at most %d user-item pairs per call", maxBatchPairs)
	}
	userIDs, err := parseIDs(req.UserIDs, "user_ids")
	if err != nil {
		return "", nil, nil, err
	}
	itemIDs, err := parseIDs(req.ItemIDs, "item_ids")
	if err != nil {
		return "", nil, nil, err
	}
	return kind, userIDs, itemIDs, nil
}

func parseIDs(hexes []string, field string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := primitive.ObjectIDFromHex(h)
		if err != nil {
			return nil, fmt.Errorf("%s contains invalid id %q", field, h)
		}
		out = append(out, id)
	}
	return out, nil
}

// BulkAssign handles POST /assignments/bulk-assign.
func (h *Handler) BulkAssign(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := jsonapi.Decode(r, &req); err != nil {
		jsonapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, userIDs, itemIDs, err := req.parse()
	if err != nil {
		jsonapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	_, actorName, actorID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	res, err := h.Coordinator.BulkAssign(ctx, kind, userIDs, itemIDs, actorName)
	if err != nil {
		h.Log.Error("bulk assign failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "bulk assign failed")
		return
	}

	h.AuditLog.AdminAction(ctx, r, audit.EventBulkAssign, actorID, res.OperationID, map[string]string{
		"item_kind": string(kind),
		"users":     strconv.Itoa(len(userIDs)),
		"items":     strconv.Itoa(len(itemIDs)),
		"assigned":  strconv.FormatInt(res.Count, 10),
	})
	jsonapi.Respond(w, http.StatusOK, res)
}

// BulkDeassign handles POST /assignments/bulk-deassign.
func (h *Handler) BulkDeassign(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := jsonapi.Decode(r, &req); err != nil {
		jsonapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, userIDs, itemIDs, err := req.parse()
	if err != nil {
		jsonapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	_, _, actorID, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	res, err := h.Coordinator.BulkDeassign(ctx, kind, userIDs, itemIDs)
	if err != nil {
		h.Log.Error("bulk deassign failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "bulk deassign failed")
		return
	}

	h.AuditLog.AdminAction(ctx, r, audit.EventBulkDeassign, actorID, res.OperationID, map[string]string{
		"item_kind":        string(kind),
		"users":            strconv.Itoa(len(userIDs)),
		"items":            strconv.Itoa(len(itemIDs)),
		"deactivated":      strconv.FormatInt(res.Deactivated, 10),
		"skipped_usertype": strconv.FormatInt(res.SkippedUserTypeAssignments, 10),
	})
	jsonapi.Respond(w, http.StatusOK, res)
}
