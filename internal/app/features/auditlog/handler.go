// internal/app/features/auditlog/handler.go
//
// Read-only audit trail queries, mainly used to trace the per-pair
// effects of a bulk operation by its operation id.
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/mwhitaker/enrollhub/internal/app/features/shared/jsonapi"
	"github.com/mwhitaker/enrollhub/internal/app/store/audit"
	"github.com/mwhitaker/enrollhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Handler struct {
	Audit *audit.Store
	Log   *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{Audit: audit.New(db), Log: logger}
}

// List handles GET /audit. Filters come from the query string:
// user_id, category, event_type, operation_id, start, end (RFC 3339),
// limit, offset.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		Category:    q.Get("category"),
		EventType:   q.Get("event_type"),
		OperationID: q.Get("operation_id"),
		Limit:       defaultLimit,
	}

	if hex := q.Get("user_id"); hex != "" {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			jsonapi.Error(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		filter.UserID = &id
	}
	for name, dst := range map[string]**time.Time{"start": &filter.StartTime, "end": &filter.EndTime} {
		if raw := q.Get(name); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				jsonapi.Error(w, http.StatusBadRequest, name+" must be RFC 3339")
				return
			}
			*dst = &t
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > maxLimit {
			jsonapi.Error(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			jsonapi.Error(w, http.StatusBadRequest, "offset must be non-negative")
			return
		}
		filter.Offset = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	events, err := h.Audit.Query(ctx, filter)
	if err != nil {
		h.Log.Error("audit query failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not query audit events")
		return
	}
	jsonapi.Respond(w, http.StatusOK, map[string]any{"events": events})
}
