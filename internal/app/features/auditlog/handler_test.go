// internal/app/features/auditlog/handler_test.go
package auditlog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	auditlogfeature "github.com/mwhitaker/enrollhub/internal/app/features/auditlog"
	"github.com/mwhitaker/enrollhub/internal/app/store/audit"
	"github.com/mwhitaker/enrollhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T, db *mongo.Database) http.Handler {
	t.Helper()
	return auditlogfeature.Routes(auditlogfeature.NewHandler(db, zap.NewNop()))
}

func adminGet(target string) *http.Request {
	return testutil.WithUser(httptest.NewRequest("GET", target, nil), testutil.AdminUser())
}

type eventsResponse struct {
	Events []audit.Event `json:"events"`
}

func TestList_FiltersByOperationID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newTestRouter(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	events := audit.New(db)
	userID := primitive.NewObjectID()
	opID := "op-1234"
	seed := []audit.Event{
		{Category: audit.CategoryAdmin, EventType: audit.EventBulkAssign, OperationID: opID, UserID: &userID},
		{Category: audit.CategoryAdmin, EventType: audit.EventBulkAssign, OperationID: "op-other"},
		{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: &userID},
	}
	for i, e := range seed {
		if err := events.Log(ctx, e); err != nil {
			t.Fatalf("failed to seed event %d: %v", i, err)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminGet("/?operation_id="+opID))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp eventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].OperationID != opID {
		t.Errorf("expected only the %s event, got %+v", opID, resp.Events)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, adminGet("/?user_id="+userID.Hex()))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp = eventsResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Events) != 2 {
		t.Errorf("user_id filter returned %d events, want 2", len(resp.Events))
	}
}

func TestList_BadParams(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newTestRouter(t, db)

	cases := []struct {
		name   string
		target string
	}{
		{"malformed user_id", "/?user_id=nope"},
		{"malformed start time", "/?start=yesterday"},
		{"limit above cap", "/?limit=9999"},
		{"negative offset", "/?offset=-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, adminGet(tc.target))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestList_TimeWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newTestRouter(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	events := audit.New(db)
	now := time.Now().UTC()
	old := audit.Event{Category: audit.CategoryAdmin, EventType: audit.EventUserCreated, Timestamp: now.Add(-48 * time.Hour)}
	recent := audit.Event{Category: audit.CategoryAdmin, EventType: audit.EventUserCreated, Timestamp: now}
	for _, e := range []audit.Event{old, recent} {
		if err := events.Log(ctx, e); err != nil {
			t.Fatalf("failed to seed event: %v", err)
		}
	}

	start := now.Add(-time.Hour).Format(time.RFC3339)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminGet("/?start="+start))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp eventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Events) != 1 {
		t.Errorf("time window returned %d events, want 1", len(resp.Events))
	}
}

func TestList_RequiresAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newTestRouter(t, db)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(httptest.NewRequest("GET", "/", nil), testutil.LearnerUser()))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a learner, got %d", rec.Code)
	}
}
