package usertypes_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mwhitaker/enrollhub/internal/app/features/usertypes"
	assignmentstore "github.com/mwhitaker/enrollhub/internal/app/store/assignments"
	"github.com/mwhitaker/enrollhub/internal/app/store/audit"
	userstore "github.com/mwhitaker/enrollhub/internal/app/store/users"
	syncengine "github.com/mwhitaker/enrollhub/internal/app/sync"
	"github.com/mwhitaker/enrollhub/internal/app/system/auditlog"
	"github.com/mwhitaker/enrollhub/internal/app/system/indexes"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"github.com/mwhitaker/enrollhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T, db *mongo.Database) http.Handler {
	t.Helper()
	log := zap.NewNop()
	audits := auditlog.New(audit.New(db), log, auditlog.Config{Auth: "off", Admin: "off"})
	h := usertypes.NewHandler(db, syncengine.New(db, log), audits, log)
	return usertypes.Routes(h)
}

func adminRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return testutil.WithUser(req, testutil.AdminUser())
}

func TestCreate_RequiresAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newTestRouter(t, db)

	body := map[string]string{"name": "Premium"}
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest("POST", "/", &buf)
	req = testutil.WithUser(req, testutil.LearnerUser())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}
}

func TestCreate_And_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newTestRouter(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("index setup failed: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest("POST", "/", map[string]string{"name": "Premium", "description": "top tier"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created models.UserType
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if created.Name != "Premium" {
		t.Errorf("expected name Premium, got %q", created.Name)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest("POST", "/", map[string]string{"name": "premium"}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d", rec.Code)
	}
}

func TestAddLink(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	router := newTestRouter(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	typ := fx.CreateUserType(ctx, "Tier")
	program := fx.CreateProgram(ctx, "Program")
	member := fx.CreateLearner(ctx, "member@example.com", &typ.ID)

	target := fmt.Sprintf("/%s/programs", typ.ID.Hex())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest("POST", target, map[string]string{"item_id": program.ID.Hex()}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		RowsAdded int64 `json:"rows_added"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.RowsAdded != 1 {
		t.Errorf("expected 1 row fanned out, got %d", resp.RowsAdded)
	}

	programs := assignmentstore.NewPrograms(db)
	active, err := programs.HasActiveUserType(ctx, member.ID, program.ID)
	if err != nil {
		t.Fatalf("HasActiveUserType failed: %v", err)
	}
	if !active {
		t.Error("expected the member to inherit the program")
	}

	// Same link again conflicts.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest("POST", target, map[string]string{"item_id": program.ID.Hex()}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate link, got %d", rec.Code)
	}

	// Unknown item 404s.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest("POST", target, map[string]string{"item_id": primitive.NewObjectID().Hex()}))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown program, got %d", rec.Code)
	}
}

func TestRemoveLink(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	router := newTestRouter(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	typ := fx.CreateUserType(ctx, "Tier")
	course := fx.CreateCourse(ctx, "Course")
	member := fx.CreateLearner(ctx, "member@example.com", &typ.ID)
	fx.CreateTypeLink(ctx, models.KindCourse, typ.ID, course.ID)
	fx.CreateAssignment(ctx, models.KindCourse, member.ID, course.ID, models.SourceUserType, true)

	target := fmt.Sprintf("/%s/courses/%s", typ.ID.Hex(), course.ID.Hex())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest("DELETE", target, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool  `json:"success"`
		Removed int64 `json:"removed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Success || resp.Removed != 1 {
		t.Errorf("expected 1 inherited row retracted, got %+v", resp)
	}

	courses := assignmentstore.NewCourses(db)
	active, err := courses.HasActiveUserType(ctx, member.ID, course.ID)
	if err != nil {
		t.Fatalf("HasActiveUserType failed: %v", err)
	}
	if active {
		t.Error("expected the inherited row to be gone")
	}

	// Removing again 404s.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest("DELETE", target, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing link, got %d", rec.Code)
	}
}

func TestDeleteType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	router := newTestRouter(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	typ := fx.CreateUserType(ctx, "Doomed")
	program := fx.CreateProgram(ctx, "Program")
	member := fx.CreateLearner(ctx, "member@example.com", &typ.ID)
	fx.CreateTypeLink(ctx, models.KindProgram, typ.ID, program.ID)
	fx.CreateAssignment(ctx, models.KindProgram, member.ID, program.ID, models.SourceUserType, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest("DELETE", "/"+typ.ID.Hex(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success         bool  `json:"success"`
		RowsRemoved     int64 `json:"rows_removed"`
		MembersDetached int64 `json:"members_detached"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Success || resp.RowsRemoved != 1 || resp.MembersDetached != 1 {
		t.Errorf("unexpected result %+v", resp)
	}

	users := userstore.New(db)
	got, err := users.GetByID(ctx, member.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.UserTypeID != nil {
		t.Error("expected the member's type to be cleared")
	}

	// The type is gone; deleting again 404s.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, adminRequest("DELETE", "/"+typ.ID.Hex(), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for deleted type, got %d", rec.Code)
	}
}
