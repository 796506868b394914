package login_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mwhitaker/enrollhub/internal/app/features/login"
	"github.com/mwhitaker/enrollhub/internal/app/store/audit"
	userstore "github.com/mwhitaker/enrollhub/internal/app/store/users"
	"github.com/mwhitaker/enrollhub/internal/app/system/auditlog"
	"github.com/mwhitaker/enrollhub/internal/app/system/auth"
	"github.com/mwhitaker/enrollhub/internal/app/system/status"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"github.com/mwhitaker/enrollhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestHandler(t *testing.T, db *mongo.Database) *login.Handler {
	t.Helper()
	log := zap.NewNop()
	if err := auth.InitSessionStore("0123456789abcdef0123456789abcdef", "enrollhub-test", "", false, log); err != nil {
		t.Fatalf("InitSessionStore failed: %v", err)
	}
	audits := auditlog.New(audit.New(db), log, auditlog.Config{Auth: "db", Admin: "off"})
	return login.NewHandler(db, audits, log)
}

func createAdmin(t *testing.T, db *mongo.Database, email, password string) models.User {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	u, err := userstore.New(db).Create(ctx, models.User{
		FullName:     "Test Admin",
		Email:        email,
		Role:         "admin",
		Status:       status.Active,
		PasswordHash: string(hash),
	})
	if err != nil {
		t.Fatalf("user create failed: %v", err)
	}
	return u
}

func postLogin(handler *login.Handler, email, password string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest("POST", "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.Login(rec, req)
	return rec
}

func TestLogin_Success(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := newTestHandler(t, db)
	u := createAdmin(t, db, "admin@example.com", "correct-horse")

	rec := postLogin(handler, "Admin@Example.com", "correct-horse")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID       string `json:"id"`
		FullName string `json:"full_name"`
		Role     string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.ID != u.ID.Hex() {
		t.Errorf("expected user id %s, got %s", u.ID.Hex(), resp.ID)
	}
	if resp.Role != "admin" {
		t.Errorf("expected role admin, got %q", resp.Role)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Error("expected a session cookie to be set")
	}
}

func TestLogin_FailuresAreUniform(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := newTestHandler(t, db)
	createAdmin(t, db, "admin@example.com", "correct-horse")

	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Disabled account.
	disabledHash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if _, err := userstore.New(db).Create(ctx, models.User{
		FullName:     "Disabled Admin",
		Email:        "disabled@example.com",
		Role:         "admin",
		Status:       status.Disabled,
		PasswordHash: string(disabledHash),
	}); err != nil {
		t.Fatalf("user create failed: %v", err)
	}

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown account", "ghost@example.com", "whatever"},
		{"wrong password", "admin@example.com", "wrong"},
		{"disabled account", "disabled@example.com", "pw"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postLogin(handler, tc.email, tc.password)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			var resp struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if resp.Error != "invalid email or password" {
				t.Errorf("expected the uniform failure message, got %q", resp.Error)
			}
		})
	}

	// Each failure mode leaves a distinct audit trail.
	events, err := audit.New(db).Query(ctx, audit.QueryFilter{Category: audit.CategoryAuth})
	if err != nil {
		t.Fatalf("audit query failed: %v", err)
	}
	types := map[string]bool{}
	for _, e := range events {
		types[e.EventType] = true
	}
	for _, want := range []string{
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
	} {
		if !types[want] {
			t.Errorf("expected audit event %q to be recorded", want)
		}
	}
}

func TestLogin_MissingFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := newTestHandler(t, db)

	rec := postLogin(handler, "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLogin_RateLimitsRepeatedFailures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := newTestHandler(t, db)
	createAdmin(t, db, "admin@example.com", "correct-password")

	// The per-account budget is 5 attempts; the sixth is throttled even
	// with the right password.
	for i := 0; i < 5; i++ {
		rec := postLogin(handler, "admin@example.com", "wrong-password")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	rec := postLogin(handler, "admin@example.com", "correct-password")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exhausting the budget, got %d", rec.Code)
	}

	handler.Limiter.ResetEmail("admin@example.com")
	rec = postLogin(handler, "admin@example.com", "correct-password")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after reset, got %d: %s", rec.Code, rec.Body.String())
	}
}
