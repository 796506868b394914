package bootstrap

import (
	"testing"

	userstore "github.com/mwhitaker/enrollhub/internal/app/store/users"
	"github.com/mwhitaker/enrollhub/internal/app/system/status"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"github.com/mwhitaker/enrollhub/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestEnsureAdmin_CreatesAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	deps := DBDeps{MongoClient: db.Client(), MongoDatabase: db}
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := ensureAdmin(ctx, deps, "Boot@Example.com", "bootstrap-pw", zap.NewNop()); err != nil {
		t.Fatalf("ensureAdmin failed: %v", err)
	}

	u, err := userstore.New(db).GetByEmail(ctx, "boot@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if u.Role != "admin" {
		t.Errorf("expected role admin, got %q", u.Role)
	}
	if u.Status != status.Active {
		t.Errorf("expected active status, got %q", u.Status)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("bootstrap-pw")) != nil {
		t.Error("expected the configured password to verify")
	}
}

func TestEnsureAdmin_LeavesExistingAccountAlone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	deps := DBDeps{MongoClient: db.Client(), MongoDatabase: db}
	ctx, cancel := testutil.TestContext()
	defer cancel()

	hash, _ := bcrypt.GenerateFromPassword([]byte("original-pw"), bcrypt.MinCost)
	if _, err := userstore.New(db).Create(ctx, models.User{
		FullName:     "Existing Admin",
		Email:        "boot@example.com",
		Role:         "admin",
		Status:       status.Active,
		PasswordHash: string(hash),
	}); err != nil {
		t.Fatalf("user create failed: %v", err)
	}

	// Re-running with a different password must not rotate it.
	if err := ensureAdmin(ctx, deps, "boot@example.com", "rotated-pw", zap.NewNop()); err != nil {
		t.Fatalf("ensureAdmin failed: %v", err)
	}

	u, err := userstore.New(db).GetByEmail(ctx, "boot@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if u.FullName != "Existing Admin" {
		t.Errorf("expected the existing account to survive, got %q", u.FullName)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("original-pw")) != nil {
		t.Error("expected the original password to remain valid")
	}
}

func TestEnsureAdmin_NonAdminAccountUntouched(t *testing.T) {
	db := testutil.SetupTestDB(t)
	deps := DBDeps{MongoClient: db.Client(), MongoDatabase: db}
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := userstore.New(db).Create(ctx, models.User{
		FullName: "Learner With Admin Email",
		Email:    "boot@example.com",
		Role:     "learner",
		Status:   status.Active,
	}); err != nil {
		t.Fatalf("user create failed: %v", err)
	}

	if err := ensureAdmin(ctx, deps, "boot@example.com", "pw", zap.NewNop()); err != nil {
		t.Fatalf("ensureAdmin failed: %v", err)
	}

	u, err := userstore.New(db).GetByEmail(ctx, "boot@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if u.Role != "learner" {
		t.Errorf("expected the learner account to keep its role, got %q", u.Role)
	}
}
