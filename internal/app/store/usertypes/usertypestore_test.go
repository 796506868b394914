package usertypestore_test

import (
	"errors"
	"testing"

	usertypestore "github.com/mwhitaker/enrollhub/internal/app/store/usertypes"
	"github.com/mwhitaker/enrollhub/internal/app/system/indexes"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"github.com/mwhitaker/enrollhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestCreate_DuplicateName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := usertypestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	created, err := store.Create(ctx, models.UserType{Name: "Premium Member"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.NameCI != "premium member" {
		t.Errorf("expected folded name_ci, got %q", created.NameCI)
	}
	if created.Status != "active" {
		t.Errorf("expected default status active, got %q", created.Status)
	}

	// Uniqueness is case-insensitive through name_ci.
	_, err = store.Create(ctx, models.UserType{Name: "PREMIUM member"})
	if !errors.Is(err, usertypestore.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestList_SortedByFoldedName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := usertypestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, name := range []string{"zeta", "Alpha", "mid"} {
		if _, err := store.Create(ctx, models.UserType{Name: name}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	types, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(types) != 3 {
		t.Fatalf("expected 3 types, got %d", len(types))
	}
	want := []string{"Alpha", "mid", "zeta"}
	for i, name := range want {
		if types[i].Name != name {
			t.Errorf("position %d: expected %q, got %q", i, name, types[i].Name)
		}
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := usertypestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := usertypestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.UserType{Name: "Temp"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	n, err := store.Delete(ctx, created.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 document removed, got %d", n)
	}

	n, err = store.Delete(ctx, created.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 on repeat delete, got %d", n)
	}
}
