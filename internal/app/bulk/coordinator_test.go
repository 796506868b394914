package bulkops_test

import (
	"errors"
	"strings"
	"testing"

	bulkops "github.com/mwhitaker/enrollhub/internal/app/bulk"
	assignmentstore "github.com/mwhitaker/enrollhub/internal/app/store/assignments"
	userstore "github.com/mwhitaker/enrollhub/internal/app/store/users"
	syncengine "github.com/mwhitaker/enrollhub/internal/app/sync"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"github.com/mwhitaker/enrollhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newCoordinator(db *mongo.Database) *bulkops.Coordinator {
	log := zap.NewNop()
	return bulkops.New(db, syncengine.New(db, log), log)
}

func TestBulkAssign(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	coord := newCoordinator(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u1 := fx.CreateLearner(ctx, "one@example.com", nil)
	u2 := fx.CreateLearner(ctx, "two@example.com", nil)
	p1 := fx.CreateProgram(ctx, "Program One")
	p2 := fx.CreateProgram(ctx, "Program Two")

	// u1 already has p1 manually.
	fx.CreateAssignment(ctx, models.KindProgram, u1.ID, p1.ID, models.SourceManual, true)

	res, err := coord.BulkAssign(ctx, models.KindProgram,
		[]primitive.ObjectID{u1.ID, u2.ID},
		[]primitive.ObjectID{p1.ID, p2.ID},
		"Admin")
	if err != nil {
		t.Fatalf("BulkAssign failed: %v", err)
	}
	if res.OperationID == "" {
		t.Error("expected an operation ID")
	}
	if res.Count != 3 {
		t.Errorf("expected 3 new grants (one pair already active), got %d", res.Count)
	}
	if len(res.Failed) != 0 {
		t.Errorf("expected no failures, got %v", res.Failed)
	}

	programs := assignmentstore.NewPrograms(db)
	for _, itemID := range []primitive.ObjectID{p1.ID, p2.ID} {
		count, err := programs.CountByItem(ctx, itemID)
		if err != nil {
			t.Fatalf("CountByItem failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 assignees on %s, got %d", itemID.Hex(), count)
		}
	}

	// Re-running the same batch grants nothing new.
	res, err = coord.BulkAssign(ctx, models.KindProgram,
		[]primitive.ObjectID{u1.ID, u2.ID},
		[]primitive.ObjectID{p1.ID, p2.ID},
		"Admin")
	if err != nil {
		t.Fatalf("BulkAssign failed: %v", err)
	}
	if res.Count != 0 {
		t.Errorf("expected idempotent re-run, got %d new grants", res.Count)
	}
}

func TestBulkAssign_UnknownIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	coord := newCoordinator(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u1 := fx.CreateLearner(ctx, "one@example.com", nil)
	c1 := fx.CreateCourse(ctx, "Course One")
	ghostUser := primitive.NewObjectID()
	ghostCourse := primitive.NewObjectID()

	res, err := coord.BulkAssign(ctx, models.KindCourse,
		[]primitive.ObjectID{u1.ID, ghostUser, u1.ID},
		[]primitive.ObjectID{c1.ID, ghostCourse},
		"Admin")
	if err != nil {
		t.Fatalf("BulkAssign failed: %v", err)
	}
	if res.Count != 1 {
		t.Errorf("expected 1 grant for the valid pair, got %d", res.Count)
	}
	if len(res.Failed) != 2 {
		t.Fatalf("expected one failure per unknown ID, got %v", res.Failed)
	}
	for _, f := range res.Failed {
		switch {
		case f.UserID == ghostUser.Hex():
			if f.Reason != "user not found" {
				t.Errorf("unexpected reason %q", f.Reason)
			}
		case f.ItemID == ghostCourse.Hex():
			if f.Reason != "course not found" {
				t.Errorf("unexpected reason %q", f.Reason)
			}
		default:
			t.Errorf("unexpected failure %+v", f)
		}
	}
}

func TestBulkDeassign_SkipsInheritedGrants(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	coord := newCoordinator(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	typ := fx.CreateUserType(ctx, "Tier")
	u1 := fx.CreateLearner(ctx, "one@example.com", nil)
	u2 := fx.CreateLearner(ctx, "two@example.com", &typ.ID)
	u3 := fx.CreateLearner(ctx, "three@example.com", nil)
	p := fx.CreateProgram(ctx, "Program")

	fx.CreateAssignment(ctx, models.KindProgram, u1.ID, p.ID, models.SourceManual, true)
	fx.CreateAssignment(ctx, models.KindProgram, u2.ID, p.ID, models.SourceUserType, true)
	// u3 has no grant at all.

	res, err := coord.BulkDeassign(ctx, models.KindProgram,
		[]primitive.ObjectID{u1.ID, u2.ID, u3.ID},
		[]primitive.ObjectID{p.ID})
	if err != nil {
		t.Fatalf("BulkDeassign failed: %v", err)
	}
	if res.Deactivated != 1 {
		t.Errorf("expected 1 manual grant deactivated, got %d", res.Deactivated)
	}
	if res.SkippedUserTypeAssignments != 1 {
		t.Errorf("expected 1 inherited grant skipped, got %d", res.SkippedUserTypeAssignments)
	}
	if !strings.Contains(res.Message, "inherited from a user type") {
		t.Errorf("expected skip explanation, got %q", res.Message)
	}
	if len(res.Failed) != 0 {
		t.Errorf("expected no failures, got %v", res.Failed)
	}

	programs := assignmentstore.NewPrograms(db)
	active, err := programs.HasActiveUserType(ctx, u2.ID, p.ID)
	if err != nil {
		t.Fatalf("HasActiveUserType failed: %v", err)
	}
	if !active {
		t.Error("expected the inherited row to survive deassign")
	}

	// The manual row is soft-deleted, not gone.
	rows, err := programs.ListByUser(ctx, u1.ID)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(rows) != 1 || rows[0].IsActive {
		t.Fatalf("expected 1 inactive manual row, got %+v", rows)
	}
}

func TestBulkEditUsers_TypeChangeSyncsAssignments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	coord := newCoordinator(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	oldType := fx.CreateUserType(ctx, "Old Tier")
	newType := fx.CreateUserType(ctx, "New Tier")
	oldProgram := fx.CreateProgram(ctx, "Old Program")
	newCourse := fx.CreateCourse(ctx, "New Course")
	fx.CreateTypeLink(ctx, models.KindProgram, oldType.ID, oldProgram.ID)
	fx.CreateTypeLink(ctx, models.KindCourse, newType.ID, newCourse.ID)

	u1 := fx.CreateLearner(ctx, "one@example.com", &oldType.ID)
	u2 := fx.CreateLearner(ctx, "two@example.com", &newType.ID) // already on target type
	fx.CreateAssignment(ctx, models.KindProgram, u1.ID, oldProgram.ID, models.SourceUserType, true)
	fx.CreateAssignment(ctx, models.KindCourse, u2.ID, newCourse.ID, models.SourceUserType, true)

	dept := "Research"
	res, err := coord.BulkEditUsers(ctx,
		[]primitive.ObjectID{u1.ID, u2.ID},
		bulkops.UserUpdates{Department: &dept, SetUserType: true, UserTypeID: &newType.ID})
	if err != nil {
		t.Fatalf("BulkEditUsers failed: %v", err)
	}
	if res.Updated != 2 {
		t.Errorf("expected 2 users updated, got %d", res.Updated)
	}
	if res.ProgramSync == nil {
		t.Fatal("expected a program_sync summary")
	}
	if res.ProgramSync.Synced != 1 {
		t.Errorf("expected 1 user synced (the other was already on the type), got %d", res.ProgramSync.Synced)
	}
	if !strings.Contains(res.Message, "Synced programs and courses") {
		t.Errorf("unexpected message %q", res.Message)
	}

	users := userstore.New(db)
	for _, uid := range []primitive.ObjectID{u1.ID, u2.ID} {
		got, err := users.GetByID(ctx, uid)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Department != "Research" {
			t.Errorf("expected department applied to %s, got %q", uid.Hex(), got.Department)
		}
		if got.UserTypeID == nil || *got.UserTypeID != newType.ID {
			t.Errorf("expected %s on the new type", uid.Hex())
		}
	}

	// u1's inherited rows now follow the new type.
	programs := assignmentstore.NewPrograms(db)
	rows, err := programs.ListByUser(ctx, u1.ID)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected old inherited program rows gone, got %d", len(rows))
	}
	courses := assignmentstore.NewCourses(db)
	active, err := courses.HasActiveUserType(ctx, u1.ID, newCourse.ID)
	if err != nil {
		t.Fatalf("HasActiveUserType failed: %v", err)
	}
	if !active {
		t.Error("expected new inherited course row for the moved user")
	}
}

func TestBulkEditUsers_ClearType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	coord := newCoordinator(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	typ := fx.CreateUserType(ctx, "Tier")
	program := fx.CreateProgram(ctx, "Program")
	fx.CreateTypeLink(ctx, models.KindProgram, typ.ID, program.ID)
	u := fx.CreateLearner(ctx, "member@example.com", &typ.ID)
	fx.CreateAssignment(ctx, models.KindProgram, u.ID, program.ID, models.SourceUserType, true)

	res, err := coord.BulkEditUsers(ctx,
		[]primitive.ObjectID{u.ID},
		bulkops.UserUpdates{SetUserType: true, UserTypeID: nil})
	if err != nil {
		t.Fatalf("BulkEditUsers failed: %v", err)
	}
	if res.Updated != 1 || res.ProgramSync == nil || res.ProgramSync.Synced != 1 {
		t.Fatalf("expected 1 updated and 1 synced, got %+v", res)
	}

	users := userstore.New(db)
	got, err := users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.UserTypeID != nil {
		t.Error("expected type to be cleared")
	}

	programs := assignmentstore.NewPrograms(db)
	rows, err := programs.ListByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected inherited rows retracted, got %d", len(rows))
	}
}

func TestBulkEditUsers_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	coord := newCoordinator(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateLearner(ctx, "one@example.com", nil)

	bad := "suspended"
	if _, err := coord.BulkEditUsers(ctx, []primitive.ObjectID{u.ID}, bulkops.UserUpdates{Status: &bad}); err == nil {
		t.Error("expected error for invalid status")
	}

	ghostType := primitive.NewObjectID()
	_, err := coord.BulkEditUsers(ctx, []primitive.ObjectID{u.ID},
		bulkops.UserUpdates{SetUserType: true, UserTypeID: &ghostType})
	if !errors.Is(err, bulkops.ErrUserTypeNotFound) {
		t.Fatalf("expected ErrUserTypeNotFound, got %v", err)
	}

	// Unknown users fail individually, not the whole batch.
	dept := "Ops"
	res, err := coord.BulkEditUsers(ctx,
		[]primitive.ObjectID{u.ID, primitive.NewObjectID()},
		bulkops.UserUpdates{Department: &dept})
	if err != nil {
		t.Fatalf("BulkEditUsers failed: %v", err)
	}
	if res.Updated != 1 {
		t.Errorf("expected 1 user updated, got %d", res.Updated)
	}
	if len(res.Failed) != 1 || res.Failed[0].Reason != "user not found" {
		t.Errorf("expected a single user-not-found failure, got %v", res.Failed)
	}
}
