// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data. Documents are
// inserted directly so store code under test never shares a write path
// with its own fixtures.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateAdmin creates an active admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, email string) models.User {
	return f.createUser(ctx, "Test Admin", email, "admin", nil)
}

// CreateLearner creates an active learner, optionally attached to a type.
func (f *Fixtures) CreateLearner(ctx context.Context, email string, typeID *primitive.ObjectID) models.User {
	return f.createUser(ctx, "Test Learner", email, "learner", typeID)
}

func (f *Fixtures) createUser(ctx context.Context, name, email, role string, typeID *primitive.ObjectID) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   name,
		FullNameCI: text.Fold(name),
		Email:      email,
		Role:       role,
		Status:     "active",
		UserTypeID: typeID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateUserType creates a user type with the given name.
func (f *Fixtures) CreateUserType(ctx context.Context, name string) models.UserType {
	f.t.Helper()

	now := time.Now().UTC()
	ut := models.UserType{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("user_types").InsertOne(ctx, ut); err != nil {
		f.t.Fatalf("failed to create test user type: %v", err)
	}
	return ut
}

// CreateProgram creates a program with the given title.
func (f *Fixtures) CreateProgram(ctx context.Context, title string) models.Program {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Program{
		ID:        primitive.NewObjectID(),
		Title:     title,
		TitleCI:   text.Fold(title),
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("programs").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test program: %v", err)
	}
	return p
}

// CreateCourse creates a course with the given title.
func (f *Fixtures) CreateCourse(ctx context.Context, title string) models.Course {
	f.t.Helper()

	now := time.Now().UTC()
	c := models.Course{
		ID:        primitive.NewObjectID(),
		Title:     title,
		TitleCI:   text.Fold(title),
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("courses").InsertOne(ctx, c); err != nil {
		f.t.Fatalf("failed to create test course: %v", err)
	}
	return c
}

// CreateTypeLink links a user type to an item in the collection for kind.
func (f *Fixtures) CreateTypeLink(ctx context.Context, kind models.ItemKind, typeID, itemID primitive.ObjectID) models.UserTypeLink {
	f.t.Helper()

	link := models.UserTypeLink{
		ID:         primitive.NewObjectID(),
		UserTypeID: typeID,
		ItemID:     itemID,
		CreatedAt:  time.Now().UTC(),
	}
	coll := "user_type_program_assignments"
	if kind == models.KindCourse {
		coll = "user_type_course_assignments"
	}
	if _, err := f.db.Collection(coll).InsertOne(ctx, link); err != nil {
		f.t.Fatalf("failed to create test type link: %v", err)
	}
	return link
}

// CreateAssignment inserts an assignment row with the given source and
// active flag into the collection for kind.
func (f *Fixtures) CreateAssignment(ctx context.Context, kind models.ItemKind, userID, itemID primitive.ObjectID, source string, active bool) models.Assignment {
	f.t.Helper()

	a := models.Assignment{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		ItemID:     itemID,
		Source:     source,
		IsActive:   active,
		AssignedAt: time.Now().UTC(),
	}
	if !active {
		deactivated := time.Now().UTC()
		a.DeactivatedAt = &deactivated
	}
	coll := "program_assignments"
	if kind == models.KindCourse {
		coll = "course_assignments"
	}
	if _, err := f.db.Collection(coll).InsertOne(ctx, a); err != nil {
		f.t.Fatalf("failed to create test assignment: %v", err)
	}
	return a
}
