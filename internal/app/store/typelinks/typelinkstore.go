// internal/app/store/typelinks/typelinkstore.go
package typelinkstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrDuplicateLink is returned when a (user type, item) link already exists.
var ErrDuplicateLink = errors.New("user type is already linked to this item")

// Store is the per-user-type content link table for one item kind. A link's
// existence is the source of truth for inherited assignments; there is no
// active flag. Leaf storage, no business rules.
type Store struct {
	c    *mongo.Collection
	kind models.ItemKind
}

// NewPrograms returns the store backed by user_type_program_assignments.
func NewPrograms(db *mongo.Database) *Store {
	return &Store{c: db.Collection("user_type_program_assignments"), kind: models.KindProgram}
}

// NewCourses returns the store backed by user_type_course_assignments.
func NewCourses(db *mongo.Database) *Store {
	return &Store{c: db.Collection("user_type_course_assignments"), kind: models.KindCourse}
}

// ForKind returns the store for the given item kind, or nil for an unknown kind.
func ForKind(db *mongo.Database, kind models.ItemKind) *Store {
	switch kind {
	case models.KindProgram:
		return NewPrograms(db)
	case models.KindCourse:
		return NewCourses(db)
	}
	return nil
}

// Kind returns the item kind this store serves.
func (s *Store) Kind() models.ItemKind {
	return s.kind
}

// Add inserts a new link. Returns ErrDuplicateLink if the pair already exists.
func (s *Store) Add(ctx context.Context, userTypeID, itemID primitive.ObjectID, byName string) (models.UserTypeLink, error) {
	link := models.UserTypeLink{
		ID:            primitive.NewObjectID(),
		UserTypeID:    userTypeID,
		ItemID:        itemID,
		CreatedAt:     time.Now().UTC(),
		CreatedByName: byName,
	}
	if _, err := s.c.InsertOne(ctx, link); err != nil {
		if wafflemongo.IsDup(err) {
			return models.UserTypeLink{}, ErrDuplicateLink
		}
		return models.UserTypeLink{}, err
	}
	return link, nil
}

// Remove deletes the link for (userTypeID, itemID). Returns true if a link
// was deleted, false if none existed.
func (s *Store) Remove(ctx context.Context, userTypeID, itemID primitive.ObjectID) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"user_type_id": userTypeID, "item_id": itemID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// Exists reports whether the link for (userTypeID, itemID) exists.
func (s *Store) Exists(ctx context.Context, userTypeID, itemID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"user_type_id": userTypeID, "item_id": itemID}).Err()
	if err == nil {
		return true, nil
	}
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return false, err
}

// ItemIDs returns the item IDs linked to a user type.
func (s *Store) ItemIDs(ctx context.Context, userTypeID primitive.ObjectID) ([]primitive.ObjectID, error) {
	links, err := s.ListByType(ctx, userTypeID)
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(links))
	for _, l := range links {
		out = append(out, l.ItemID)
	}
	return out, nil
}

// ListByType returns all links for a user type.
func (s *Store) ListByType(ctx context.Context, userTypeID primitive.ObjectID) ([]models.UserTypeLink, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_type_id": userTypeID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.UserTypeLink
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByType removes every link for a user type. Returns the number of
// links deleted. Used by user-type deletion after the per-link fan-out has
// retracted inherited rows.
func (s *Store) DeleteByType(ctx context.Context, userTypeID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"user_type_id": userTypeID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
