// internal/app/store/assignments/assignmentstore.go
package assignmentstore

import (
	"context"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UpsertOutcome classifies what a manual upsert actually did, so bulk
// callers can count real work and silently skip already-satisfied pairs.
type UpsertOutcome int

const (
	OutcomeCreated UpsertOutcome = iota
	OutcomeReactivated
	OutcomeAlreadyActive
)

// Store is the per-user grant table for one item kind. Both sources
// (manual and usertype) live in the same collection, distinguished by the
// source field; the unique (user_id, item_id, source) index guarantees at
// most one row per source for a pair.
//
// Pure storage: no business rules. Every mutation is expressed as
// set-to-target (upsert / delete-if-match) so retries and concurrent
// triggers converge.
type Store struct {
	c    *mongo.Collection
	kind models.ItemKind
}

// NewPrograms returns the store backed by the program_assignments collection.
func NewPrograms(db *mongo.Database) *Store {
	return &Store{c: db.Collection("program_assignments"), kind: models.KindProgram}
}

// NewCourses returns the store backed by the course_assignments collection.
func NewCourses(db *mongo.Database) *Store {
	return &Store{c: db.Collection("course_assignments"), kind: models.KindCourse}
}

// ForKind returns the store for the given item kind, or nil for an unknown
// kind. Callers validate kinds at the HTTP boundary.
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

// UpsertManual brings the manual row for (userID, itemID) to the active
// state, creating it if absent and reactivating it if soft-deleted. The
// returned outcome tells the caller whether anything changed.
func (s *Store) UpsertManual(ctx context.Context, userID, itemID primitive.ObjectID, byName string) (UpsertOutcome, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID, "item_id": itemID, "source": models.SourceManual},
		bson.M{
			"$set": bson.M{"is_active": true},
			"$setOnInsert": bson.M{
				"assigned_at":      now,
				"assigned_by_name": byName,
			},
			"$unset": bson.M{"deactivated_at": ""},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if wafflemongo.IsDup(err) {
			// Lost an upsert race against an identical request; the row is
			// already in the target state.
			return OutcomeAlreadyActive, nil
		}
		return OutcomeAlreadyActive, err
	}
	switch {
	case res.UpsertedCount > 0:
		return OutcomeCreated, nil
	case res.ModifiedCount > 0:
		return OutcomeReactivated, nil
	default:
		return OutcomeAlreadyActive, nil
	}
}

// DeactivateManual soft-deletes the active manual row for (userID, itemID).
// Returns true if a row was deactivated, false if no active manual row
// existed. Never touches usertype rows.
func (s *Store) DeactivateManual(ctx context.Context, userID, itemID primitive.ObjectID) (bool, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID, "item_id": itemID, "source": models.SourceManual, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "deactivated_at": now}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// EnsureUserType brings the usertype row for (userID, itemID) to the active
// state. Returns true when a row was created or reactivated, false when it
// was already present and active.
func (s *Store) EnsureUserType(ctx context.Context, userID, itemID primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID, "item_id": itemID, "source": models.SourceUserType},
		ensureUserTypeUpdate(),
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return false, nil
		}
		return false, err
	}
	return res.UpsertedCount > 0 || res.ModifiedCount > 0, nil
}

// EnsureUserTypeMany brings the usertype rows for every (userID, itemID)
// pair to the active state in one bulk write. Returns the number of rows
// created or reactivated; already-satisfied pairs cost nothing.
func (s *Store) EnsureUserTypeMany(ctx context.Context, userIDs []primitive.ObjectID, itemID primitive.ObjectID) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	ops := make([]mongo.WriteModel, 0, len(userIDs))
	for _, uid := range userIDs {
		ops = append(ops, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"user_id": uid, "item_id": itemID, "source": models.SourceUserType}).
			SetUpdate(ensureUserTypeUpdate()).
			SetUpsert(true))
	}
	res, err := s.c.BulkWrite(ctx, ops, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, err
	}
	return res.UpsertedCount + res.ModifiedCount, nil
}

// EnsureUserTypeItems is the per-user counterpart of EnsureUserTypeMany,
// used when one user gains a whole type's worth of items.
func (s *Store) EnsureUserTypeItems(ctx context.Context, userID primitive.ObjectID, itemIDs []primitive.ObjectID) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	ops := make([]mongo.WriteModel, 0, len(itemIDs))
	for _, iid := range itemIDs {
		ops = append(ops, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"user_id": userID, "item_id": iid, "source": models.SourceUserType}).
			SetUpdate(ensureUserTypeUpdate()).
			SetUpsert(true))
	}
	res, err := s.c.BulkWrite(ctx, ops, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, err
	}
	return res.UpsertedCount + res.ModifiedCount, nil
}

// DeleteUserTypeForUserItems hard-deletes the usertype rows a user holds
// for any of the given items. Manual rows are never matched.
func (s *Store) DeleteUserTypeForUserItems(ctx context.Context, userID primitive.ObjectID, itemIDs []primitive.ObjectID) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{
		"user_id": userID,
		"item_id": bson.M{"$in": itemIDs},
		"source":  models.SourceUserType,
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteUserTypeForUsersItem hard-deletes the usertype rows the given users
// hold for one item. This is the fan-out path for link removal.
func (s *Store) DeleteUserTypeForUsersItem(ctx context.Context, userIDs []primitive.ObjectID, itemID primitive.ObjectID) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	res, err := s.c.DeleteMany(ctx, bson.M{
		"user_id": bson.M{"$in": userIDs},
		"item_id": itemID,
		"source":  models.SourceUserType,
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteAllForUser removes every row of both sources for a user. Only used
// by user deletion, where the audit trail goes with the user.
func (s *Store) DeleteAllForUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// HasActiveUserType reports whether an active usertype row exists for the pair.
func (s *Store) HasActiveUserType(ctx context.Context, userID, itemID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"user_id":   userID,
		"item_id":   itemID,
		"source":    models.SourceUserType,
		"is_active": true,
	}).Err()
	if err == nil {
		return true, nil
	}
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return false, err
}

// ActiveForPair returns the active rows for a (user, item) pair: zero,
// one, or two, at most one per source.
func (s *Store) ActiveForPair(ctx context.Context, userID, itemID primitive.ObjectID) ([]models.Assignment, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID, "item_id": itemID, "is_active": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Assignment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveByUser returns all active rows for a user.
func (s *Store) ActiveByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Assignment, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID, "is_active": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Assignment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns every row for a user, including soft-deleted manual
// rows, for the admin assignment view.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Assignment, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Assignment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByItem returns the number of rows (any source, any state) for an item.
func (s *Store) CountByItem(ctx context.Context, itemID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"item_id": itemID})
}

// CountActiveByItem returns the number of active rows for an item,
// counting both manual and inherited grants.
func (s *Store) CountActiveByItem(ctx context.Context, itemID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"item_id": itemID, "is_active": true})
}

func ensureUserTypeUpdate() bson.M {
	return bson.M{
		"$set":         bson.M{"is_active": true},
		"$setOnInsert": bson.M{"assigned_at": time.Now().UTC()},
	}
}
