// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureUserTypes(ctx, db); err != nil {
		problems = append(problems, "user_types: "+err.Error())
	}
	if err := ensurePrograms(ctx, db); err != nil {
		problems = append(problems, "programs: "+err.Error())
	}
	if err := ensureCourses(ctx, db); err != nil {
		problems = append(problems, "courses: "+err.Error())
	}
	if err := ensureAssignments(ctx, db, "program_assignments"); err != nil {
		problems = append(problems, "program_assignments: "+err.Error())
	}
	if err := ensureAssignments(ctx, db, "course_assignments"); err != nil {
		problems = append(problems, "course_assignments: "+err.Error())
	}
	if err := ensureTypeLinks(ctx, db, "user_type_program_assignments"); err != nil {
		problems = append(problems, "user_type_program_assignments: "+err.Error())
	}
	if err := ensureTypeLinks(ctx, db, "user_type_course_assignments"); err != nil {
		problems = append(problems, "user_type_course_assignments: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))

		start := time.Now()
		existing := listExisting(ctx, coll)

		if ex, ok := existing[desiredSig]; ok {
			// Same key pattern exists with matching options: reuse, realigning
			// the name if needed.
			if sameBoolPtr(desiredUnique, ex.Unique) {
				if desiredName == "" || ex.Name == desiredName {
					zap.L().Info("reusing existing index",
						zap.String("collection", coll.Name()),
						zap.String("name", ex.Name),
						zap.String("keys", desiredSig))
					continue
				}
				zap.L().Info("renaming index to align with desired name",
					zap.String("collection", coll.Name()),
					zap.String("from", ex.Name),
					zap.String("to", desiredName))
			}

			// Options or name mismatch (e.g., upgrading to unique). Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				zap.L().Warn("drop existing index failed",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && desiredUnique != nil && *desiredUnique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), desiredName))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			}
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Error(err))
			continue
		}

		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                             */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Email must be unique across all users.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},

		// Type membership fan-out: finding every member of a type is the
		// first step of every inherited-assignment recompute.
		{
			Keys:    bson.D{{Key: "user_type_id", Value: 1}},
			Options: options.Index().SetName("idx_users_usertype"),
		},

		// Admin lists: filter by role and status, name sort, stable paging.
		{
			Keys: bson.D{
				{Key: "role", Value: 1},
				{Key: "status", Value: 1},
				{Key: "full_name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_users_role_status_fullnameci_id"),
		},
	})
}

func ensureUserTypes(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("user_types")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Type names are unique (case/diacritics folded).
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_usertypes_nameci"),
		},
	})
}

func ensurePrograms(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("programs")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Title prefix search + stable sort for admin listings.
		{
			Keys:    bson.D{{Key: "title_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_programs_titleci_id"),
		},
	})
}

func ensureCourses(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("courses")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "title_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_courses_titleci_id"),
		},
	})
}

// ensureAssignments covers both program_assignments and course_assignments;
// the two collections share one document shape and one index set.
func ensureAssignments(ctx context.Context, db *mongo.Database, name string) error {
	c := db.Collection(name)
	short := strings.TrimSuffix(name, "_assignments")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// At most one row per (user, item, source). Upserts rely on this to
		// stay race-safe: concurrent writers collapse onto one document.
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "item_id", Value: 1},
				{Key: "source", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_" + short + "_user_item_source"),
		},

		// Per-user entitlement reads (access checks, provenance views).
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "is_active", Value: 1},
			},
			Options: options.Index().SetName("idx_" + short + "_user_active"),
		},

		// Per-item rosters and counts.
		{
			Keys: bson.D{
				{Key: "item_id", Value: 1},
				{Key: "source", Value: 1},
				{Key: "is_active", Value: 1},
			},
			Options: options.Index().SetName("idx_" + short + "_item_source_active"),
		},
	})
}

// ensureTypeLinks covers both user_type_program_assignments and
// user_type_course_assignments.
func ensureTypeLinks(ctx context.Context, db *mongo.Database, name string) error {
	c := db.Collection(name)
	short := strings.TrimSuffix(strings.TrimPrefix(name, "user_type_"), "_assignments")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One link per (type, item); existence is the signal.
		{
			Keys: bson.D{
				{Key: "user_type_id", Value: 1},
				{Key: "item_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_typelinks_" + short + "_type_item"),
		},

		// Reverse lookup: which types grant this item.
		{
			Keys:    bson.D{{Key: "item_id", Value: 1}},
			Options: options.Index().SetName("idx_typelinks_" + short + "_item"),
		},
	})
}
