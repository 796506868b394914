// internal/app/sync/engine.go
//
// Package syncengine keeps inherited (usertype-sourced) assignment rows in
// both item collections consistent with the current user-type links and
// type memberships. It is the only writer of usertype rows; manual rows
// are never read or written here.
//
// All of its operations are idempotent set-to-target mutations, so a
// half-applied run (crash, timeout) is repaired by running the same
// operation again.
package syncengine

import (
	"context"
	"errors"

	assignmentstore "github.com/mwhitaker/enrollhub/internal/app/store/assignments"
	typelinkstore "github.com/mwhitaker/enrollhub/internal/app/store/typelinks"
	userstore "github.com/mwhitaker/enrollhub/internal/app/store/users"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrLinkNotFound is returned by OnLinkRemoved when no link exists for the
// (type, item) pair.
var ErrLinkNotFound = errors.New("user type link not found")

// kinds fixes the iteration order so the delete phase and create phase
// each walk the collections deterministically.
var kinds = []models.ItemKind{models.KindProgram, models.KindCourse}

// ChangeResult reports how many usertype rows a recompute touched.
type ChangeResult struct {
	Removed int64 `json:"removed"`
	Added   int64 `json:"added"`
}

// Engine recomputes inherited assignments in response to membership and
// link changes.
type Engine struct {
	users   *userstore.Store
	assigns map[models.ItemKind]*assignmentstore.Store
	links   map[models.ItemKind]*typelinkstore.Store
	log     *zap.Logger
}

func New(db *mongo.Database, log *zap.Logger) *Engine {
	return &Engine{
		users: userstore.New(db),
		assigns: map[models.ItemKind]*assignmentstore.Store{
			models.KindProgram: assignmentstore.NewPrograms(db),
			models.KindCourse:  assignmentstore.NewCourses(db),
		},
		links: map[models.ItemKind]*typelinkstore.Store{
			models.KindProgram: typelinkstore.NewPrograms(db),
			models.KindCourse:  typelinkstore.NewCourses(db),
		},
		log: log,
	}
}

// OnUserTypeChanged recomputes a single user's inherited rows after their
// type moved from oldTypeID to newTypeID (either may be nil for "no
// type"). The delete phase for both item kinds completes before the
// create phase begins, so an interrupted run can only leave the user with
// fewer inherited rows than they are entitled to, never stale extras.
func (e *Engine) OnUserTypeChanged(ctx context.Context, userID primitive.ObjectID, oldTypeID, newTypeID *primitive.ObjectID) (ChangeResult, error) {
	var res ChangeResult
	if sameTypeID(oldTypeID, newTypeID) {
		return res, nil
	}

	// Delete phase: hard-delete every usertype row granted by the old type.
	if oldTypeID != nil {
		for _, kind := range kinds {
			itemIDs, err := e.links[kind].ItemIDs(ctx, *oldTypeID)
			if err != nil {
				return res, err
			}
			if len(itemIDs) == 0 {
				continue
			}
			n, err := e.assigns[kind].DeleteUserTypeForUserItems(ctx, userID, itemIDs)
			if err != nil {
				return res, err
			}
			res.Removed += n
		}
	}

	// Create phase: upsert a usertype row for every item the new type links.
	if newTypeID != nil {
		for _, kind := range kinds {
			itemIDs, err := e.links[kind].ItemIDs(ctx, *newTypeID)
			if err != nil {
				return res, err
			}
			if len(itemIDs) == 0 {
				continue
			}
			n, err := e.assigns[kind].EnsureUserTypeItems(ctx, userID, itemIDs)
			if err != nil {
				return res, err
			}
			res.Added += n
		}
	}

	e.log.Info("recomputed inherited assignments for user",
		zap.String("user_id", userID.Hex()),
		zap.String("old_type", hexOrNone(oldTypeID)),
		zap.String("new_type", hexOrNone(newTypeID)),
		zap.Int64("removed", res.Removed),
		zap.Int64("added", res.Added))
	return res, nil
}

// OnLinkAdded fans a newly created link out to every current member of
// the type. The link itself is created by the caller beforehand; members
// who already hold the row (a previous partial run) are left as is.
func (e *Engine) OnLinkAdded(ctx context.Context, kind models.ItemKind, typeID, itemID primitive.ObjectID) (int64, error) {
	memberIDs, err := e.users.IDsByUserType(ctx, typeID)
	if err != nil {
		return 0, err
	}
	if len(memberIDs) == 0 {
		return 0, nil
	}

	n, err := e.assigns[kind].EnsureUserTypeMany(ctx, memberIDs, itemID)
	if err != nil {
		return 0, err
	}
	e.log.Info("fanned out new type link",
		zap.String("kind", string(kind)),
		zap.String("user_type_id", typeID.Hex()),
		zap.String("item_id", itemID.Hex()),
		zap.Int("members", len(memberIDs)),
		zap.Int64("rows_added", n))
	return n, nil
}

// OnLinkRemoved retracts a link: the link document is removed first, then
// every member's usertype row for the item is hard-deleted. Returns
// ErrLinkNotFound when no such link exists. Should the fan-out fail after
// the link was removed, re-running is safe: the retry reports
// ErrLinkNotFound but the caller can still invoke OnUserTypeChanged per
// member, or the rows are cleaned up by the next membership change.
func (e *Engine) OnLinkRemoved(ctx context.Context, kind models.ItemKind, typeID, itemID primitive.ObjectID) (int64, error) {
	deleted, err := e.links[kind].Remove(ctx, typeID, itemID)
	if err != nil {
		return 0, err
	}
	if !deleted {
		return 0, ErrLinkNotFound
	}
	return e.retractLink(ctx, kind, typeID, itemID)
}

func (e *Engine) retractLink(ctx context.Context, kind models.ItemKind, typeID, itemID primitive.ObjectID) (int64, error) {
	memberIDs, err := e.users.IDsByUserType(ctx, typeID)
	if err != nil {
		return 0, err
	}
	if len(memberIDs) == 0 {
		return 0, nil
	}

	n, err := e.assigns[kind].DeleteUserTypeForUsersItem(ctx, memberIDs, itemID)
	if err != nil {
		return 0, err
	}
	e.log.Info("retracted type link",
		zap.String("kind", string(kind)),
		zap.String("user_type_id", typeID.Hex()),
		zap.String("item_id", itemID.Hex()),
		zap.Int("members", len(memberIDs)),
		zap.Int64("rows_removed", n))
	return n, nil
}

// OnTypeDeleted retracts every link of a type ahead of the type's
// deletion: member usertype rows go first (fan-out per link), then the
// link documents themselves. The caller is responsible for clearing the
// type from its members and deleting the type document afterward.
func (e *Engine) OnTypeDeleted(ctx context.Context, typeID primitive.ObjectID) (ChangeResult, error) {
	var res ChangeResult

	for _, kind := range kinds {
		itemIDs, err := e.links[kind].ItemIDs(ctx, typeID)
		if err != nil {
			return res, err
		}
		for _, itemID := range itemIDs {
			n, err := e.retractLink(ctx, kind, typeID, itemID)
			if err != nil {
				return res, err
			}
			res.Removed += n
		}
		if _, err := e.links[kind].DeleteByType(ctx, typeID); err != nil {
			return res, err
		}
	}

	e.log.Info("retracted all links for deleted type",
		zap.String("user_type_id", typeID.Hex()),
		zap.Int64("rows_removed", res.Removed))
	return res, nil
}

func sameTypeID(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func hexOrNone(id *primitive.ObjectID) string {
	if id == nil {
		return "none"
	}
	return id.Hex()
}
