// internal/app/bulk/coordinator.go
//
// Package bulkops runs admin batch mutations over many (user, item)
// pairs. Batches are best-effort: one pair's failure is recorded and the
// rest of the batch proceeds. Every result carries an OperationID that
// also tags the audit trail, so the effects of one call can be
// correlated later.
package bulkops

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	assignmentstore "github.com/mwhitaker/enrollhub/internal/app/store/assignments"
	coursestore "github.com/mwhitaker/enrollhub/internal/app/store/courses"
	programstore "github.com/mwhitaker/enrollhub/internal/app/store/programs"
	userstore "github.com/mwhitaker/enrollhub/internal/app/store/users"
	usertypestore "github.com/mwhitaker/enrollhub/internal/app/store/usertypes"
	syncengine "github.com/mwhitaker/enrollhub/internal/app/sync"
	"github.com/mwhitaker/enrollhub/internal/app/system/status"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many users are processed at once.
const DefaultConcurrency = 8

// ErrUserTypeNotFound is returned when a bulk edit names a type that
// doesn't exist.
var ErrUserTypeNotFound = errors.New("user type not found")

// Failure records one pair (or one user) the batch could not process.
type Failure struct {
	UserID string `json:"user_id,omitempty"`
	ItemID string `json:"item_id,omitempty"`
	Reason string `json:"reason"`
}

// AssignResult reports a BulkAssign run.
type AssignResult struct {
	OperationID string    `json:"operation_id"`
	Count       int64     `json:"count"`
	Failed      []Failure `json:"failed,omitempty"`
}

// DeassignResult reports a BulkDeassign run. Pairs whose only active
// grant is inherited are skipped, not failed; Message explains why.
type DeassignResult struct {
	OperationID                string    `json:"operation_id"`
	Deactivated                int64     `json:"deactivated"`
	SkippedUserTypeAssignments int64     `json:"skipped_user_type_assignments"`
	Message                    string    `json:"message,omitempty"`
	Failed                     []Failure `json:"failed,omitempty"`
}

// SyncSummary counts the users whose inherited rows were recomputed
// during a bulk edit.
type SyncSummary struct {
	Synced int64 `json:"synced"`
}

// EditResult reports a BulkEditUsers run. ProgramSync is present only
// when at least one user moved to a different type.
type EditResult struct {
	OperationID string       `json:"operation_id"`
	Updated     int64        `json:"updated"`
	ProgramSync *SyncSummary `json:"program_sync,omitempty"`
	Message     string       `json:"message,omitempty"`
	Failed      []Failure    `json:"failed,omitempty"`
}

// UserUpdates carries the optional field changes of a bulk edit. Nil
// pointers leave the field alone. SetUserType distinguishes "leave the
// type alone" (false) from "set it to UserTypeID" (true; nil clears the
// type and retracts every inherited row).
type UserUpdates struct {
	Department  *string
	Designation *string
	Status      *string

	SetUserType bool
	UserTypeID  *primitive.ObjectID
}

func (u UserUpdates) fieldUpdate() userstore.FieldUpdate {
	return userstore.FieldUpdate{
		Department:  u.Department,
		Designation: u.Designation,
		Status:      u.Status,
	}
}

func (u UserUpdates) hasFieldChanges() bool {
	return u.Department != nil || u.Designation != nil || u.Status != nil
}

// Coordinator fans batch mutations out across users with bounded
// concurrency.
type Coordinator struct {
	users     *userstore.Store
	userTypes *usertypestore.Store
	programs  *programstore.Store
	courses   *coursestore.Store
	assigns   map[models.ItemKind]*assignmentstore.Store
	engine    *syncengine.Engine
	limit     int
	log       *zap.Logger
}

func New(db *mongo.Database, engine *syncengine.Engine, log *zap.Logger) *Coordinator {
	return &Coordinator{
		users:     userstore.New(db),
		userTypes: usertypestore.New(db),
		programs:  programstore.New(db),
		courses:   coursestore.New(db),
		assigns: map[models.ItemKind]*assignmentstore.Store{
			models.KindProgram: assignmentstore.NewPrograms(db),
			models.KindCourse:  assignmentstore.NewCourses(db),
		},
		engine: engine,
		limit:  DefaultConcurrency,
		log:    log,
	}
}

// SetConcurrency overrides the per-batch worker limit. Values below 1
// are ignored.
func (c *Coordinator) SetConcurrency(n int) {
	if n >= 1 {
		c.limit = n
	}
}

func (c *Coordinator) itemExists(ctx context.Context, kind models.ItemKind, id primitive.ObjectID) (bool, error) {
	if kind == models.KindProgram {
		return c.programs.Exists(ctx, id)
	}
	return c.courses.Exists(ctx, id)
}

// splitValid partitions the batch inputs into members that exist and
// per-ID failures for those that don't. Unknown items fail once each, not
// once per user.
func (c *Coordinator) splitValid(ctx context.Context, kind models.ItemKind, userIDs, itemIDs []primitive.ObjectID) (validUsers, validItems []primitive.ObjectID, failed []Failure, err error) {
	for _, id := range dedupe(userIDs) {
		if _, err := c.users.GetByID(ctx, id); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				failed = append(failed, Failure{UserID: id.Hex(), Reason: "user not found"})
				continue
			}
			return nil, nil, nil, err
		}
		validUsers = append(validUsers, id)
	}
	for _, id := range dedupe(itemIDs) {
		ok, err := c.itemExists(ctx, kind, id)
		if err != nil {
			return nil, nil, nil, err
		}
		if !ok {
			failed = append(failed, Failure{ItemID: id.Hex(), Reason: string(kind) + " not found"})
			continue
		}
		validItems = append(validItems, id)
	}
	return validUsers, validItems, failed, nil
}

// BulkAssign manually grants every (user, item) pair in the cross
// product. Pairs that already hold an active manual row are
// already-satisfied and skipped; soft-deleted rows are reactivated.
// Inherited rows are irrelevant here: a manual grant stacks on top.
func (c *Coordinator) BulkAssign(ctx context.Context, kind models.ItemKind, userIDs, itemIDs []primitive.ObjectID, actorName string) (AssignResult, error) {
	res := AssignResult{OperationID: uuid.NewString()}

	validUsers, validItems, failed, err := c.splitValid(ctx, kind, userIDs, itemIDs)
	if err != nil {
		return res, err
	}
	res.Failed = failed

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)

	for _, userID := range validUsers {
		userID := userID
		g.Go(func() error {
			for _, itemID := range validItems {
				outcome, err := c.assigns[kind].UpsertManual(gctx, userID, itemID, actorName)
				mu.Lock()
				if err != nil {
					res.Failed = append(res.Failed, Failure{
						UserID: userID.Hex(),
						ItemID: itemID.Hex(),
						Reason: err.Error(),
					})
				} else if outcome != assignmentstore.OutcomeAlreadyActive {
					res.Count++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	c.log.Info("bulk assign finished",
		zap.String("operation_id", res.OperationID),
		zap.String("kind", string(kind)),
		zap.Int("users", len(validUsers)),
		zap.Int("items", len(validItems)),
		zap.Int64("assigned", res.Count),
		zap.Int("failed", len(res.Failed)))
	return res, nil
}

// BulkDeassign withdraws manual grants for every (user, item) pair.
// Inherited rows are never touched: a pair whose only active grant came
// from a user type is counted as skipped and explained in Message, since
// the fix is to change the user's type or the type's links.
func (c *Coordinator) BulkDeassign(ctx context.Context, kind models.ItemKind, userIDs, itemIDs []primitive.ObjectID) (DeassignResult, error) {
	res := DeassignResult{OperationID: uuid.NewString()}

	validUsers, validItems, failed, err := c.splitValid(ctx, kind, userIDs, itemIDs)
	if err != nil {
		return res, err
	}
	res.Failed = failed

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)

	for _, userID := range validUsers {
		userID := userID
		g.Go(func() error {
			for _, itemID := range validItems {
				deactivated, err := c.assigns[kind].DeactivateManual(gctx, userID, itemID)
				if err != nil {
					mu.Lock()
					res.Failed = append(res.Failed, Failure{
						UserID: userID.Hex(),
						ItemID: itemID.Hex(),
						Reason: err.Error(),
					})
					mu.Unlock()
					continue
				}
				if deactivated {
					mu.Lock()
					res.Deactivated++
					mu.Unlock()
					continue
				}
				inherited, err := c.assigns[kind].HasActiveUserType(gctx, userID, itemID)
				if err != nil {
					mu.Lock()
					res.Failed = append(res.Failed, Failure{
						UserID: userID.Hex(),
						ItemID: itemID.Hex(),
						Reason: err.Error(),
					})
					mu.Unlock()
					continue
				}
				if inherited {
					mu.Lock()
					res.SkippedUserTypeAssignments++
					mu.Unlock()
				}
				// Neither manual nor inherited: nothing to withdraw.
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	if res.SkippedUserTypeAssignments > 0 {
		res.Message = fmt.Sprintf(
			"%d assignment(s) are inherited from a user type and were not removed; change the user's type or the type's links instead",
			res.SkippedUserTypeAssignments)
	}

	c.log.Info("bulk deassign finished",
		zap.String("operation_id", res.OperationID),
		zap.String("kind", string(kind)),
		zap.Int64("deactivated", res.Deactivated),
		zap.Int64("skipped_usertype", res.SkippedUserTypeAssignments),
		zap.Int("failed", len(res.Failed)))
	return res, nil
}

// BulkEditUsers applies the same field updates to each user
// independently. When the update moves a user to a different type, the
// new value is persisted first and the user's inherited rows are
// recomputed; a recompute failure is recorded for that user and the rest
// of the batch continues.
func (c *Coordinator) BulkEditUsers(ctx context.Context, userIDs []primitive.ObjectID, updates UserUpdates) (EditResult, error) {
	res := EditResult{OperationID: uuid.NewString()}

	if updates.Status != nil && !status.IsValid(*updates.Status) {
		return res, fmt.Errorf("invalid status %q", *updates.Status)
	}
	if updates.SetUserType && updates.UserTypeID != nil {
		if _, err := c.userTypes.GetByID(ctx, *updates.UserTypeID); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return res, ErrUserTypeNotFound
			}
			return res, err
		}
	}

	var mu sync.Mutex
	var synced int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)

	for _, userID := range dedupe(userIDs) {
		userID := userID
		g.Go(func() error {
			u, err := c.users.GetByID(gctx, userID)
			if err != nil {
				reason := err.Error()
				if errors.Is(err, mongo.ErrNoDocuments) {
					reason = "user not found"
				}
				mu.Lock()
				res.Failed = append(res.Failed, Failure{UserID: userID.Hex(), Reason: reason})
				mu.Unlock()
				return nil
			}

			changed := false
			if updates.hasFieldChanges() {
				ok, err := c.users.UpdateFields(gctx, userID, updates.fieldUpdate())
				if err != nil {
					mu.Lock()
					res.Failed = append(res.Failed, Failure{UserID: userID.Hex(), Reason: err.Error()})
					mu.Unlock()
					return nil
				}
				changed = changed || ok
			}

			if updates.SetUserType && !sameTypeID(u.UserTypeID, updates.UserTypeID) {
				oldType := u.UserTypeID
				if _, err := c.users.SetUserType(gctx, userID, updates.UserTypeID); err != nil {
					mu.Lock()
					res.Failed = append(res.Failed, Failure{UserID: userID.Hex(), Reason: err.Error()})
					mu.Unlock()
					return nil
				}
				changed = true
				if _, err := c.engine.OnUserTypeChanged(gctx, userID, oldType, updates.UserTypeID); err != nil {
					mu.Lock()
					res.Failed = append(res.Failed, Failure{
						UserID: userID.Hex(),
						Reason: "type updated but assignment sync failed: " + err.Error(),
					})
					mu.Unlock()
					return nil
				}
				mu.Lock()
				synced++
				mu.Unlock()
			}

			if changed {
				mu.Lock()
				res.Updated++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	if synced > 0 {
		res.ProgramSync = &SyncSummary{Synced: synced}
		res.Message = fmt.Sprintf("Synced programs and courses for %d user(s)", synced)
	}

	c.log.Info("bulk user edit finished",
		zap.String("operation_id", res.OperationID),
		zap.Int("users", len(userIDs)),
		zap.Int64("updated", res.Updated),
		zap.Int64("synced", synced),
		zap.Int("failed", len(res.Failed)))
	return res, nil
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sameTypeID(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
