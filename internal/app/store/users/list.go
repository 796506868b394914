// internal/app/store/users/list.go
package userstore

import (
	"context"
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/mwhitaker/enrollhub/internal/app/system/paging"
	"github.com/mwhitaker/enrollhub/internal/app/system/search"
	"github.com/mwhitaker/enrollhub/internal/app/system/status"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ListOptions filters and pages the user list. Search matches prefixes
// of the folded full name or the email. Before/After are opaque keyset
// cursors from a previous page.
type ListOptions struct {
	Search     string
	Status     string
	Role       string
	UserTypeID *primitive.ObjectID
	Before     string
	After      string
}

// Page is one page of the user list.
type Page struct {
	Users      []models.User
	Total      int64
	HasPrev    bool
	HasNext    bool
	PrevCursor string
	NextCursor string
}

// List returns users matching opts, sorted by folded name (or by email
// when the query pivots to the email index) with keyset pagination.
func (s *Store) List(ctx context.Context, opts ListOptions) (Page, error) {
	base := bson.M{}
	if st := strings.ToLower(strings.TrimSpace(opts.Status)); status.IsValid(st) {
		base["status"] = st
	}
	if role := strings.ToLower(strings.TrimSpace(opts.Role)); role == "admin" || role == "learner" {
		base["role"] = role
	}
	if opts.UserTypeID != nil {
		base["user_type_id"] = *opts.UserTypeID
	}

	q := strings.TrimSpace(opts.Search)
	emailPivot := search.EmailPivotOK(q, opts.Status)
	if q != "" {
		qFold := text.Fold(q)
		qEmail := strings.ToLower(q)
		if emailPivot {
			base["email"] = bson.M{"$gte": qEmail, "$lt": qEmail + "￿"}
		} else {
			base["$or"] = []bson.M{
				{"full_name_ci": bson.M{"$gte": qFold, "$lt": qFold + "￿"}},
				{"email": bson.M{"$gte": qEmail, "$lt": qEmail + "￿"}},
			}
		}
	}

	total, err := s.c.CountDocuments(ctx, base)
	if err != nil {
		return Page{}, err
	}

	sortField := "full_name_ci"
	if emailPivot {
		sortField = "email"
	}

	cfg := paging.ConfigureKeyset(opts.Before, opts.After)
	filter := bson.M{}
	for k, v := range base {
		filter[k] = v
	}
	if win := cfg.KeysetWindow(sortField); win != nil {
		if orAny, ok := filter["$or"]; ok {
			// The keyset window is itself an $or; AND it with the search clause.
			filter["$and"] = []bson.M{{"$or": orAny}, win}
			delete(filter, "$or")
		} else {
			for k, v := range win {
				filter[k] = v
			}
		}
	}

	find := options.Find()
	cfg.ApplyToFind(find, sortField)

	cur, err := s.c.Find(ctx, filter, find)
	if err != nil {
		return Page{}, err
	}
	defer cur.Close(ctx)

	var rows []models.User
	if err := cur.All(ctx, &rows); err != nil {
		return Page{}, err
	}

	res := paging.TrimPage(&rows, opts.Before, opts.After)
	if cfg.Direction == paging.Backward {
		paging.Reverse(rows)
	}

	keyFn := func(u models.User) string { return u.FullNameCI }
	if emailPivot {
		keyFn = func(u models.User) string { return u.Email }
	}
	prev, next := paging.BuildCursors(rows, keyFn, func(u models.User) primitive.ObjectID { return u.ID })

	return Page{
		Users:      rows,
		Total:      total,
		HasPrev:    res.HasPrev,
		HasNext:    res.HasNext,
		PrevCursor: prev,
		NextCursor: next,
	}, nil
}
