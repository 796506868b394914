// internal/domain/models/assignment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Assignment sources. For a given (user, item) pair at most one row per
// source exists; a manual row and a usertype row may coexist, which admin
// views report as "dual" access.
const (
	SourceManual   = "manual"
	SourceUserType = "usertype"
)

// ItemKind selects which collection pair an operation works against.
type ItemKind string

const (
	KindProgram ItemKind = "program"
	KindCourse  ItemKind = "course"
)

// Valid reports whether k is a known item kind.
func (k ItemKind) Valid() bool {
	return k == KindProgram || k == KindCourse
}

// Assignment is one access grant for one user and one content item. It is
// the document shape of both the program_assignments and course_assignments
// collections.
//
// Lifecycle differs by source:
//   - manual rows are soft-deleted (IsActive=false) so the grant history
//     survives for auditing
//   - usertype rows are hard-deleted when the governing user-type link no
//     longer applies; they carry no independent administrative intent
type Assignment struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`
	ItemID primitive.ObjectID `bson:"item_id" json:"item_id"`

	Source   string `bson:"source" json:"source"` // "manual" | "usertype"
	IsActive bool   `bson:"is_active" json:"is_active"`

	AssignedAt     time.Time  `bson:"assigned_at" json:"assigned_at"`
	AssignedByName string     `bson:"assigned_by_name,omitempty" json:"assigned_by_name,omitempty"`
	DeactivatedAt  *time.Time `bson:"deactivated_at,omitempty" json:"deactivated_at,omitempty"`
}

// IsManual reports whether the row was granted directly by an administrator.
func (a *Assignment) IsManual() bool {
	return a.Source == SourceManual
}

// IsInherited reports whether the row was derived from a user-type link.
func (a *Assignment) IsInherited() bool {
	return a.Source == SourceUserType
}
