// internal/domain/models/usertypelink.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserTypeLink declares that members of a user type are entitled to a
// content item. It is the document shape of both the
// user_type_program_assignments and user_type_course_assignments
// collections.
//
// Exactly one document per (user_type_id, item_id); existence is the
// signal, there is no active flag. The link collection is the source of
// truth for inherited assignments.
type UserTypeLink struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserTypeID primitive.ObjectID `bson:"user_type_id" json:"user_type_id"`
	ItemID     primitive.ObjectID `bson:"item_id" json:"item_id"`

	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	CreatedByName string    `bson:"created_by_name,omitempty" json:"created_by_name,omitempty"`
}
