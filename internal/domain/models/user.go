// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents admins and learners.
//
// NOTE:
//   - A learner's entitlements are not embedded on User.
//     Use the program_assignments / course_assignments collections.
//   - UserTypeID is nullable and mutable; changing it is what triggers
//     inherited-assignment synchronization.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`
	Role       string             `bson:"role" json:"role"` // admin | learner
	Status     string             `bson:"status,omitempty" json:"status,omitempty"`

	// PasswordHash is set only for admins (bcrypt). Learners do not log in
	// to this service.
	PasswordHash string `bson:"password_hash,omitempty" json:"-"`

	Department  string `bson:"department,omitempty" json:"department,omitempty"`
	Designation string `bson:"designation,omitempty" json:"designation,omitempty"`

	UserTypeID *primitive.ObjectID `bson:"user_type_id,omitempty" json:"user_type_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
