// internal/app/policy/provenance/provenance.go
//
// Package provenance classifies how a user came to hold an item: granted
// by hand, inherited from their user type, or both at once. Pure
// functions over assignment rows; no I/O.
package provenance

import (
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Classification is the derived provenance of one (user, item) pair.
// Dual is never stored; it exists only in this view.
type Classification string

const (
	None     Classification = "none"
	Manual   Classification = "manual"
	UserType Classification = "usertype"
	Dual     Classification = "dual"
)

// Classify reduces the assignment rows of a single (user, item) pair to
// their provenance. Inactive rows do not count; unknown sources are
// ignored rather than rejected, so the function is total.
func Classify(rows []models.Assignment) Classification {
	var manual, userType bool
	for _, row := range rows {
		if !row.IsActive {
			continue
		}
		switch row.Source {
		case models.SourceManual:
			manual = true
		case models.SourceUserType:
			userType = true
		}
	}

	switch {
	case manual && userType:
		return Dual
	case manual:
		return Manual
	case userType:
		return UserType
	default:
		return None
	}
}

// ByItem groups one user's rows by item and classifies each group. Items
// whose rows are all inactive classify as None and are dropped from the
// result.
func ByItem(rows []models.Assignment) map[primitive.ObjectID]Classification {
	grouped := make(map[primitive.ObjectID][]models.Assignment)
	for _, row := range rows {
		grouped[row.ItemID] = append(grouped[row.ItemID], row)
	}

	out := make(map[primitive.ObjectID]Classification, len(grouped))
	for itemID, itemRows := range grouped {
		if c := Classify(itemRows); c != None {
			out[itemID] = c
		}
	}
	return out
}
