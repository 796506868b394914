// internal/app/features/useradmin/handler.go
//
// Admin user management: account CRUD, single and bulk profile edits
// (including user-type moves, which recompute inherited assignments), and
// the per-user entitlement read endpoint.
package useradmin

import (
	bulkops "github.com/mwhitaker/enrollhub/internal/app/bulk"
	assignmentstore "github.com/mwhitaker/enrollhub/internal/app/store/assignments"
	userstore "github.com/mwhitaker/enrollhub/internal/app/store/users"
	usertypestore "github.com/mwhitaker/enrollhub/internal/app/store/usertypes"
	syncengine "github.com/mwhitaker/enrollhub/internal/app/sync"
	"github.com/mwhitaker/enrollhub/internal/app/system/auditlog"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users       *userstore.Store
	UserTypes   *usertypestore.Store
	Assigns     map[models.ItemKind]*assignmentstore.Store
	Engine      *syncengine.Engine
	Coordinator *bulkops.Coordinator
	AuditLog    *auditlog.Logger
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, engine *syncengine.Engine, coordinator *bulkops.Coordinator, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:     userstore.New(db),
		UserTypes: usertypestore.New(db),
		Assigns: map[models.ItemKind]*assignmentstore.Store{
			models.KindProgram: assignmentstore.NewPrograms(db),
			models.KindCourse:  assignmentstore.NewCourses(db),
		},
		Engine:      engine,
		Coordinator: coordinator,
		AuditLog:    auditLog,
		Log:         logger,
	}
}
