// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	bulkops "github.com/mwhitaker/enrollhub/internal/app/bulk"
	assignmentsfeature "github.com/mwhitaker/enrollhub/internal/app/features/assignments"
	auditlogfeature "github.com/mwhitaker/enrollhub/internal/app/features/auditlog"
	catalogfeature "github.com/mwhitaker/enrollhub/internal/app/features/catalog"
	healthfeature "github.com/mwhitaker/enrollhub/internal/app/features/health"
	loginfeature "github.com/mwhitaker/enrollhub/internal/app/features/login"
	useradminfeature "github.com/mwhitaker/enrollhub/internal/app/features/useradmin"
	usertypesfeature "github.com/mwhitaker/enrollhub/internal/app/features/usertypes"
	auditstore "github.com/mwhitaker/enrollhub/internal/app/store/audit"
	syncengine "github.com/mwhitaker/enrollhub/internal/app/sync"
	"github.com/mwhitaker/enrollhub/internal/app/system/auditlog"
	"github.com/mwhitaker/enrollhub/internal/app/system/auth"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE
// app. WAFFLE calls this after configuration, DB connections, schema
// setup, and Startup have completed.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	if err := auth.InitSessionStore(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger); err != nil {
		logger.Error("session store init failed", zap.Error(err))
		return nil, err
	}

	db := deps.MongoDatabase

	auditLogger := auditlog.New(auditstore.New(db), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})
	engine := syncengine.New(db, logger)
	coordinator := bulkops.New(db, engine, logger)
	coordinator.SetConcurrency(appCfg.BulkConcurrency)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(auth.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	r.Mount("/health", healthfeature.Routes(healthfeature.NewHandler(deps.MongoClient, logger)))

	// Authentication
	r.Mount("/", loginfeature.Routes(loginfeature.NewHandler(db, auditLogger, logger)))

	// User management, including bulk edits and the entitlement view
	userHandler := useradminfeature.NewHandler(db, engine, coordinator, auditLogger, logger)
	r.Mount("/users", useradminfeature.Routes(userHandler))

	// User types and their content links
	typesHandler := usertypesfeature.NewHandler(db, engine, auditLogger, logger)
	r.Mount("/user-types", usertypesfeature.Routes(typesHandler))

	// Bulk assignment operations
	assignHandler := assignmentsfeature.NewHandler(coordinator, auditLogger, logger)
	r.Mount("/assignments", assignmentsfeature.Routes(assignHandler))

	// Catalog registration (programs and courses live at the root)
	r.Mount("/catalog", catalogfeature.Routes(catalogfeature.NewHandler(db, logger)))

	// Audit trail queries
	r.Mount("/audit", auditlogfeature.Routes(auditlogfeature.NewHandler(db, logger)))

	return r, nil
}
