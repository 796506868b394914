// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/mwhitaker/enrollhub/internal/app/store/audit"
	userstore "github.com/mwhitaker/enrollhub/internal/app/store/users"
	"github.com/mwhitaker/enrollhub/internal/app/system/normalize"
	"github.com/mwhitaker/enrollhub/internal/app/system/status"
	"github.com/mwhitaker/enrollhub/internal/app/system/workers"
	"github.com/mwhitaker/enrollhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// retentionWorker is started in Startup and stopped in Shutdown.
var retentionWorker *workers.AuditRetention

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if appCfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, deps, appCfg.AdminEmail, appCfg.AdminPassword, logger); err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	}
	if appCfg.AuditRetentionDays > 0 {
		retention := time.Duration(appCfg.AuditRetentionDays) * 24 * time.Hour
		retentionWorker = workers.NewAuditRetention(audit.New(deps.MongoDatabase), logger, time.Hour, retention)
		retentionWorker.Start()
	}
	return nil
}

// ensureAdmin guarantees an active admin account with the configured
// email exists. An existing account is left untouched (including its
// password), so rotating the configured password only affects fresh
// installs.
func ensureAdmin(ctx context.Context, deps DBDeps, email, password string, logger *zap.Logger) error {
	store := userstore.New(deps.MongoDatabase)
	normalized := normalize.Email(email)

	existing, err := store.GetByEmail(ctx, normalized)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	if err == nil {
		if existing.Role != "admin" {
			logger.Warn("bootstrap admin email belongs to a non-admin account; leaving it unchanged",
				zap.String("email", normalized),
				zap.String("role", existing.Role))
		}
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u, err := store.Create(ctx, models.User{
		FullName:     "Administrator",
		Email:        normalized,
		Role:         "admin",
		Status:       status.Active,
		PasswordHash: string(hash),
	})
	if err != nil {
		return err
	}
	logger.Info("created bootstrap admin account",
		zap.String("email", normalized),
		zap.String("user_id", u.ID.Hex()))
	return nil
}
