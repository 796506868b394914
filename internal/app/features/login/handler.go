// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"

	"github.com/mwhitaker/enrollhub/internal/app/features/shared/jsonapi"
	"github.com/mwhitaker/enrollhub/internal/app/store/audit"
	userstore "github.com/mwhitaker/enrollhub/internal/app/store/users"
	"github.com/mwhitaker/enrollhub/internal/app/system/auditlog"
	"github.com/mwhitaker/enrollhub/internal/app/system/auth"
	"github.com/mwhitaker/enrollhub/internal/app/system/normalize"
	"github.com/mwhitaker/enrollhub/internal/app/system/ratelimit"
	"github.com/mwhitaker/enrollhub/internal/app/system/status"
	"github.com/mwhitaker/enrollhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	Users    *userstore.Store
	AuditLog *auditlog.Logger
	Limiter  *ratelimit.LoginLimiter
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    userstore.New(db),
		AuditLog: auditLog,
		Limiter:  ratelimit.NewLoginLimiter(),
		Log:      logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Login handles POST /login. Bad email and bad password answer
// identically so the endpoint can't be used to probe accounts.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := jsonapi.Decode(r, &req); err != nil {
		jsonapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	email := normalize.Email(req.Email)
	if email == "" || req.Password == "" {
		jsonapi.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if allowed, reason := h.Limiter.Check(r, email); !allowed {
		jsonapi.Error(w, http.StatusTooManyRequests, reason)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedUserNotFound, "no account for email", email, nil)
			jsonapi.Error(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.Log.Warn("login: user lookup failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not process login")
		return
	}
	if u.Status == status.Disabled {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedUserDisabled, "account disabled", email, &u.ID)
		jsonapi.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedWrongPassword, "password mismatch", email, &u.ID)
		jsonapi.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	sessUser := &auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.FullName,
		Email: u.Email,
		Role:  u.Role,
	}
	if err := auth.SignIn(w, r, sessUser); err != nil {
		h.Log.Error("login: session write failed", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "could not establish session")
		return
	}

	h.Limiter.ResetEmail(email)
	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.Email)
	jsonapi.Respond(w, http.StatusOK, loginResponse{
		ID:       u.ID.Hex(),
		FullName: u.FullName,
		Email:    u.Email,
		Role:     u.Role,
	})
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if u, ok := auth.CurrentUser(r); ok {
		if id, err := primitive.ObjectIDFromHex(u.ID); err == nil {
			h.AuditLog.Logout(ctx, r, id)
		}
	}
	if err := auth.SignOut(w, r); err != nil {
		h.Log.Warn("logout: session clear failed", zap.Error(err))
	}
	jsonapi.Respond(w, http.StatusOK, map[string]bool{"success": true})
}
