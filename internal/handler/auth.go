package handler

import (
	"context"  // provides context with cancellation for DB calls
	"errors"   // errors.Is on verifier sentinels
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // timeouts for upstream calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing
	"go.uber.org/zap"             // structured logging

	"github.com/iliyamo/line-event-reservation/internal/config"     // app configuration
	"github.com/iliyamo/line-event-reservation/internal/line"       // LINE ID token verification
	"github.com/iliyamo/line-event-reservation/internal/model"      // domain types
	"github.com/iliyamo/line-event-reservation/internal/repository" // profile persistence
	"github.com/iliyamo/line-event-reservation/internal/utils"      // access token issuing
)

// IDTokenVerifier checks a LINE ID token; *line.Verifier implements it.
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*line.Profile, error)
}

// ProfileStore persists profiles; *repository.UserRepo implements it.
type ProfileStore interface {
	UpsertByLineID(ctx context.Context, p repository.LineProfile, promote bool) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	cfg      config.Config
	verifier IDTokenVerifier
	users    ProfileStore
	admins   map[string]bool
	logger   *zap.Logger
}

// NewAuthHandler panics if verifier or users is nil.
func NewAuthHandler(cfg config.Config, verifier IDTokenVerifier, users ProfileStore, logger *zap.Logger) *AuthHandler {
	if verifier == nil || users == nil {
		panic("nil dependency passed to NewAuthHandler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	admins := make(map[string]bool, len(cfg.LINE.AdminUserIDs))
	for _, id := range cfg.LINE.AdminUserIDs {
		admins[id] = true
	}
	return &AuthHandler{cfg: cfg, verifier: verifier, users: users, admins: admins, logger: logger}
}

// ----- DTOs -----

type lineLoginReq struct {
	IDToken string `json:"id_token" form:"id_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User   *model.User `json:"user"`
	Access tokenPart   `json:"access"`
}

// LineLogin verifies a LINE ID token, creates or refreshes the profile
// and returns an access token for it.
func (h *AuthHandler) LineLogin(c echo.Context) error {
	var req lineLoginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.IDToken = strings.TrimSpace(req.IDToken)
	if req.IDToken == "" {
		return badRequest(c, "id_token required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	p, err := h.verifier.Verify(ctx, req.IDToken)
	switch {
	case errors.Is(err, line.ErrUnavailable):
		h.logger.Warn("line verify unavailable", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "login temporarily unavailable", "code": "upstream_unavailable"})
	case err != nil:
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid id token", "code": "unauthorized"})
	}

	name := p.Name
	if name == "" {
		name = "LINE user"
	}
	u, err := h.users.UpsertByLineID(ctx, repository.LineProfile{
		LineUserID:  p.Subject,
		DisplayName: name,
		PictureURL:  p.Picture,
		Email:       p.Email,
	}, h.admins[p.Subject])
	if err != nil {
		h.logger.Error("profile upsert failed", zap.String("line_user_id", p.Subject), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save profile failed", "code": "internal"})
	}

	access, err := utils.NewAccessToken(h.cfg.JWTSecret, u.ID, string(u.Role), h.cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed", "code": "internal"})
	}
	h.logger.Info("user signed in", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return c.JSON(http.StatusOK, authResp{User: u, Access: tokenPart{Token: access.Token, Expires: access.Exp}})
}

// Me returns the caller's stored profile.
func (h *AuthHandler) Me(c echo.Context) error {
	actor := actorFrom(c)
	if !actor.Authenticated() {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "unauthorized"})
	}
	u, err := h.users.GetByID(c.Request().Context(), actor.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
