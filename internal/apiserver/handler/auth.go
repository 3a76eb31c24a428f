package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/amoylab/wshub/internal/apiserver/activity"
	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/apiserver/middleware"
	authstore "github.com/amoylab/wshub/internal/auth/storage"
	"github.com/amoylab/wshub/internal/common/dto"
	"github.com/amoylab/wshub/internal/i18n"
)

// Login handles user login
func (h *Handler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	user, err := h.db.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, database.ErrNotFound) {
		h.authEvent("login_failed")
		i18n.RespondWithError(c, i18n.ErrorInvalidCredentials)
		return
	}
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		h.authEvent("login_failed")
		i18n.RespondWithError(c, i18n.ErrorInvalidCredentials)
		return
	}
	if !user.IsActive {
		h.authEvent("login_failed")
		i18n.RespondWithError(c, i18n.ErrorUserDisabled)
		return
	}

	pair, err := h.issueTokens(ctx, user)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	h.authEvent("login_success")
	h.activities.Record(ctx, user.ID, nil, activity.TypeLoginSuccess, "Signed in",
		map[string]any{"ip": c.ClientIP(), "userAgent": c.Request.UserAgent()})

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token:        pair.Token,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         toUserInfo(user),
	})
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is issued. Concurrent refreshes with one token yield one new pair.
func (h *Handler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	session, err := h.sessions.ConsumeRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		h.authEvent("refresh_failed")
		if errors.Is(err, authstore.ErrInvalidRefreshToken) || errors.Is(err, authstore.ErrRefreshTokenExpired) {
			i18n.RespondWithError(c, i18n.ErrorInvalidRefreshToken)
			return
		}
		h.respondDomainError(c, err)
		return
	}

	user, err := h.db.GetUserByID(ctx, session.UserID)
	if err != nil || !user.IsActive {
		h.authEvent("refresh_failed")
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			h.respondDomainError(c, err)
			return
		}
		i18n.RespondWithError(c, i18n.ErrorInvalidRefreshToken)
		return
	}

	pair, err := h.issueTokens(ctx, user)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.authEvent("refresh")
	c.JSON(http.StatusOK, pair)
}

// Logout revokes the presented refresh token, or all of the user's
// refresh tokens when none is given
func (h *Handler) Logout(c *gin.Context) {
	var req dto.LogoutRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	var err error
	if req.RefreshToken == "" {
		err = h.sessions.DeleteUserRefreshTokens(ctx, user.ID)
	} else if session, getErr := h.sessions.GetRefreshToken(ctx, req.RefreshToken); getErr == nil && session.UserID == user.ID {
		err = h.sessions.DeleteRefreshToken(ctx, req.RefreshToken)
	}
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	h.authEvent("logout")
	i18n.RespondMessage(c, http.StatusOK, i18n.MsgLoggedOut, nil)
}

// Profile returns the signed-in user
func (h *Handler) Profile(c *gin.Context) {
	c.JSON(http.StatusOK, toUserInfo(middleware.CurrentUser(c)))
}

// ChangePassword handles password change requests. Every refresh token of
// the user is revoked so other devices have to sign in again.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		i18n.RespondWithError(c, i18n.ErrorInvalidOldPassword)
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		i18n.RespondWithError(c, i18n.ErrorPasswordTooShort.WithParam("Min", minPasswordLength))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	user.Password = string(hashed)
	if err := h.db.UpdateUser(ctx, user); err != nil {
		h.respondDomainError(c, err)
		return
	}
	if err := h.sessions.DeleteUserRefreshTokens(ctx, user.ID); err != nil {
		h.logger.Warn("failed to revoke refresh tokens", zap.String("user_id", user.ID), zap.Error(err))
	}

	h.activities.Record(ctx, user.ID, nil, activity.TypePasswordChanged, "Password changed", nil)
	i18n.RespondMessage(c, http.StatusOK, i18n.MsgPasswordChanged, gin.H{"success": true})
}

func (h *Handler) issueTokens(ctx context.Context, user *database.User) (*dto.TokenPair, error) {
	token, err := h.jwtService.GenerateToken(user.ID, user.Username, user.RoleName())
	if err != nil {
		return nil, err
	}

	now := h.now()
	session := &authstore.RefreshSession{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(h.refreshTTL).Unix(),
	}
	if err := h.sessions.SaveRefreshToken(ctx, session); err != nil {
		return nil, err
	}

	return &dto.TokenPair{
		Token:        token,
		RefreshToken: session.Token,
		ExpiresIn:    int64(h.jwtService.Duration().Seconds()),
	}, nil
}
