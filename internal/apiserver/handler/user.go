package handler

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/amoylab/wshub/internal/apiserver/activity"
	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/apiserver/middleware"
	"github.com/amoylab/wshub/internal/apiserver/rbac"
	"github.com/amoylab/wshub/internal/common/dto"
	"github.com/amoylab/wshub/internal/i18n"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,32}$`)

// UpdateProfile changes the caller's own profile fields
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user := middleware.CurrentUser(c)

	var changed []string
	set := func(field string, dst *string, src *string) {
		if src != nil && strings.TrimSpace(*src) != *dst {
			*dst = strings.TrimSpace(*src)
			changed = append(changed, field)
		}
	}
	set("displayName", &user.DisplayName, req.DisplayName)
	set("email", &user.Email, req.Email)
	set("phone", &user.Phone, req.Phone)
	set("bio", &user.Bio, req.Bio)

	if req.DateOfBirth != nil {
		var dob *time.Time
		if *req.DateOfBirth != "" {
			parsed, err := time.Parse(dto.DateLayout, *req.DateOfBirth)
			if err != nil {
				i18n.RespondWithError(c, i18n.ErrValidation.WithFields(map[string]string{"dateOfBirth": "datetime=" + dto.DateLayout}))
				return
			}
			dob = &parsed
		}
		if !sameDate(dob, user.DateOfBirth) {
			user.DateOfBirth = dob
			changed = append(changed, "dateOfBirth")
		}
	}

	if len(changed) > 0 {
		if err := h.db.UpdateUser(c.Request.Context(), user); err != nil {
			h.respondDomainError(c, err)
			return
		}
		h.activities.Record(c.Request.Context(), user.ID, nil, activity.TypeProfileUpdated,
			"Profile updated", map[string]any{"fields": changed})
	}
	c.JSON(http.StatusOK, toUserInfo(user))
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Format(dto.DateLayout) == b.Format(dto.DateLayout)
}

// ListUsers lists every platform user
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.db.ListUsers(c.Request.Context())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserInfos(users))
}

// ListRoles lists the platform roles
func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := h.db.ListRoles(c.Request.Context())
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// CreateUser creates a platform user. The role defaults to User.
func (h *Handler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	req.Username = strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(req.Username) {
		i18n.RespondWithError(c, i18n.ErrorInvalidUsername)
		return
	}
	if len(req.Password) < minPasswordLength {
		i18n.RespondWithError(c, i18n.ErrorPasswordTooShort.WithParam("Min", minPasswordLength))
		return
	}
	if req.Role == "" {
		req.Role = rbac.PlatformUserName
	}
	role, err := h.platformRole(ctx, req.Role)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.Username
	}
	user := &database.User{
		Username:    req.Username,
		DisplayName: displayName,
		Email:       strings.TrimSpace(req.Email),
		Password:    string(hashed),
		RoleID:      &role.ID,
		Role:        role,
		IsActive:    true,
	}
	if err := h.db.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			i18n.RespondWithError(c, i18n.ErrorUsernameExists)
			return
		}
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toUserInfo(user))
}

// UpdateUserStatus activates or deactivates a user. Deactivation revokes the
// user's refresh tokens; access tokens stop working on the next request.
func (h *Handler) UpdateUserStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	target, ok := h.loadTargetUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	target.IsActive = *req.IsActive
	if err := h.db.UpdateUser(ctx, target); err != nil {
		h.respondDomainError(c, err)
		return
	}
	if !target.IsActive {
		if err := h.sessions.DeleteUserRefreshTokens(ctx, target.ID); err != nil {
			h.logger.Warn("failed to revoke refresh tokens", zap.String("user_id", target.ID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, toUserInfo(target))
}

// UpdateUserRole changes a user's platform role
func (h *Handler) UpdateUserRole(c *gin.Context) {
	var req dto.UpdateRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	target, ok := h.loadTargetUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	role, err := h.platformRole(ctx, req.Role)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	target.RoleID = &role.ID
	target.Role = role
	if err := h.db.UpdateUser(ctx, target); err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserInfo(target))
}

// loadTargetUser resolves :id for admin user mutations. Admins cannot change
// their own status or role so the platform always keeps one admin.
func (h *Handler) loadTargetUser(c *gin.Context) (*database.User, bool) {
	id := c.Param("id")
	if id == middleware.CurrentUser(c).ID {
		i18n.RespondWithError(c, i18n.ErrorCannotDisableSelf)
		return nil, false
	}
	user, err := h.db.GetUserByID(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		i18n.RespondWithError(c, i18n.ErrorUserNotFound)
		return nil, false
	}
	if err != nil {
		h.respondDomainError(c, err)
		return nil, false
	}
	return user, true
}

func (h *Handler) platformRole(ctx context.Context, name string) (*database.Role, error) {
	parsed, err := rbac.ParsePlatformRole(name)
	if err != nil {
		return nil, i18n.ErrorRoleNotFound
	}
	role, err := h.db.GetRoleByName(ctx, parsed.String())
	if errors.Is(err, database.ErrNotFound) {
		return nil, i18n.ErrorRoleNotFound
	}
	return role, err
}
