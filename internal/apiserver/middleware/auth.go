package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/apiserver/rbac"
	"github.com/amoylab/wshub/internal/auth/jwt"
	"github.com/amoylab/wshub/internal/common/cnst"
	"github.com/amoylab/wshub/internal/i18n"
)

const ctxKeyUser = "user"

// UserLoader resolves the subject of an access token
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*database.User, error)
}

// JWTAuthMiddleware validates the bearer token and loads the user it was
// issued to. Tokens of deleted or deactivated users are rejected even while
// they are still within their lifetime.
func JWTAuthMiddleware(jwtService *jwt.Service, users UserLoader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			i18n.RespondWithError(c, i18n.ErrUnauthorized)
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			i18n.RespondWithError(c, i18n.ErrorInvalidToken)
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.UserID())
		switch {
		case errors.Is(err, database.ErrNotFound):
			i18n.RespondWithError(c, i18n.ErrorInvalidToken)
			return
		case err != nil:
			logger.Error("failed to load token subject", zap.String("user_id", claims.UserID()), zap.Error(err))
			i18n.RespondWithError(c, err)
			return
		}
		if !user.IsActive {
			i18n.RespondWithError(c, i18n.ErrorUserDisabled)
			return
		}

		c.Set(cnst.CtxKeyClaims, claims)
		c.Set(ctxKeyUser, user)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// CurrentUser returns the user loaded by JWTAuthMiddleware
func CurrentUser(c *gin.Context) *database.User {
	if v, ok := c.Get(ctxKeyUser); ok {
		if u, ok := v.(*database.User); ok {
			return u
		}
	}
	return nil
}

// CurrentClaims returns the validated access token claims
func CurrentClaims(c *gin.Context) *jwt.Claims {
	if v, ok := c.Get(cnst.CtxKeyClaims); ok {
		if claims, ok := v.(*jwt.Claims); ok {
			return claims
		}
	}
	return nil
}

// PlatformRole returns the stored platform role of the current user
func PlatformRole(c *gin.Context) rbac.PlatformRole {
	u := CurrentUser(c)
	if u == nil {
		return rbac.PlatformNone
	}
	role, err := rbac.ParsePlatformRole(u.RoleName())
	if err != nil {
		return rbac.PlatformNone
	}
	return role
}
