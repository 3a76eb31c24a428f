package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/amoylab/wshub/internal/apiserver/rbac"
	"github.com/amoylab/wshub/internal/i18n"
)

// RequireAdmin restricts a route group to platform administrators.
// It must run after JWTAuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			i18n.RespondWithError(c, i18n.ErrUnauthorized)
			return
		}
		if PlatformRole(c) != rbac.PlatformAdmin {
			i18n.RespondWithError(c, i18n.ErrorAdminRequired)
			return
		}
		c.Next()
	}
}
