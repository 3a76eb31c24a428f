package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/apiserver/activity"
	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/apiserver/environment"
	"github.com/amoylab/wshub/internal/apiserver/membership"
	"github.com/amoylab/wshub/internal/apiserver/rbac"
	authstore "github.com/amoylab/wshub/internal/auth/storage"
	"github.com/amoylab/wshub/internal/i18n"
	"github.com/amoylab/wshub/internal/storage"
)

// domainErrors maps service errors to API errors. Order matters: the
// specific conflicts wrap rbac.ErrConflict and must match first.
var domainErrors = []struct {
	target error
	resp   *i18n.ErrorWithCode
}{
	{rbac.ErrForbidden, i18n.ErrForbidden},
	{rbac.ErrUnknownRole, i18n.ErrorInvalidRole},
	{membership.ErrAlreadyMember, i18n.ErrorAlreadyMember},
	{membership.ErrSlugTaken, i18n.ErrorSlugExists},
	{rbac.ErrConflict, i18n.ErrorOwnerConflict},
	{membership.ErrWorkspaceNotFound, i18n.ErrorWorkspaceNotFound},
	{membership.ErrMemberNotFound, i18n.ErrorMemberNotFound},
	{membership.ErrUserNotFound, i18n.ErrorUserNotFound},
	{membership.ErrInvalidSlug, i18n.ErrorInvalidSlug},
	{activity.ErrInvalidCursor, i18n.ErrorInvalidCursor},
	{environment.ErrNotFound, i18n.ErrorEnvironmentNotFound},
	{environment.ErrUnsupportedKind, i18n.ErrorUnsupportedKind},
	{environment.ErrInvalid, i18n.ErrorEnvironmentInvalid},
	{authstore.ErrInvalidRefreshToken, i18n.ErrorInvalidRefreshToken},
	{authstore.ErrRefreshTokenExpired, i18n.ErrorInvalidRefreshToken},
	{storage.ErrNotFound, i18n.ErrorAvatarNotFound},
	{storage.ErrInvalidKey, i18n.ErrorAvatarNotFound},
	{database.ErrNotFound, i18n.ErrNotFound},
	{database.ErrDuplicate, i18n.ErrConflict},
}

// respondDomainError translates err into the API error body. Unknown errors
// are logged and answered with 500.
func (h *Handler) respondDomainError(c *gin.Context, err error) {
	var codeErr *i18n.ErrorWithCode
	if errors.As(err, &codeErr) {
		i18n.RespondWithError(c, codeErr)
		return
	}

	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			resp := m.resp
			if m.target == environment.ErrInvalid {
				resp = resp.WithParam("Detail", err.Error())
			}
			i18n.RespondWithError(c, resp)
			return
		}
	}

	h.logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
		zap.Error(err))
	i18n.RespondWithError(c, i18n.ErrInternalServer)
}
