package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/apiserver/membership"
	"github.com/amoylab/wshub/internal/apiserver/rbac"
	"github.com/amoylab/wshub/internal/common/cnst"
	"github.com/amoylab/wshub/internal/i18n"
)

// WorkspaceResolver loads the workspace named in the route and the
// requester's standing in it
type WorkspaceResolver interface {
	Workspace(ctx context.Context, slug string) (*database.Workspace, error)
	Actor(ctx context.Context, userID string, platform rbac.PlatformRole, ws *database.Workspace, adminPath bool) (rbac.Actor, error)
}

// WorkspaceScope resolves :slug and stores the workspace and the
// authorization actor in the context.
//
// With adminPath the actor is authorized by platform role downstream and any
// workspace, active or not, is reachable. Without it the requester must hold
// an active membership in an active workspace.
func WorkspaceScope(resolver WorkspaceResolver, adminPath bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			i18n.RespondWithError(c, i18n.ErrUnauthorized)
			return
		}

		ws, err := resolver.Workspace(c.Request.Context(), c.Param("slug"))
		switch {
		case errors.Is(err, membership.ErrWorkspaceNotFound):
			i18n.RespondWithError(c, i18n.ErrorWorkspaceNotFound)
			return
		case err != nil:
			logger.Error("failed to resolve workspace", zap.String("slug", c.Param("slug")), zap.Error(err))
			i18n.RespondWithError(c, err)
			return
		}

		actor, err := resolver.Actor(c.Request.Context(), user.ID, PlatformRole(c), ws, adminPath)
		if err != nil {
			logger.Error("failed to load membership", zap.String("workspace_id", ws.ID), zap.Error(err))
			i18n.RespondWithError(c, err)
			return
		}

		if !adminPath {
			if actor.Membership == nil || !actor.Membership.Active {
				i18n.RespondWithError(c, i18n.ErrorNotMember)
				return
			}
			if !ws.IsActive {
				i18n.RespondWithError(c, i18n.ErrorWorkspaceInactive)
				return
			}
		}

		c.Set(cnst.CtxKeyWorkspace, ws)
		c.Set(cnst.CtxKeyActor, actor)
		c.Next()
	}
}

// CurrentWorkspace returns the workspace resolved by WorkspaceScope
func CurrentWorkspace(c *gin.Context) *database.Workspace {
	if v, ok := c.Get(cnst.CtxKeyWorkspace); ok {
		if ws, ok := v.(*database.Workspace); ok {
			return ws
		}
	}
	return nil
}

// CurrentActor returns the actor built by WorkspaceScope
func CurrentActor(c *gin.Context) (rbac.Actor, bool) {
	if v, ok := c.Get(cnst.CtxKeyActor); ok {
		actor, ok := v.(rbac.Actor)
		return actor, ok
	}
	return rbac.Actor{}, false
}
