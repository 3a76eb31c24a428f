package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amoylab/wshub/internal/apiserver/activity"
	"github.com/amoylab/wshub/internal/apiserver/middleware"
	"github.com/amoylab/wshub/internal/apiserver/rbac"
)

// MyActivities pages through the caller's own activities
func (h *Handler) MyActivities(c *gin.Context) {
	h.listActivities(c, activity.Scope{OwnerID: middleware.CurrentUser(c).ID})
}

// WorkspaceActivities pages through the activities of the workspace
func (h *Handler) WorkspaceActivities(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	if err := rbac.CanView(actor); err != nil {
		h.respondDomainError(c, err)
		return
	}
	h.listActivities(c, activity.Scope{WorkspaceID: middleware.CurrentWorkspace(c).ID})
}

func (h *Handler) listActivities(c *gin.Context, scope activity.Scope) {
	limit, ok := queryInt(c, "limit", activity.DefaultLimit, 1, activity.MaxLimit)
	if !ok {
		return
	}
	result, err := h.activities.List(c.Request.Context(), scope, activity.Page{
		Limit:  limit,
		Cursor: c.Query("cursor"),
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
