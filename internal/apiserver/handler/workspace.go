package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amoylab/wshub/internal/apiserver/activity"
	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/apiserver/environment"
	"github.com/amoylab/wshub/internal/apiserver/middleware"
	"github.com/amoylab/wshub/internal/apiserver/rbac"
	"github.com/amoylab/wshub/internal/common/dto"
	"github.com/amoylab/wshub/internal/i18n"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// MyWorkspaces lists the active workspaces the caller is an active member of
func (h *Handler) MyWorkspaces(c *gin.Context) {
	list, err := h.db.ListUserWorkspaces(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListWorkspaces lists every workspace with search and paging
func (h *Handler) ListWorkspaces(c *gin.Context) {
	page, ok := queryInt(c, "page", 1, 1, 0)
	if !ok {
		return
	}
	pageSize, ok := queryInt(c, "pageSize", defaultPageSize, 1, maxPageSize)
	if !ok {
		return
	}

	list, total, err := h.db.ListWorkspaces(c.Request.Context(), database.WorkspaceQuery{
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.WorkspaceList{Items: list, Total: total, Page: page, PageSize: pageSize})
}

// CreateWorkspace creates a workspace and, when ownerId is given, its owner
func (h *Handler) CreateWorkspace(c *gin.Context) {
	var req dto.CreateWorkspaceRequest
	if !bindJSON(c, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		i18n.RespondWithError(c, i18n.ErrorWorkspaceName)
		return
	}

	ws, err := h.members.CreateWorkspace(c.Request.Context(), middleware.CurrentUser(c).ID, &database.Workspace{
		Name:        name,
		Slug:        strings.TrimSpace(req.Slug),
		Description: strings.TrimSpace(req.Description),
	}, strings.TrimSpace(req.OwnerID))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ws)
}

// GetWorkspace returns the workspace resolved from the route
func (h *Handler) GetWorkspace(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentWorkspace(c))
}

// UpdateWorkspace edits name, description or the active flag. The slug is immutable.
func (h *Handler) UpdateWorkspace(c *gin.Context) {
	var req dto.UpdateWorkspaceRequest
	if !bindJSON(c, &req) {
		return
	}
	actor, _ := middleware.CurrentActor(c)
	if err := rbac.CanEditWorkspace(actor); err != nil {
		h.respondDomainError(c, err)
		return
	}
	ctx := c.Request.Context()
	ws := middleware.CurrentWorkspace(c)

	changes := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			i18n.RespondWithError(c, i18n.ErrorWorkspaceName)
			return
		}
		if name != ws.Name {
			ws.Name = name
			changes["name"] = name
		}
	}
	if req.Description != nil && *req.Description != ws.Description {
		ws.Description = *req.Description
		changes["description"] = ws.Description
	}
	if req.IsActive != nil && *req.IsActive != ws.IsActive {
		ws.IsActive = *req.IsActive
		changes["isActive"] = ws.IsActive
	}

	if len(changes) > 0 {
		ws.UpdatedBy = &actor.UserID
		if err := h.db.UpdateWorkspace(ctx, ws); err != nil {
			h.respondDomainError(c, err)
			return
		}
		h.activities.Record(ctx, actor.UserID, &ws.ID, activity.TypeWorkspaceUpdated,
			"Workspace "+ws.Name+" updated", changes)
	}
	c.JSON(http.StatusOK, ws)
}

// DeleteWorkspace deletes a workspace together with its members, activities
// and environment. The audit entry is kept on the acting admin.
func (h *Handler) DeleteWorkspace(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	if err := rbac.CanEditWorkspace(actor); err != nil {
		h.respondDomainError(c, err)
		return
	}
	ctx := c.Request.Context()
	ws := middleware.CurrentWorkspace(c)

	if err := h.db.DeleteWorkspace(ctx, ws.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			i18n.RespondWithError(c, i18n.ErrorWorkspaceNotFound)
			return
		}
		h.respondDomainError(c, err)
		return
	}

	h.activities.Record(ctx, actor.UserID, nil, activity.TypeWorkspaceDeleted,
		"Workspace "+ws.Name+" deleted", map[string]any{"slug": ws.Slug, "workspaceId": ws.ID})
	i18n.RespondMessage(c, http.StatusOK, i18n.MsgWorkspaceDeleted, nil)
}

// WorkspaceStats summarizes membership, activity and environment state
func (h *Handler) WorkspaceStats(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	if err := rbac.CanView(actor); err != nil {
		h.respondDomainError(c, err)
		return
	}
	ctx := c.Request.Context()
	ws := middleware.CurrentWorkspace(c)

	byRole, err := h.db.CountMembersByRole(ctx, ws.ID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	active, err := h.db.CountActiveMembers(ctx, ws.ID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	activities, err := h.db.CountActivities(ctx, ws.ID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}

	var total int64
	for _, n := range byRole {
		total += n
	}
	stats := dto.WorkspaceStats{
		MemberCount:       ws.MemberCount,
		ActiveMembers:     active,
		InactiveMembers:   total - active,
		MembersByRole:     byRole,
		ActivityCount:     activities,
		EnvironmentStatus: environment.StatusUnknown,
	}

	env, err := h.db.GetEnvironment(ctx, ws.ID)
	switch {
	case err == nil:
		stats.EnvironmentStatus = env.Status
		stats.LastTestedAt = env.LastTestedAt
	case errors.Is(err, database.ErrNotFound):
		stats.EnvironmentStatus = "unconfigured"
	default:
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// queryInt reads an optional integer query parameter within [lo, hi].
// A hi of 0 means unbounded.
func queryInt(c *gin.Context, name string, def, lo, hi int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || (hi > 0 && v > hi) {
		rule := "min=" + strconv.Itoa(lo)
		if hi > 0 {
			rule += ",max=" + strconv.Itoa(hi)
		}
		i18n.RespondWithError(c, i18n.ErrValidation.WithFields(map[string]string{name: rule}))
		return 0, false
	}
	return v, true
}
