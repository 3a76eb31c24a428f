package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amoylab/wshub/internal/apiserver/middleware"
	"github.com/amoylab/wshub/internal/apiserver/rbac"
	"github.com/amoylab/wshub/internal/common/dto"
	"github.com/amoylab/wshub/internal/i18n"
)

// Member handlers serve both /c/:slug/members and /admin/c/:slug/users. The
// actor built by middleware.WorkspaceScope decides which rules apply.

// ListMembers lists the memberships of the workspace
func (h *Handler) ListMembers(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	members, err := h.members.ListMembers(c.Request.Context(), actor, middleware.CurrentWorkspace(c))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// AddMember adds a user to the workspace. The role defaults to Member.
func (h *Handler) AddMember(c *gin.Context) {
	var req dto.AddMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	role := rbac.RoleMember
	if req.Role != "" {
		parsed, err := rbac.ParseWorkspaceRole(req.Role)
		if err != nil {
			i18n.RespondWithError(c, i18n.ErrorInvalidRole)
			return
		}
		role = parsed
	}

	actor, _ := middleware.CurrentActor(c)
	m, err := h.members.AddMember(c.Request.Context(), actor, middleware.CurrentWorkspace(c), req.UserID, role)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// UpdateMemberRole changes the workspace role of member :id
func (h *Handler) UpdateMemberRole(c *gin.Context) {
	var req dto.UpdateRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := rbac.ParseWorkspaceRole(req.Role)
	if err != nil {
		i18n.RespondWithError(c, i18n.ErrorInvalidRole)
		return
	}

	actor, _ := middleware.CurrentActor(c)
	m, err := h.members.UpdateRole(c.Request.Context(), actor, middleware.CurrentWorkspace(c), c.Param("id"), role)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// UpdateMemberStatus activates or deactivates member :id
func (h *Handler) UpdateMemberStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	actor, _ := middleware.CurrentActor(c)
	m, err := h.members.SetActive(c.Request.Context(), actor, middleware.CurrentWorkspace(c), c.Param("id"), *req.IsActive)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// RemoveMember deletes the membership of :id
func (h *Handler) RemoveMember(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	ws := middleware.CurrentWorkspace(c)
	if err := h.members.RemoveMember(c.Request.Context(), actor, ws, c.Param("id")); err != nil {
		h.respondDomainError(c, err)
		return
	}
	i18n.RespondMessage(c, http.StatusOK, i18n.MsgMemberRemoved, gin.H{"memberCount": ws.MemberCount})
}

// ReplaceOwner makes an active member the owner and demotes the current owner to Author
func (h *Handler) ReplaceOwner(c *gin.Context) {
	var req dto.ReplaceOwnerRequest
	if !bindJSON(c, &req) {
		return
	}

	actor, _ := middleware.CurrentActor(c)
	result, err := h.members.ReplaceOwner(c.Request.Context(), actor, middleware.CurrentWorkspace(c), req.UserID)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
