package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/amoylab/wshub/internal/apiserver/middleware"
)

// RegisterRoutes mounts the REST surface on api, normally the /api group
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	auth := middleware.JWTAuthMiddleware(h.jwtService, h.db, h.logger)

	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.Refresh)

	user := api.Group("", auth)
	{
		user.GET("/auth/profile", h.Profile)
		user.POST("/auth/change-password", h.ChangePassword)
		user.POST("/auth/logout", h.Logout)

		user.PUT("/users/profile", h.UpdateProfile)
		user.PUT("/users/avatar", h.UploadAvatar)
		user.GET("/users/avatar/:key", h.GetAvatar)

		user.GET("/workspaces", h.MyWorkspaces)
		user.GET("/activities", h.MyActivities)
	}

	ws := api.Group("/c/:slug", auth, middleware.WorkspaceScope(h.members, false, h.logger))
	{
		ws.GET("", h.GetWorkspace)
		ws.GET("/activities", h.WorkspaceActivities)
		h.registerMemberRoutes(ws.Group("/members"))

		ws.GET("/environment", h.GetEnvironment)
		ws.POST("/environment", h.SaveEnvironment)
		ws.PUT("/environment", h.SaveEnvironment)
		ws.DELETE("/environment", h.DeleteEnvironment)
		ws.POST("/environment/test", h.TestEnvironment)
	}

	admin := api.Group("", auth, middleware.RequireAdmin())
	{
		admin.GET("/users", h.ListUsers)
		admin.POST("/users", h.CreateUser)
		admin.GET("/users/roles", h.ListRoles)
		admin.PATCH("/users/:id/status", h.UpdateUserStatus)
		admin.PATCH("/users/:id/role", h.UpdateUserRole)

		admin.GET("/admin/workspaces", h.ListWorkspaces)
		admin.POST("/admin/workspaces", h.CreateWorkspace)
	}

	adminWS := admin.Group("/admin/c/:slug", middleware.WorkspaceScope(h.members, true, h.logger))
	{
		adminWS.GET("", h.GetWorkspace)
		adminWS.PATCH("", h.UpdateWorkspace)
		adminWS.DELETE("", h.DeleteWorkspace)
		adminWS.GET("/stats", h.WorkspaceStats)
		adminWS.GET("/activities", h.WorkspaceActivities)
		h.registerMemberRoutes(adminWS.Group("/users"))
	}
}

func (h *Handler) registerMemberRoutes(g *gin.RouterGroup) {
	g.GET("", h.ListMembers)
	g.POST("", h.AddMember)
	g.POST("/replace-owner", h.ReplaceOwner)
	g.PATCH("/:id/role", h.UpdateMemberRole)
	g.PATCH("/:id/status", h.UpdateMemberStatus)
	g.DELETE("/:id", h.RemoveMember)
}
