package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amoylab/wshub/internal/apiserver/environment"
	"github.com/amoylab/wshub/internal/apiserver/middleware"
	"github.com/amoylab/wshub/internal/i18n"
)

// GetEnvironment returns the workspace environment with the password masked
func (h *Handler) GetEnvironment(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	view, err := h.envs.Get(c.Request.Context(), actor, middleware.CurrentWorkspace(c))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SaveEnvironment creates or replaces the workspace environment
func (h *Handler) SaveEnvironment(c *gin.Context) {
	var in environment.Input
	if !bindJSON(c, &in) {
		return
	}
	actor, _ := middleware.CurrentActor(c)
	view, err := h.envs.Save(c.Request.Context(), actor, middleware.CurrentWorkspace(c), in)
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteEnvironment removes the workspace environment
func (h *Handler) DeleteEnvironment(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	if err := h.envs.Delete(c.Request.Context(), actor, middleware.CurrentWorkspace(c)); err != nil {
		h.respondDomainError(c, err)
		return
	}
	i18n.RespondMessage(c, http.StatusOK, i18n.MsgEnvironmentDeleted, nil)
}

// TestEnvironment dials the configured database and caches the outcome
func (h *Handler) TestEnvironment(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	view, err := h.envs.Test(c.Request.Context(), actor, middleware.CurrentWorkspace(c))
	if err != nil {
		h.respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
