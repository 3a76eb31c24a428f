package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoylab/wshub/internal/apiserver/activity"
	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/common/dto"
)

type workspaceListBody struct {
	Items    []database.Workspace `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"pageSize"`
}

func TestAdminCreateWorkspace(t *testing.T) {
	s := newTestServer(t)
	root := s.as("root")

	w := root(http.MethodPost, "/api/admin/workspaces", dto.CreateWorkspaceRequest{
		Name:    "Blue Team",
		OwnerID: s.users["dave"].ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ws := decode[database.Workspace](t, w)
	assert.Equal(t, "blue-team", ws.Slug)
	assert.Equal(t, 1, ws.MemberCount)
	assert.True(t, ws.IsActive)

	w = s.as("dave")(http.MethodGet, "/api/workspaces", nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[[]database.UserWorkspace](t, w)
	require.Len(t, mine, 1)
	assert.Equal(t, "blue-team", mine[0].Slug)
	assert.Equal(t, "Owner", mine[0].Role)

	w = root(http.MethodPost, "/api/admin/workspaces", dto.CreateWorkspaceRequest{Name: "Other", Slug: "blue-team"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "slug_exists", errCode(t, w))

	w = root(http.MethodPost, "/api/admin/workspaces", dto.CreateWorkspaceRequest{Name: "Other", Slug: "Bad_Slug"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_slug", errCode(t, w))

	w = root(http.MethodPost, "/api/admin/workspaces", dto.CreateWorkspaceRequest{Name: "   "})
	assert.Equal(t, "workspace_name_required", errCode(t, w))

	w = root(http.MethodPost, "/api/admin/workspaces", dto.CreateWorkspaceRequest{Name: "Ghost", OwnerID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "user_not_found", errCode(t, w))
	w = root(http.MethodGet, "/api/admin/c/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "failed creation leaves nothing behind")
}

func TestAdminListWorkspaces(t *testing.T) {
	s := newTestServer(t)
	root := s.as("root")
	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		w := root(http.MethodPost, "/api/admin/workspaces", dto.CreateWorkspaceRequest{Name: name})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := root(http.MethodGet, "/api/admin/workspaces?page=1&pageSize=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[workspaceListBody](t, w)
	assert.Equal(t, int64(4), list.Total)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, 2, list.PageSize)

	w = root(http.MethodGet, "/api/admin/workspaces?search=amm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = decode[workspaceListBody](t, w)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "gamma", list.Items[0].Slug)

	w = root(http.MethodGet, "/api/admin/workspaces?pageSize=500", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, map[string]any{"pageSize": "min=1,max=100"}, decode[map[string]any](t, w)["fields"])
}

func TestWorkspaceAccess(t *testing.T) {
	s := newTestServer(t)

	w := s.as("bob")(http.MethodGet, "/api/c/acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Acme", decode[database.Workspace](t, w).Name)

	w = s.as("dave")(http.MethodGet, "/api/c/acme", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_member", errCode(t, w))

	w = s.as("root")(http.MethodGet, "/api/c/acme", nil)
	assert.Equal(t, "not_member", errCode(t, w), "admins use the admin routes")

	w = s.as("bob")(http.MethodGet, "/api/c/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "workspace_not_found", errCode(t, w))
}

func TestAdminUpdateWorkspace(t *testing.T) {
	s := newTestServer(t)
	root := s.as("root")

	w := root(http.MethodPatch, "/api/admin/c/acme", map[string]any{"name": "Acme Corp", "isActive": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ws := decode[database.Workspace](t, w)
	assert.Equal(t, "Acme Corp", ws.Name)
	assert.Equal(t, "acme", ws.Slug)
	assert.False(t, ws.IsActive)

	w = s.as("alice")(http.MethodGet, "/api/c/acme", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "workspace_inactive", errCode(t, w))

	w = s.as("alice")(http.MethodGet, "/api/workspaces", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]database.UserWorkspace](t, w))

	w = root(http.MethodGet, "/api/admin/c/acme", nil)
	assert.Equal(t, http.StatusOK, w.Code, "admins still reach disabled workspaces")

	w = root(http.MethodPatch, "/api/admin/c/acme", map[string]any{"name": ""})
	assert.Equal(t, "workspace_name_required", errCode(t, w))

	page, err := s.handler.activities.List(context.Background(), activity.Scope{WorkspaceID: s.ws.ID}, activity.Page{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, string(activity.TypeWorkspaceUpdated), page.Items[0].Type)
}

func TestAdminDeleteWorkspace(t *testing.T) {
	s := newTestServer(t)
	root := s.as("root")

	w := root(http.MethodDelete, "/api/admin/c/acme", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = root(http.MethodGet, "/api/admin/c/acme", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.as("alice")(http.MethodGet, "/api/workspaces", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]database.UserWorkspace](t, w))

	page, err := s.handler.activities.List(context.Background(), activity.Scope{OwnerID: s.users["root"].ID}, activity.Page{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, string(activity.TypeWorkspaceDeleted), page.Items[0].Type)
	assert.Nil(t, page.Items[0].WorkspaceID)
}

func TestAdminWorkspaceStats(t *testing.T) {
	s := newTestServer(t)
	root := s.as("root")

	w := root(http.MethodPatch, "/api/admin/c/acme/users/"+s.users["bob"].ID+"/status", map[string]bool{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = root(http.MethodGet, "/api/admin/c/acme/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[dto.WorkspaceStats](t, w)
	assert.Equal(t, 2, stats.MemberCount)
	assert.Equal(t, int64(2), stats.ActiveMembers)
	assert.Equal(t, int64(1), stats.InactiveMembers)
	assert.Equal(t, map[string]int64{"Owner": 1, "Author": 1, "Member": 1}, stats.MembersByRole)
	assert.Equal(t, "unconfigured", stats.EnvironmentStatus)
	assert.Positive(t, stats.ActivityCount)
	assert.Equal(t, 2, s.memberCount())
}
