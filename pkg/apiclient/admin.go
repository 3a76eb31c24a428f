package apiclient

import (
	"context"
	"net/url"
	"strconv"

	"github.com/amoylab/wshub/internal/common/dto"
)

// AdminAPI wraps the platform admin endpoints
type AdminAPI struct {
	c *Client
}

func (c *Client) Admin() *AdminAPI {
	return &AdminAPI{c: c}
}

func (a *AdminAPI) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	_, err := a.c.Get(ctx, "/users", &users)
	return users, wrapAdmin("list_users", "Failed to load users", err)
}

func (a *AdminAPI) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var user User
	if _, err := a.c.Post(ctx, "/users", req, &user); err != nil {
		return nil, wrapAdmin("create_user", "Failed to create user", err)
	}
	return &user, nil
}

func (a *AdminAPI) SetUserActive(ctx context.Context, userID string, active bool) (*User, error) {
	var user User
	if _, err := a.c.Patch(ctx, "/users/"+url.PathEscape(userID)+"/status", dto.UpdateStatusRequest{IsActive: &active}, &user); err != nil {
		return nil, wrapAdmin("update_user_status", "Failed to update user status", err)
	}
	return &user, nil
}

func (a *AdminAPI) SetUserRole(ctx context.Context, userID, role string) (*User, error) {
	var user User
	if _, err := a.c.Patch(ctx, "/users/"+url.PathEscape(userID)+"/role", dto.UpdateRoleRequest{Role: role}, &user); err != nil {
		return nil, wrapAdmin("update_user_role", "Failed to update user role", err)
	}
	return &user, nil
}

func (a *AdminAPI) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	_, err := a.c.Get(ctx, "/users/roles", &roles)
	return roles, wrapAdmin("list_roles", "Failed to load roles", err)
}

func (a *AdminAPI) ListWorkspaces(ctx context.Context, q WorkspaceQuery) (*WorkspacePage, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	path := "/admin/workspaces"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var page WorkspacePage
	if _, err := a.c.Get(ctx, path, &page); err != nil {
		return nil, wrapAdmin("list_workspaces", "Failed to load workspaces", err)
	}
	return &page, nil
}

func (a *AdminAPI) CreateWorkspace(ctx context.Context, req CreateWorkspaceRequest) (*Workspace, error) {
	var ws Workspace
	if _, err := a.c.Post(ctx, "/admin/workspaces", req, &ws); err != nil {
		return nil, wrapAdmin("create_workspace", "Failed to create workspace", err)
	}
	return &ws, nil
}

func (a *AdminAPI) GetWorkspace(ctx context.Context, slug string) (*Workspace, error) {
	var ws Workspace
	if _, err := a.c.Get(ctx, adminPath(slug, ""), &ws); err != nil {
		return nil, wrapAdmin("get_workspace", "Failed to load workspace", err)
	}
	return &ws, nil
}

func (a *AdminAPI) UpdateWorkspace(ctx context.Context, slug string, req UpdateWorkspaceRequest) (*Workspace, error) {
	var ws Workspace
	if _, err := a.c.Patch(ctx, adminPath(slug, ""), req, &ws); err != nil {
		return nil, wrapAdmin("update_workspace", "Failed to update workspace", err)
	}
	return &ws, nil
}

func (a *AdminAPI) DeleteWorkspace(ctx context.Context, slug string) error {
	_, err := a.c.Delete(ctx, adminPath(slug, ""), nil)
	return wrapAdmin("delete_workspace", "Failed to delete workspace", err)
}

func (a *AdminAPI) WorkspaceStats(ctx context.Context, slug string) (*WorkspaceStats, error) {
	var stats WorkspaceStats
	if _, err := a.c.Get(ctx, adminPath(slug, "/stats"), &stats); err != nil {
		return nil, wrapAdmin("workspace_stats", "Failed to load workspace statistics", err)
	}
	return &stats, nil
}

func (a *AdminAPI) WorkspaceActivities(ctx context.Context, slug string, page PageRequest) (*ActivityPage, error) {
	var out ActivityPage
	if _, err := a.c.Get(ctx, withPage(adminPath(slug, "/activities"), page), &out); err != nil {
		return nil, wrapAdmin("workspace_activities", "Failed to load workspace activities", err)
	}
	return &out, nil
}

// Members returns the member endpoints of slug on the admin path
func (a *AdminAPI) Members(slug string) *MembersAPI {
	return &MembersAPI{c: a.c, base: adminPath(slug, "/users"), wrap: wrapAdmin}
}

func adminPath(slug, suffix string) string {
	return "/admin/c/" + url.PathEscape(slug) + suffix
}

func withPage(path string, page PageRequest) string {
	params := url.Values{}
	if page.Limit > 0 {
		params.Set("limit", strconv.Itoa(page.Limit))
	}
	if page.Cursor != "" {
		params.Set("cursor", page.Cursor)
	}
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}
