package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/amoylab/wshub/internal/common/dto"
)

// WorkspaceAPI wraps the endpoints of one workspace as seen by a member
type WorkspaceAPI struct {
	c    *Client
	slug string
}

func (c *Client) Workspace(slug string) *WorkspaceAPI {
	return &WorkspaceAPI{c: c, slug: slug}
}

func (w *WorkspaceAPI) path(suffix string) string {
	return "/c/" + url.PathEscape(w.slug) + suffix
}

func (w *WorkspaceAPI) Get(ctx context.Context) (*Workspace, error) {
	var ws Workspace
	if _, err := w.c.Get(ctx, w.path(""), &ws); err != nil {
		return nil, wrapWorkspace("get_workspace", "Failed to load workspace", err)
	}
	return &ws, nil
}

func (w *WorkspaceAPI) Members() *MembersAPI {
	return &MembersAPI{c: w.c, base: w.path("/members"), wrap: wrapWorkspace}
}

func (w *WorkspaceAPI) Activities(ctx context.Context, page PageRequest) (*ActivityPage, error) {
	var out ActivityPage
	if _, err := w.c.Get(ctx, withPage(w.path("/activities"), page), &out); err != nil {
		return nil, wrapWorkspace("workspace_activities", "Failed to load activities", err)
	}
	return &out, nil
}

func (w *WorkspaceAPI) Environment(ctx context.Context) (*Environment, error) {
	var env Environment
	if _, err := w.c.Get(ctx, w.path("/environment"), &env); err != nil {
		return nil, wrapWorkspace("get_environment", "Failed to load environment", err)
	}
	return &env, nil
}

// SaveEnvironment creates or replaces the environment
func (w *WorkspaceAPI) SaveEnvironment(ctx context.Context, env Environment) (*Environment, error) {
	var out Environment
	if _, err := w.c.Put(ctx, w.path("/environment"), env, &out); err != nil {
		return nil, wrapWorkspace("save_environment", "Failed to save environment", err)
	}
	return &out, nil
}

func (w *WorkspaceAPI) DeleteEnvironment(ctx context.Context) error {
	_, err := w.c.Delete(ctx, w.path("/environment"), nil)
	return wrapWorkspace("delete_environment", "Failed to delete environment", err)
}

// TestEnvironment dials the environment; a failed dial is reported in
// Status and LastError, not as an error
func (w *WorkspaceAPI) TestEnvironment(ctx context.Context) (*Environment, error) {
	var out Environment
	if _, err := w.c.Post(ctx, w.path("/environment/test"), nil, &out); err != nil {
		return nil, wrapWorkspace("test_environment", "Failed to test environment", err)
	}
	return &out, nil
}

// MembersAPI manages memberships on either the admin or the workspace path
type MembersAPI struct {
	c    *Client
	base string
	wrap func(op, message string, err error) error
}

func (m *MembersAPI) List(ctx context.Context) ([]Member, error) {
	var members []Member
	_, err := m.c.Get(ctx, m.base, &members)
	return members, m.wrap("list_members", "Failed to load members", err)
}

func (m *MembersAPI) Add(ctx context.Context, userID, role string) (*Member, error) {
	var member Member
	if _, err := m.c.Post(ctx, m.base, dto.AddMemberRequest{UserID: userID, Role: role}, &member); err != nil {
		return nil, m.wrap("add_member", "Failed to add member", err)
	}
	return &member, nil
}

func (m *MembersAPI) SetRole(ctx context.Context, userID, role string) (*Member, error) {
	var member Member
	if _, err := m.c.Patch(ctx, m.base+"/"+url.PathEscape(userID)+"/role", dto.UpdateRoleRequest{Role: role}, &member); err != nil {
		return nil, m.wrap("update_member_role", "Failed to update member role", err)
	}
	return &member, nil
}

func (m *MembersAPI) SetActive(ctx context.Context, userID string, active bool) (*Member, error) {
	var member Member
	if _, err := m.c.Patch(ctx, m.base+"/"+url.PathEscape(userID)+"/status", dto.UpdateStatusRequest{IsActive: &active}, &member); err != nil {
		return nil, m.wrap("update_member_status", "Failed to update member status", err)
	}
	return &member, nil
}

// Remove deletes the membership and returns the new member count
func (m *MembersAPI) Remove(ctx context.Context, userID string) (int, error) {
	var out struct {
		MemberCount int `json:"memberCount"`
	}
	if _, err := m.c.Delete(ctx, m.base+"/"+url.PathEscape(userID), &out); err != nil {
		return 0, m.wrap("remove_member", "Failed to remove member", err)
	}
	return out.MemberCount, nil
}

// ReplaceOwner makes userID the owner; the previous owner becomes Author
func (m *MembersAPI) ReplaceOwner(ctx context.Context, userID string) (*OwnerChange, error) {
	var out OwnerChange
	if _, err := m.c.Post(ctx, m.base+"/replace-owner", dto.ReplaceOwnerRequest{UserID: userID}, &out); err != nil {
		return nil, m.wrap("replace_owner", "Failed to replace owner", err)
	}
	return &out, nil
}

// AccountAPI wraps the caller's own account endpoints
type AccountAPI struct {
	c *Client
}

func (c *Client) Account() *AccountAPI {
	return &AccountAPI{c: c}
}

func (a *AccountAPI) Profile(ctx context.Context) (*User, error) {
	var user User
	if _, err := a.c.Get(ctx, "/auth/profile", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *AccountAPI) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error) {
	var user User
	if _, err := a.c.Put(ctx, "/users/profile", req, &user); err != nil {
		return nil, wrapWorkspace("update_profile", "Failed to update profile", err)
	}
	return &user, nil
}

func (a *AccountAPI) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	_, err := a.c.Post(ctx, "/auth/change-password", dto.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}, nil)
	return wrapWorkspace("change_password", "Failed to change password", err)
}

// UploadAvatar replaces the caller's avatar
func (a *AccountAPI) UploadAvatar(ctx context.Context, filename string, r io.Reader) (*User, error) {
	var out dto.AvatarResponse
	if _, err := a.c.Upload(ctx, "/users/avatar", "avatar", filename, r, &out, WithMethod(http.MethodPut)); err != nil {
		return nil, wrapWorkspace("upload_avatar", "Failed to upload avatar", err)
	}
	return out.User, nil
}

// Workspaces lists the caller's active memberships
func (a *AccountAPI) Workspaces(ctx context.Context) ([]Workspace, error) {
	var list []Workspace
	_, err := a.c.Get(ctx, "/workspaces", &list)
	return list, wrapWorkspace("my_workspaces", "Failed to load workspaces", err)
}

func (a *AccountAPI) Activities(ctx context.Context, page PageRequest) (*ActivityPage, error) {
	var out ActivityPage
	if _, err := a.c.Get(ctx, withPage("/activities", page), &out); err != nil {
		return nil, wrapWorkspace("my_activities", "Failed to load activities", err)
	}
	return &out, nil
}

// Logout revokes the stored refresh token on the server
func (a *AccountAPI) Logout(ctx context.Context) error {
	_, err := a.c.Post(ctx, "/auth/logout", dto.LogoutRequest{RefreshToken: a.c.Tokens().RefreshToken()}, nil, WithRetries(0))
	return err
}
