package database

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write
	ErrDuplicate = errors.New("duplicate record")
	// ErrStale is returned when a guarded write finds the row changed or gone
	ErrStale = errors.New("record changed or deleted")
)

// Database defines the methods for database operations.
type Database interface {
	// Close closes the database connection.
	Close() error

	// Transaction runs fn in a transaction carried by the context passed to fn.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// CreateRole creates a platform role.
	CreateRole(ctx context.Context, role *Role) error
	// GetRoleByName gets a platform role by its unique name.
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	// ListRoles lists all platform roles.
	ListRoles(ctx context.Context) ([]*Role, error)

	// CreateUser creates a user.
	CreateUser(ctx context.Context, user *User) error
	// GetUserByID gets a user with its role.
	GetUserByID(ctx context.Context, id string) (*User, error)
	// GetUserByUsername gets a user with its role.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// UpdateUser saves every field of a user.
	UpdateUser(ctx context.Context, user *User) error
	// ListUsers lists users newest first.
	ListUsers(ctx context.Context) ([]*User, error)

	// CreateWorkspace creates a workspace.
	CreateWorkspace(ctx context.Context, ws *Workspace) error
	// GetWorkspaceBySlug gets a workspace by slug.
	GetWorkspaceBySlug(ctx context.Context, slug string) (*Workspace, error)
	// UpdateWorkspace saves every field of a workspace.
	UpdateWorkspace(ctx context.Context, ws *Workspace) error
	// DeleteWorkspace deletes a workspace with its members, activities and environment.
	DeleteWorkspace(ctx context.Context, id string) error
	// ListWorkspaces lists workspaces for the admin surface.
	ListWorkspaces(ctx context.Context, q WorkspaceQuery) ([]*Workspace, int64, error)
	// ListUserWorkspaces lists active workspaces where the user holds an active membership.
	ListUserWorkspaces(ctx context.Context, userID string) ([]*UserWorkspace, error)
	// SetMemberCount persists the denormalized member count.
	SetMemberCount(ctx context.Context, workspaceID string, count int) error

	// CreateMember creates a membership.
	CreateMember(ctx context.Context, m *WorkspaceMember) error
	// GetMember gets the membership of a user in a workspace.
	GetMember(ctx context.Context, workspaceID, userID string) (*WorkspaceMember, error)
	// UpdateMember saves every field of a membership.
	UpdateMember(ctx context.Context, m *WorkspaceMember) error
	// DeleteMember deletes the membership of a user in a workspace.
	DeleteMember(ctx context.Context, workspaceID, userID string) error
	// ListMembers lists memberships of a workspace joined with user profiles.
	ListMembers(ctx context.Context, workspaceID string) ([]*MemberDetail, error)
	// ListMembersByRole lists memberships of a workspace holding the given role.
	ListMembersByRole(ctx context.Context, workspaceID, role string) ([]*WorkspaceMember, error)
	// CountActiveMembers counts active memberships of a workspace.
	CountActiveMembers(ctx context.Context, workspaceID string) (int64, error)
	// CountMembersByRole counts memberships of a workspace grouped by role.
	CountMembersByRole(ctx context.Context, workspaceID string) (map[string]int64, error)

	// CreateActivity appends an activity.
	CreateActivity(ctx context.Context, a *Activity) error
	// ListActivities lists activities newest first after the keyset position.
	ListActivities(ctx context.Context, q ActivityQuery) ([]*Activity, error)
	// CountActivities counts activities of a workspace.
	CountActivities(ctx context.Context, workspaceID string) (int64, error)

	// GetEnvironment gets the environment of a workspace.
	GetEnvironment(ctx context.Context, workspaceID string) (*Environment, error)
	// SaveEnvironment creates or replaces the environment of a workspace.
	SaveEnvironment(ctx context.Context, env *Environment) error
	// DeleteEnvironment deletes the environment of a workspace.
	DeleteEnvironment(ctx context.Context, workspaceID string) error
	// RecordEnvironmentTest stores only the test outcome of env, and only while
	// the row still has env's ID and Revision. Otherwise it returns ErrStale.
	RecordEnvironmentTest(ctx context.Context, env *Environment) error
	// ListEnvironments lists every stored environment, oldest first.
	ListEnvironments(ctx context.Context) ([]*Environment, error)
}
