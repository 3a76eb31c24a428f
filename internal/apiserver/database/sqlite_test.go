package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoylab/wshub/internal/common/config"
)

func newTestSQLite(t *testing.T) Database {
	t.Helper()
	db, err := NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, db Database, username string) *User {
	t.Helper()
	u := &User{Username: username, DisplayName: username, Password: "x", IsActive: true}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func seedWorkspace(t *testing.T, db Database, slug string) *Workspace {
	t.Helper()
	ws := &Workspace{Name: slug, Slug: slug, IsActive: true}
	require.NoError(t, db.CreateWorkspace(context.Background(), ws))
	return ws
}

func TestSQLite_UsersAndRoles(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, InitPlatformRoles(ctx, db))
	require.NoError(t, InitPlatformRoles(ctx, db))
	roles, err := db.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 2)

	admin, err := db.GetRoleByName(ctx, "Admin")
	require.NoError(t, err)

	u := &User{Username: "alice", Password: "p", RoleID: &admin.ID, IsActive: true}
	require.NoError(t, db.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)

	err = db.CreateUser(ctx, &User{Username: "alice", Password: "p"})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := db.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Admin", got.RoleName())

	got.DisplayName = "Alice"
	got.IsActive = false
	require.NoError(t, db.UpdateUser(ctx, got))
	got, err = db.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.False(t, got.IsActive)

	_, err = db.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	users, err := db.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestInitSuperAdmin(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, InitPlatformRoles(ctx, db))

	u, err := InitSuperAdmin(ctx, db, config.SuperAdminConfig{Username: "root", Password: "secret"})
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.NotEqual(t, "secret", u.Password)

	again, err := InitSuperAdmin(ctx, db, config.SuperAdminConfig{Username: "root", Password: "other"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	none, err := InitSuperAdmin(ctx, db, config.SuperAdminConfig{})
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLite_WorkspacesAndMembers(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	ws := seedWorkspace(t, db, "acme")

	err := db.CreateWorkspace(ctx, &Workspace{Name: "dup", Slug: "acme"})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, db.CreateMember(ctx, &WorkspaceMember{WorkspaceID: ws.ID, UserID: alice.ID, Role: "Owner", IsActive: true}))
	require.NoError(t, db.CreateMember(ctx, &WorkspaceMember{WorkspaceID: ws.ID, UserID: bob.ID, Role: "Member", IsActive: true}))

	err = db.CreateMember(ctx, &WorkspaceMember{WorkspaceID: ws.ID, UserID: bob.ID, Role: "Author", IsActive: true})
	assert.ErrorIs(t, err, ErrDuplicate)

	members, err := db.ListMembers(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "alice", members[0].Username)
	assert.True(t, members[0].UserActive)

	m, err := db.GetMember(ctx, ws.ID, bob.ID)
	require.NoError(t, err)
	m.IsActive = false
	require.NoError(t, db.UpdateMember(ctx, m))

	n, err := db.CountActiveMembers(ctx, ws.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	byRole, err := db.CountMembersByRole(ctx, ws.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, byRole["Owner"])
	assert.EqualValues(t, 1, byRole["Member"])

	owners, err := db.ListMembersByRole(ctx, ws.ID, "Owner")
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, alice.ID, owners[0].UserID)

	require.NoError(t, db.SetMemberCount(ctx, ws.ID, 1))
	got, err := db.GetWorkspaceBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, got.MemberCount)

	mine, err := db.ListUserWorkspaces(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Owner", mine[0].Role)
	assert.Equal(t, "acme", mine[0].Slug)

	// inactive membership hides the workspace
	mine, err = db.ListUserWorkspaces(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)

	require.NoError(t, db.DeleteMember(ctx, ws.ID, bob.ID))
	assert.ErrorIs(t, db.DeleteMember(ctx, ws.ID, bob.ID), ErrNotFound)

	list, total, err := db.ListWorkspaces(ctx, WorkspaceQuery{Search: "ACM", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)
}

func TestSQLite_DeleteWorkspaceCascades(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	ws := seedWorkspace(t, db, "gone")
	require.NoError(t, db.CreateMember(ctx, &WorkspaceMember{WorkspaceID: ws.ID, UserID: alice.ID, Role: "Owner", IsActive: true}))
	require.NoError(t, db.CreateActivity(ctx, &Activity{OwnerID: alice.ID, WorkspaceID: &ws.ID, Type: "workspace_created", CreatedAt: time.Now().UTC()}))
	require.NoError(t, db.SaveEnvironment(ctx, &Environment{WorkspaceID: ws.ID, Kind: "postgres", Host: "db", Status: "unknown"}))

	require.NoError(t, db.DeleteWorkspace(ctx, ws.ID))

	_, err := db.GetWorkspaceBySlug(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetMember(ctx, ws.ID, alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetEnvironment(ctx, ws.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := db.CountActivities(ctx, ws.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, db.DeleteWorkspace(ctx, ws.ID), ErrNotFound)
}

func TestSQLite_ActivitiesKeyset(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 7; i++ {
		require.NoError(t, db.CreateActivity(ctx, &Activity{
			OwnerID:   alice.ID,
			Type:      "login_success",
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	first, err := db.ListActivities(ctx, ActivityQuery{OwnerID: alice.ID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.True(t, first[0].CreatedAt.After(first[1].CreatedAt))

	last := first[2]
	rest, err := db.ListActivities(ctx, ActivityQuery{OwnerID: alice.ID, Limit: 10, BeforeTime: &last.CreatedAt, BeforeID: last.ID})
	require.NoError(t, err)
	assert.Len(t, rest, 4)
	for _, a := range rest {
		assert.True(t, a.CreatedAt.Before(last.CreatedAt))
	}
}

func TestSQLite_EnvironmentUpsert(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()
	ws := seedWorkspace(t, db, "env")

	require.NoError(t, db.SaveEnvironment(ctx, &Environment{WorkspaceID: ws.ID, Kind: "postgres", Host: "a", Status: "unknown"}))
	first, err := db.GetEnvironment(ctx, ws.ID)
	require.NoError(t, err)

	require.NoError(t, db.SaveEnvironment(ctx, &Environment{WorkspaceID: ws.ID, Kind: "mysql", Host: "b", Status: "unknown"}))
	second, err := db.GetEnvironment(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "mysql", second.Kind)
	assert.Equal(t, "b", second.Host)
	assert.Equal(t, first.Revision+1, second.Revision)

	require.NoError(t, db.DeleteEnvironment(ctx, ws.ID))
	assert.ErrorIs(t, db.DeleteEnvironment(ctx, ws.ID), ErrNotFound)
}

func TestSQLite_RecordEnvironmentTest(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()
	ws := seedWorkspace(t, db, "envtest")

	require.NoError(t, db.SaveEnvironment(ctx, &Environment{WorkspaceID: ws.ID, Kind: "postgres", Host: "a", Status: "unknown"}))
	read, err := db.GetEnvironment(ctx, ws.ID)
	require.NoError(t, err)

	tested := time.Now()
	result := *read
	result.Host = "ignored"
	result.Status = "failed"
	result.LastError = "refused"
	result.LastTestedAt = &tested
	require.NoError(t, db.RecordEnvironmentTest(ctx, &result))

	stored, err := db.GetEnvironment(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", stored.Status)
	assert.Equal(t, "refused", stored.LastError)
	assert.Equal(t, "a", stored.Host, "only the outcome columns are written")
	assert.Equal(t, read.Revision, stored.Revision)

	// same outcome again is not stale
	require.NoError(t, db.RecordEnvironmentTest(ctx, &result))

	// settings saved since the read
	changed := *stored
	changed.Host = "b"
	require.NoError(t, db.SaveEnvironment(ctx, &changed))
	assert.ErrorIs(t, db.RecordEnvironmentTest(ctx, &result), ErrStale)

	// deleted since the read: no row is created
	require.NoError(t, db.DeleteEnvironment(ctx, ws.ID))
	assert.ErrorIs(t, db.RecordEnvironmentTest(ctx, &result), ErrStale)
	_, err = db.GetEnvironment(ctx, ws.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_TransactionRollback(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	err := db.Transaction(ctx, func(ctx context.Context) error {
		if err := db.CreateWorkspace(ctx, &Workspace{Name: "tx", Slug: "tx-ws"}); err != nil {
			return err
		}
		// nested transaction joins the outer one
		return db.Transaction(ctx, func(ctx context.Context) error {
			return assert.AnError
		})
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = db.GetWorkspaceBySlug(ctx, "tx-ws")
	assert.ErrorIs(t, err, ErrNotFound)
}
