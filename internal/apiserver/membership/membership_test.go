package membership

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/apiserver/activity"
	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/apiserver/rbac"
	"github.com/amoylab/wshub/internal/common/config"
)

type recorded struct {
	typ         activity.Type
	workspaceID *string
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recorded
}

func (f *fakeRecorder) Record(_ context.Context, _ string, workspaceID *string, typ activity.Type, _ string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, recorded{typ: typ, workspaceID: workspaceID})
}

func (f *fakeRecorder) types() []activity.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []activity.Type
	for _, e := range f.entries {
		out = append(out, e.typ)
	}
	return out
}

type fixture struct {
	db    database.Database
	svc   *Service
	rec   *fakeRecorder
	ws    *database.Workspace
	owner *database.User
	users map[string]*database.User
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rec := &fakeRecorder{}
	f := &fixture{db: db, rec: rec, svc: NewService(db, rec, nil, zap.NewNop()), users: map[string]*database.User{}}

	ctx := context.Background()
	for _, n := range append([]string{"owner"}, names...) {
		u := &database.User{Username: n, Password: "x", IsActive: true}
		require.NoError(t, db.CreateUser(ctx, u))
		f.users[n] = u
	}
	f.owner = f.users["owner"]

	ws, err := f.svc.CreateWorkspace(ctx, f.owner.ID, &database.Workspace{Name: "Acme Corp"}, f.owner.ID)
	require.NoError(t, err)
	f.ws = ws
	return f
}

func (f *fixture) actor(t *testing.T, name string) rbac.Actor {
	t.Helper()
	a, err := f.svc.Actor(context.Background(), f.users[name].ID, rbac.PlatformUser, f.ws, false)
	require.NoError(t, err)
	return a
}

func (f *fixture) admin() rbac.Actor {
	return rbac.Actor{UserID: "platform-admin", Platform: rbac.PlatformAdmin, AdminPath: true}
}

func (f *fixture) role(t *testing.T, name string) string {
	t.Helper()
	m, err := f.db.GetMember(context.Background(), f.ws.ID, f.users[name].ID)
	require.NoError(t, err)
	return m.Role
}

// assertCount checks member_count against the active rows
func (f *fixture) assertCount(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	ws, err := f.db.GetWorkspaceBySlug(ctx, f.ws.Slug)
	require.NoError(t, err)
	members, err := f.db.ListMembers(ctx, f.ws.ID)
	require.NoError(t, err)
	active := 0
	for _, m := range members {
		if m.IsActive {
			active++
		}
	}
	assert.Equal(t, active, ws.MemberCount)
}

func TestCreateWorkspace(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "acme-corp", f.ws.Slug)
	assert.Equal(t, 1, f.ws.MemberCount)
	assert.Equal(t, "Owner", f.role(t, "owner"))
	f.assertCount(t)

	_, err := f.svc.CreateWorkspace(context.Background(), f.owner.ID, &database.Workspace{Name: "Other", Slug: "acme-corp"}, "")
	assert.ErrorIs(t, err, ErrSlugTaken)
	assert.ErrorIs(t, err, rbac.ErrConflict)

	_, err = f.svc.CreateWorkspace(context.Background(), f.owner.ID, &database.Workspace{Name: "x", Slug: "Bad_Slug"}, "")
	assert.ErrorIs(t, err, ErrInvalidSlug)

	_, err = f.svc.CreateWorkspace(context.Background(), f.owner.ID, &database.Workspace{Name: "Ghost", Slug: "ghost"}, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.svc.Workspace(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)
}

func TestSlugHelpers(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("  Hello, World!  "))
	assert.NoError(t, ValidateSlug("abc"))
	assert.NoError(t, ValidateSlug("a-b-c"))
	for _, bad := range []string{"ab", "-abc", "abc-", "a--b", "ABC", "a_b"} {
		assert.ErrorIs(t, ValidateSlug(bad), ErrInvalidSlug, bad)
	}
}

func TestAddMember(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()

	_, err := f.svc.AddMember(ctx, f.actor(t, "owner"), f.ws, f.users["alice"].ID, rbac.RoleAuthor)
	require.NoError(t, err)
	f.assertCount(t)

	// authors may add members but not owners
	author := f.actor(t, "alice")
	_, err = f.svc.AddMember(ctx, author, f.ws, f.users["bob"].ID, rbac.RoleMember)
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, author, f.ws, f.users["carol"].ID, rbac.RoleOwner)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	// plain members may not add anyone
	_, err = f.svc.AddMember(ctx, f.actor(t, "bob"), f.ws, f.users["carol"].ID, rbac.RoleMember)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	// duplicates are rejected without a second row
	_, err = f.svc.AddMember(ctx, author, f.ws, f.users["bob"].ID, rbac.RoleAuthor)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	members, err := f.svc.ListMembers(ctx, author, f.ws)
	require.NoError(t, err)
	assert.Len(t, members, 3)

	_, err = f.svc.AddMember(ctx, author, f.ws, "no-such-user", rbac.RoleMember)
	assert.ErrorIs(t, err, ErrUserNotFound)

	f.assertCount(t)
	assert.Equal(t, []activity.Type{activity.TypeWorkspaceCreated, activity.TypeMemberAdded, activity.TypeMemberAdded}, f.rec.types())
}

func TestAdminAddOwner(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()

	_, err := f.svc.AddMember(ctx, f.admin(), f.ws, f.users["alice"].ID, rbac.RoleOwner)
	assert.ErrorIs(t, err, rbac.ErrConflict)

	ws, err := f.svc.CreateWorkspace(ctx, "platform-admin", &database.Workspace{Name: "Ownerless", Slug: "ownerless"}, "")
	require.NoError(t, err)
	assert.Equal(t, 0, ws.MemberCount)

	_, err = f.svc.AddMember(ctx, f.admin(), ws, f.users["alice"].ID, rbac.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, 1, ws.MemberCount)

	// a platform admin without membership has no workspace path rights
	plain := rbac.Actor{UserID: "platform-admin", Platform: rbac.PlatformAdmin}
	_, err = f.svc.AddMember(ctx, plain, f.ws, f.users["alice"].ID, rbac.RoleMember)
	assert.ErrorIs(t, err, rbac.ErrForbidden)
}

func TestUpdateRole(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()
	owner := f.actor(t, "owner")

	_, err := f.svc.AddMember(ctx, owner, f.ws, f.users["alice"].ID, rbac.RoleMember)
	require.NoError(t, err)

	m, err := f.svc.UpdateRole(ctx, owner, f.ws, f.users["alice"].ID, rbac.RoleAuthor)
	require.NoError(t, err)
	assert.Equal(t, "Author", m.Role)

	// only owners may change roles
	_, err = f.svc.UpdateRole(ctx, f.actor(t, "alice"), f.ws, f.users["alice"].ID, rbac.RoleMember)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	// a second owner only through replace-owner
	_, err = f.svc.UpdateRole(ctx, owner, f.ws, f.users["alice"].ID, rbac.RoleOwner)
	assert.ErrorIs(t, err, rbac.ErrConflict)

	// the sole owner cannot be demoted
	_, err = f.svc.UpdateRole(ctx, owner, f.ws, f.owner.ID, rbac.RoleAuthor)
	assert.ErrorIs(t, err, rbac.ErrConflict)
	assert.Equal(t, "Owner", f.role(t, "owner"))

	_, err = f.svc.UpdateRole(ctx, owner, f.ws, "nobody", rbac.RoleAuthor)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestSetActiveAndRemove(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()
	owner := f.actor(t, "owner")

	_, err := f.svc.AddMember(ctx, owner, f.ws, f.users["alice"].ID, rbac.RoleMember)
	require.NoError(t, err)

	m, err := f.svc.SetActive(ctx, owner, f.ws, f.users["alice"].ID, false)
	require.NoError(t, err)
	assert.False(t, m.IsActive)
	assert.Equal(t, 1, f.ws.MemberCount)
	f.assertCount(t)

	_, err = f.svc.SetActive(ctx, owner, f.ws, f.users["alice"].ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, f.ws.MemberCount)

	// the sole owner can neither leave by deactivation nor by removal
	_, err = f.svc.SetActive(ctx, owner, f.ws, f.owner.ID, false)
	assert.ErrorIs(t, err, rbac.ErrConflict)
	assert.ErrorIs(t, f.svc.RemoveMember(ctx, owner, f.ws, f.owner.ID), rbac.ErrConflict)

	require.NoError(t, f.svc.RemoveMember(ctx, owner, f.ws, f.users["alice"].ID))
	assert.ErrorIs(t, f.svc.RemoveMember(ctx, owner, f.ws, f.users["alice"].ID), ErrMemberNotFound)
	f.assertCount(t)
	assert.Equal(t, 1, f.ws.MemberCount)
}

func TestReplaceOwner(t *testing.T) {
	f := newFixture(t, "bob")
	ctx := context.Background()
	owner := f.actor(t, "owner")

	_, err := f.svc.AddMember(ctx, owner, f.ws, f.users["bob"].ID, rbac.RoleAuthor)
	require.NoError(t, err)

	res, err := f.svc.ReplaceOwner(ctx, owner, f.ws, f.users["bob"].ID)
	require.NoError(t, err)
	assert.Equal(t, f.owner.ID, res.Previous.UserID)
	assert.Equal(t, f.users["bob"].ID, res.Current.UserID)

	assert.Equal(t, "Author", f.role(t, "owner"))
	assert.Equal(t, "Owner", f.role(t, "bob"))

	owners, err := f.db.ListMembersByRole(ctx, f.ws.ID, "Owner")
	require.NoError(t, err)
	assert.Len(t, owners, 1)
	f.assertCount(t)

	// the demoted owner has lost owner-only rights
	_, err = f.svc.ReplaceOwner(ctx, f.actor(t, "owner"), f.ws, f.owner.ID)
	assert.ErrorIs(t, err, rbac.ErrForbidden)
}

func TestReplaceOwnerConflicts(t *testing.T) {
	f := newFixture(t, "bob", "outsider")
	ctx := context.Background()
	owner := f.actor(t, "owner")

	_, err := f.svc.AddMember(ctx, owner, f.ws, f.users["bob"].ID, rbac.RoleAuthor)
	require.NoError(t, err)
	_, err = f.svc.SetActive(ctx, owner, f.ws, f.users["bob"].ID, false)
	require.NoError(t, err)

	before, err := f.db.ListMembers(ctx, f.ws.ID)
	require.NoError(t, err)

	for _, target := range []string{f.users["outsider"].ID, f.users["bob"].ID, f.owner.ID} {
		_, err = f.svc.ReplaceOwner(ctx, owner, f.ws, target)
		assert.ErrorIs(t, err, rbac.ErrConflict)
	}

	after, err := f.db.ListMembers(ctx, f.ws.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Role, after[i].Role)
		assert.Equal(t, before[i].IsActive, after[i].IsActive)
	}
}

func TestReplaceOwnerWithoutOwner(t *testing.T) {
	f := newFixture(t, "bob")
	ctx := context.Background()

	ws, err := f.svc.CreateWorkspace(ctx, "platform-admin", &database.Workspace{Name: "Empty", Slug: "empty"}, "")
	require.NoError(t, err)
	_, err = f.svc.AddMember(ctx, f.admin(), ws, f.users["bob"].ID, rbac.RoleMember)
	require.NoError(t, err)

	_, err = f.svc.ReplaceOwner(ctx, f.admin(), ws, f.users["bob"].ID)
	assert.ErrorIs(t, err, rbac.ErrConflict)
}

func TestMemberCountInvariant(t *testing.T) {
	names := []string{"u1", "u2", "u3", "u4", "u5"}
	f := newFixture(t, names...)
	ctx := context.Background()
	owner := f.actor(t, "owner")
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 60; i++ {
		id := f.users[names[rnd.Intn(len(names))]].ID
		switch rnd.Intn(4) {
		case 0:
			_, _ = f.svc.AddMember(ctx, owner, f.ws, id, rbac.RoleMember)
		case 1:
			_ = f.svc.RemoveMember(ctx, owner, f.ws, id)
		case 2:
			_, _ = f.svc.SetActive(ctx, owner, f.ws, id, false)
		case 3:
			_, _ = f.svc.SetActive(ctx, owner, f.ws, id, true)
		}
		f.assertCount(t)
	}
}
