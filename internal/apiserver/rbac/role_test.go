package rbac

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorkspaceRole(t *testing.T) {
	cases := map[string]WorkspaceRole{
		"Owner":   RoleOwner,
		"OWNER":   RoleOwner,
		" owner ": RoleOwner,
		"Author":  RoleAuthor,
		"AUTHOR":  RoleAuthor,
		"member":  RoleMember,
		"MeMbEr":  RoleMember,
	}
	for in, want := range cases {
		got, err := ParseWorkspaceRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"admin", "Admin", "", "guest"} {
		_, err := ParseWorkspaceRole(in)
		assert.ErrorIs(t, err, ErrUnknownRole, in)
	}
}

func TestWorkspaceRoleOrdering(t *testing.T) {
	assert.True(t, RoleOwner.AtLeast(RoleAuthor))
	assert.True(t, RoleAuthor.AtLeast(RoleMember))
	assert.True(t, RoleMember.AtLeast(RoleMember))
	assert.False(t, RoleMember.AtLeast(RoleAuthor))
}

func TestWorkspaceRoleJSON(t *testing.T) {
	var body struct {
		Role WorkspaceRole `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"AUTHOR"}`), &body))
	assert.Equal(t, RoleAuthor, body.Role)

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"Author"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"role":"admin"}`), &body))
}

func TestParsePlatformRole(t *testing.T) {
	r, err := ParsePlatformRole("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, PlatformAdmin, r)
	assert.Equal(t, "Admin", r.String())

	r, err = ParsePlatformRole("user")
	require.NoError(t, err)
	assert.Equal(t, PlatformUser, r)

	_, err = ParsePlatformRole("owner")
	assert.ErrorIs(t, err, ErrUnknownRole)
}
