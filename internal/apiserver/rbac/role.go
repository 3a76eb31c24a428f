package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole is returned when a role spelling maps to no canonical role
var ErrUnknownRole = errors.New("unknown role")

// WorkspaceRole is the canonical workspace-scoped role. Higher values carry more privilege.
type WorkspaceRole int

const (
	RoleNone WorkspaceRole = iota
	RoleMember
	RoleAuthor
	RoleOwner
)

var workspaceRoleNames = map[WorkspaceRole]string{
	RoleMember: "Member",
	RoleAuthor: "Author",
	RoleOwner:  "Owner",
}

// workspaceRoleSpellings maps every accepted input spelling to its canonical role
var workspaceRoleSpellings = map[string]WorkspaceRole{
	"member": RoleMember,
	"author": RoleAuthor,
	"owner":  RoleOwner,
}

func (r WorkspaceRole) String() string {
	if name, ok := workspaceRoleNames[r]; ok {
		return name
	}
	return ""
}

// AtLeast reports whether r is at least as privileged as other
func (r WorkspaceRole) AtLeast(other WorkspaceRole) bool {
	return r >= other
}

func (r WorkspaceRole) MarshalText() ([]byte, error) {
	if r == RoleNone {
		return nil, fmt.Errorf("%w: empty workspace role", ErrUnknownRole)
	}
	return []byte(r.String()), nil
}

func (r *WorkspaceRole) UnmarshalText(b []byte) error {
	role, err := ParseWorkspaceRole(string(b))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// ParseWorkspaceRole maps a role spelling, case-insensitively, to its canonical variant.
// "admin" is a platform role and never a workspace role.
func ParseWorkspaceRole(s string) (WorkspaceRole, error) {
	if role, ok := workspaceRoleSpellings[strings.ToLower(strings.TrimSpace(s))]; ok {
		return role, nil
	}
	return RoleNone, fmt.Errorf("%w: %q is not a workspace role", ErrUnknownRole, s)
}

// PlatformRole is the global role of a user
type PlatformRole int

const (
	PlatformNone PlatformRole = iota
	PlatformUser
	PlatformAdmin
)

const (
	PlatformAdminName = "Admin"
	PlatformUserName  = "User"
)

func (r PlatformRole) String() string {
	switch r {
	case PlatformAdmin:
		return PlatformAdminName
	case PlatformUser:
		return PlatformUserName
	default:
		return ""
	}
}

// ParsePlatformRole maps a role spelling, case-insensitively, to its canonical variant
func ParsePlatformRole(s string) (PlatformRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return PlatformAdmin, nil
	case "user":
		return PlatformUser, nil
	default:
		return PlatformNone, fmt.Errorf("%w: %q is not a platform role", ErrUnknownRole, s)
	}
}

// PlatformRoles lists the platform roles seeded at startup
func PlatformRoles() []PlatformRole {
	return []PlatformRole{PlatformAdmin, PlatformUser}
}
