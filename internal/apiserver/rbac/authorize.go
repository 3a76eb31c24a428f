package rbac

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden means the actor may not perform the operation
	ErrForbidden = errors.New("forbidden")
	// ErrConflict means the operation would break a membership invariant
	ErrConflict = errors.New("conflict")
)

// MemberView is the part of a membership that authorization looks at
type MemberView struct {
	UserID string
	Role   WorkspaceRole
	Active bool
}

// Actor is the requester of a workspace operation.
//
// Admin-scoped endpoints set AdminPath and are authorized by Platform only.
// Workspace-scoped endpoints leave AdminPath unset and are authorized by
// Membership only, whatever the platform role is.
type Actor struct {
	UserID     string
	Platform   PlatformRole
	Membership *MemberView
	AdminPath  bool
}

// hasRole reports whether the actor holds an active membership of at least min
func (a Actor) hasRole(min WorkspaceRole) bool {
	return a.Membership != nil && a.Membership.Active && a.Membership.Role.AtLeast(min)
}

func (a Actor) require(min WorkspaceRole, op string) error {
	if a.AdminPath {
		if a.Platform == PlatformAdmin {
			return nil
		}
		return fmt.Errorf("%w: %s requires platform admin", ErrForbidden, op)
	}
	if a.hasRole(min) {
		return nil
	}
	return fmt.Errorf("%w: %s requires workspace role %s", ErrForbidden, op, min)
}

// CanView allows any active member, or a platform admin on the admin path
func CanView(a Actor) error {
	return a.require(RoleMember, "view workspace")
}

// CanAddMember allows owners and authors. Outside the admin path the new role
// is limited to Author or Member.
func CanAddMember(a Actor, role WorkspaceRole) error {
	if err := a.require(RoleAuthor, "add member"); err != nil {
		return err
	}
	if role == RoleNone {
		return fmt.Errorf("%w: missing role", ErrUnknownRole)
	}
	if role == RoleOwner && !a.AdminPath {
		return fmt.Errorf("%w: owner is only granted through replace-owner", ErrForbidden)
	}
	return nil
}

// CanUpdateRole allows owners
func CanUpdateRole(a Actor) error {
	return a.require(RoleOwner, "update member role")
}

// CanChangeStatus allows owners
func CanChangeStatus(a Actor) error {
	return a.require(RoleOwner, "change member status")
}

// CanRemoveMember allows owners
func CanRemoveMember(a Actor) error {
	return a.require(RoleOwner, "remove member")
}

// CanReplaceOwner allows owners
func CanReplaceOwner(a Actor) error {
	return a.require(RoleOwner, "replace owner")
}

// CanEditWorkspace allows owners
func CanEditWorkspace(a Actor) error {
	return a.require(RoleOwner, "edit workspace")
}

// CanManageEnvironment allows owners and authors
func CanManageEnvironment(a Actor) error {
	return a.require(RoleAuthor, "manage environment")
}

// CheckAssignOwner rejects granting Owner while another membership holds it
func CheckAssignOwner(target string, owners []MemberView) error {
	for _, o := range owners {
		if o.UserID != target {
			return fmt.Errorf("%w: workspace already has an owner, use replace-owner", ErrConflict)
		}
	}
	return nil
}

// CheckLeaveOwner guards every transition that takes target out of the active
// Owner set: demotion, deactivation and removal
func CheckLeaveOwner(target MemberView, owners []MemberView) error {
	if target.Role != RoleOwner || !target.Active {
		return nil
	}
	for _, o := range owners {
		if o.UserID != target.UserID && o.Active {
			return nil
		}
	}
	return fmt.Errorf("%w: workspace would be left without an owner", ErrConflict)
}

// CheckReplaceOwner validates an ownership transfer from current to candidate.
// current is nil when the workspace has no owner; candidate is nil when the
// target user holds no membership.
func CheckReplaceOwner(current, candidate *MemberView) error {
	if candidate == nil || !candidate.Active {
		return fmt.Errorf("%w: new owner must be an active member", ErrConflict)
	}
	if current == nil {
		return fmt.Errorf("%w: workspace has no owner to replace", ErrConflict)
	}
	if current.UserID == candidate.UserID {
		return fmt.Errorf("%w: user is already the owner", ErrConflict)
	}
	return nil
}
