package membership

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/apiserver/activity"
	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/apiserver/rbac"
	"github.com/amoylab/wshub/internal/common/cnst"
	"github.com/amoylab/wshub/pkg/trace"
)

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrMemberNotFound    = errors.New("member not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrAlreadyMember     = fmt.Errorf("%w: user is already a member", rbac.ErrConflict)
	ErrSlugTaken         = fmt.Errorf("%w: slug already in use", rbac.ErrConflict)
	ErrInvalidSlug       = errors.New("slug must be 3-63 lowercase letters, digits or single hyphens")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidateSlug checks the workspace slug format
func ValidateSlug(slug string) error {
	if len(slug) < 3 || len(slug) > 63 || !slugPattern.MatchString(slug) {
		return ErrInvalidSlug
	}
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a slug candidate from a workspace name
func Slugify(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if len(s) > 63 {
		s = strings.TrimRight(s[:63], "-")
	}
	return s
}

// OpObserver is notified of every membership mutation
type OpObserver interface {
	MembershipOp(operation string, err error)
}

// Service applies membership mutations. Every mutation runs in one transaction
// that ends by recomputing the workspace member count.
type Service struct {
	db       database.Database
	recorder activity.Recorder
	observer OpObserver
	logger   *zap.Logger
	tracer   *trace.Builder
}

// NewService creates a membership service; recorder and observer may be nil
func NewService(db database.Database, recorder activity.Recorder, observer OpObserver, logger *zap.Logger) *Service {
	if recorder == nil {
		recorder = activity.Nop{}
	}
	return &Service{
		db:       db,
		recorder: recorder,
		observer: observer,
		logger:   logger.Named("membership"),
		tracer:   trace.Tracer(cnst.TraceMembership),
	}
}

// ReplaceOwnerResult holds both memberships touched by an ownership transfer
type ReplaceOwnerResult struct {
	Previous *database.WorkspaceMember `json:"previousOwner"`
	Current  *database.WorkspaceMember `json:"newOwner"`
}

// Actor loads the requester's membership in ws and builds the authorization actor
func (s *Service) Actor(ctx context.Context, userID string, platform rbac.PlatformRole, ws *database.Workspace, adminPath bool) (rbac.Actor, error) {
	actor := rbac.Actor{UserID: userID, Platform: platform, AdminPath: adminPath}
	m, err := s.db.GetMember(ctx, ws.ID, userID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return actor, nil
	case err != nil:
		return actor, err
	}
	view, err := toView(m)
	if err != nil {
		return actor, err
	}
	actor.Membership = &view
	return actor, nil
}

// Workspace resolves a workspace by slug
func (s *Service) Workspace(ctx context.Context, slug string) (*database.Workspace, error) {
	ws, err := s.db.GetWorkspaceBySlug(ctx, slug)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrWorkspaceNotFound
	}
	return ws, err
}

// CreateWorkspace creates a workspace and, when ownerID is set, its owner membership
func (s *Service) CreateWorkspace(ctx context.Context, actorID string, ws *database.Workspace, ownerID string) (*database.Workspace, error) {
	if ws.Slug == "" {
		ws.Slug = Slugify(ws.Name)
	}
	if err := ValidateSlug(ws.Slug); err != nil {
		return nil, err
	}
	ws.IsActive = true
	ws.CreatedBy = &actorID
	ws.UpdatedBy = &actorID

	err := s.run(ctx, "create_workspace", func(ctx context.Context) error {
		if err := s.db.CreateWorkspace(ctx, ws); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return ErrSlugTaken
			}
			return err
		}
		if ownerID != "" {
			if _, err := s.loadUser(ctx, ownerID); err != nil {
				return err
			}
			if err := s.db.CreateMember(ctx, &database.WorkspaceMember{
				WorkspaceID: ws.ID,
				UserID:      ownerID,
				Role:        rbac.RoleOwner.String(),
				IsActive:    true,
			}); err != nil {
				return err
			}
		}
		return s.recomputeMemberCount(ctx, ws)
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, actorID, &ws.ID, activity.TypeWorkspaceCreated,
		fmt.Sprintf("Workspace %s created", ws.Name), map[string]any{"slug": ws.Slug, "ownerId": ownerID})
	return ws, nil
}

// ListMembers lists memberships of ws
func (s *Service) ListMembers(ctx context.Context, actor rbac.Actor, ws *database.Workspace) ([]*database.MemberDetail, error) {
	if err := rbac.CanView(actor); err != nil {
		return nil, err
	}
	return s.db.ListMembers(ctx, ws.ID)
}

// AddMember creates an active membership. Owner can be granted on the admin
// path only, and only while the workspace has no owner.
func (s *Service) AddMember(ctx context.Context, actor rbac.Actor, ws *database.Workspace, userID string, role rbac.WorkspaceRole) (*database.WorkspaceMember, error) {
	if err := rbac.CanAddMember(actor, role); err != nil {
		return nil, err
	}

	var member *database.WorkspaceMember
	err := s.run(ctx, "add_member", func(ctx context.Context) error {
		if _, err := s.loadUser(ctx, userID); err != nil {
			return err
		}
		if _, err := s.db.GetMember(ctx, ws.ID, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, database.ErrNotFound) {
			return err
		}

		if role == rbac.RoleOwner {
			owners, err := s.owners(ctx, ws.ID)
			if err != nil {
				return err
			}
			if err := rbac.CheckAssignOwner(userID, owners); err != nil {
				return err
			}
		}

		member = &database.WorkspaceMember{
			WorkspaceID: ws.ID,
			UserID:      userID,
			Role:        role.String(),
			IsActive:    true,
		}
		if err := s.db.CreateMember(ctx, member); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return ErrAlreadyMember
			}
			return err
		}
		return s.recomputeMemberCount(ctx, ws)
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, actor.UserID, &ws.ID, activity.TypeMemberAdded,
		fmt.Sprintf("Member added as %s", role), map[string]any{"userId": userID, "role": role.String()})
	return member, nil
}

// UpdateRole changes the role of a membership
func (s *Service) UpdateRole(ctx context.Context, actor rbac.Actor, ws *database.Workspace, userID string, role rbac.WorkspaceRole) (*database.WorkspaceMember, error) {
	if err := rbac.CanUpdateRole(actor); err != nil {
		return nil, err
	}
	if role == rbac.RoleNone {
		return nil, rbac.ErrUnknownRole
	}

	var (
		member   *database.WorkspaceMember
		previous rbac.WorkspaceRole
	)
	err := s.run(ctx, "update_role", func(ctx context.Context) error {
		m, view, err := s.loadMember(ctx, ws.ID, userID)
		if err != nil {
			return err
		}
		previous = view.Role
		if previous == role {
			member = m
			return s.recomputeMemberCount(ctx, ws)
		}

		owners, err := s.owners(ctx, ws.ID)
		if err != nil {
			return err
		}
		if role == rbac.RoleOwner {
			if err := rbac.CheckAssignOwner(userID, owners); err != nil {
				return err
			}
		} else if err := rbac.CheckLeaveOwner(view, owners); err != nil {
			return err
		}

		m.Role = role.String()
		if err := s.db.UpdateMember(ctx, m); err != nil {
			return err
		}
		member = m
		return s.recomputeMemberCount(ctx, ws)
	})
	if err != nil {
		return nil, err
	}

	if previous != role {
		s.recorder.Record(ctx, actor.UserID, &ws.ID, activity.TypeMemberRoleChanged,
			fmt.Sprintf("Member role changed from %s to %s", previous, role),
			map[string]any{"userId": userID, "from": previous.String(), "to": role.String()})
	}
	return member, nil
}

// SetActive activates or deactivates a membership
func (s *Service) SetActive(ctx context.Context, actor rbac.Actor, ws *database.Workspace, userID string, active bool) (*database.WorkspaceMember, error) {
	if err := rbac.CanChangeStatus(actor); err != nil {
		return nil, err
	}

	var (
		member  *database.WorkspaceMember
		changed bool
	)
	err := s.run(ctx, "set_active", func(ctx context.Context) error {
		m, view, err := s.loadMember(ctx, ws.ID, userID)
		if err != nil {
			return err
		}
		changed = view.Active != active
		if changed {
			owners, err := s.owners(ctx, ws.ID)
			if err != nil {
				return err
			}
			if active && view.Role == rbac.RoleOwner {
				err = rbac.CheckAssignOwner(userID, activeOnly(owners))
			} else if !active {
				err = rbac.CheckLeaveOwner(view, owners)
			}
			if err != nil {
				return err
			}
			m.IsActive = active
			if err := s.db.UpdateMember(ctx, m); err != nil {
				return err
			}
		}
		member = m
		return s.recomputeMemberCount(ctx, ws)
	})
	if err != nil {
		return nil, err
	}

	if !changed {
		return member, nil
	}
	status := "deactivated"
	if active {
		status = "activated"
	}
	s.recorder.Record(ctx, actor.UserID, &ws.ID, activity.TypeMemberStatusChanged,
		"Member "+status, map[string]any{"userId": userID, "active": active})
	return member, nil
}

// RemoveMember deletes a membership
func (s *Service) RemoveMember(ctx context.Context, actor rbac.Actor, ws *database.Workspace, userID string) error {
	if err := rbac.CanRemoveMember(actor); err != nil {
		return err
	}

	err := s.run(ctx, "remove_member", func(ctx context.Context) error {
		_, view, err := s.loadMember(ctx, ws.ID, userID)
		if err != nil {
			return err
		}
		owners, err := s.owners(ctx, ws.ID)
		if err != nil {
			return err
		}
		if err := rbac.CheckLeaveOwner(view, owners); err != nil {
			return err
		}
		if err := s.db.DeleteMember(ctx, ws.ID, userID); err != nil {
			return err
		}
		return s.recomputeMemberCount(ctx, ws)
	})
	if err != nil {
		return err
	}

	s.recorder.Record(ctx, actor.UserID, &ws.ID, activity.TypeMemberRemoved,
		"Member removed", map[string]any{"userId": userID})
	return nil
}

// ReplaceOwner demotes the current owner to Author and promotes newOwnerID,
// who must already be an active member, in one transaction
func (s *Service) ReplaceOwner(ctx context.Context, actor rbac.Actor, ws *database.Workspace, newOwnerID string) (*ReplaceOwnerResult, error) {
	if err := rbac.CanReplaceOwner(actor); err != nil {
		return nil, err
	}

	res := &ReplaceOwnerResult{}
	err := s.run(ctx, "replace_owner", func(ctx context.Context) error {
		owners, err := s.db.ListMembersByRole(ctx, ws.ID, rbac.RoleOwner.String())
		if err != nil {
			return err
		}
		var current *database.WorkspaceMember
		for _, o := range owners {
			if o.IsActive {
				current = o
				break
			}
		}

		candidate, err := s.db.GetMember(ctx, ws.ID, newOwnerID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return err
		}

		var currentView, candidateView *rbac.MemberView
		if current != nil {
			v := rbac.MemberView{UserID: current.UserID, Role: rbac.RoleOwner, Active: true}
			currentView = &v
		}
		if candidate != nil {
			v, err := toView(candidate)
			if err != nil {
				return err
			}
			candidateView = &v
		}
		if err := rbac.CheckReplaceOwner(currentView, candidateView); err != nil {
			return err
		}

		current.Role = rbac.RoleAuthor.String()
		if err := s.db.UpdateMember(ctx, current); err != nil {
			return err
		}
		candidate.Role = rbac.RoleOwner.String()
		if err := s.db.UpdateMember(ctx, candidate); err != nil {
			return err
		}
		res.Previous, res.Current = current, candidate
		return s.recomputeMemberCount(ctx, ws)
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, actor.UserID, &ws.ID, activity.TypeOwnerReplaced,
		"Workspace owner replaced",
		map[string]any{"previousOwnerId": res.Previous.UserID, "newOwnerId": res.Current.UserID})
	return res, nil
}

// recomputeMemberCount re-derives member_count from active memberships and persists it
func (s *Service) recomputeMemberCount(ctx context.Context, ws *database.Workspace) error {
	n, err := s.db.CountActiveMembers(ctx, ws.ID)
	if err != nil {
		return err
	}
	if err := s.db.SetMemberCount(ctx, ws.ID, int(n)); err != nil {
		return err
	}
	ws.MemberCount = int(n)
	return nil
}

// run wraps a mutation in a span and a transaction, and reports its outcome
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	scope := s.tracer.Start(ctx, "membership."+op).WithAttrs(attribute.String(cnst.AttrOperation, op))
	err := s.db.Transaction(scope.Ctx, fn)
	scope.Finish(err)

	if s.observer != nil {
		s.observer.MembershipOp(op, err)
	}
	if err != nil {
		s.logger.Debug("membership operation rejected", zap.String("operation", op), zap.Error(err))
	}
	return err
}

func (s *Service) loadUser(ctx context.Context, userID string) (*database.User, error) {
	u, err := s.db.GetUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (s *Service) loadMember(ctx context.Context, workspaceID, userID string) (*database.WorkspaceMember, rbac.MemberView, error) {
	m, err := s.db.GetMember(ctx, workspaceID, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, rbac.MemberView{}, ErrMemberNotFound
	}
	if err != nil {
		return nil, rbac.MemberView{}, err
	}
	view, err := toView(m)
	return m, view, err
}

func (s *Service) owners(ctx context.Context, workspaceID string) ([]rbac.MemberView, error) {
	rows, err := s.db.ListMembersByRole(ctx, workspaceID, rbac.RoleOwner.String())
	if err != nil {
		return nil, err
	}
	views := make([]rbac.MemberView, 0, len(rows))
	for _, r := range rows {
		views = append(views, rbac.MemberView{UserID: r.UserID, Role: rbac.RoleOwner, Active: r.IsActive})
	}
	return views, nil
}

func activeOnly(views []rbac.MemberView) []rbac.MemberView {
	out := views[:0:0]
	for _, v := range views {
		if v.Active {
			out = append(out, v)
		}
	}
	return out
}

// toView canonicalizes a stored membership; unknown stored roles are an error
func toView(m *database.WorkspaceMember) (rbac.MemberView, error) {
	role, err := rbac.ParseWorkspaceRole(m.Role)
	if err != nil {
		return rbac.MemberView{}, fmt.Errorf("membership %s: %w", m.ID, err)
	}
	return rbac.MemberView{UserID: m.UserID, Role: role, Active: m.IsActive}, nil
}
