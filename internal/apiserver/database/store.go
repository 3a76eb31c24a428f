package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// store implements Database on top of gorm; the dialect only matters when opening
type store struct {
	db *gorm.DB
}

func newStore(dialector gorm.Dialector, maxOpenConns int) (*store, error) {
	gormDB, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxOpenConns > 0 {
		sqlDB, err := gormDB.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}

	if err := gormDB.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &store{db: gormDB}, nil
}

// Close closes the database connection
func (s *store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps driver errors onto the package sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isDuplicateKey(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry")
}

func (s *store) CreateRole(ctx context.Context, role *Role) error {
	return translate(getDBFromContext(ctx, s.db).Create(role).Error)
}

func (s *store) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	var role Role
	if err := getDBFromContext(ctx, s.db).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, translate(err)
	}
	return &role, nil
}

func (s *store) ListRoles(ctx context.Context) ([]*Role, error) {
	var roles []*Role
	err := getDBFromContext(ctx, s.db).Order("name asc").Find(&roles).Error
	return roles, err
}

func (s *store) CreateUser(ctx context.Context, user *User) error {
	return translate(getDBFromContext(ctx, s.db).Omit(clause.Associations).Create(user).Error)
}

func (s *store) GetUserByID(ctx context.Context, id string) (*User, error) {
	var user User
	if err := getDBFromContext(ctx, s.db).Preload("Role").Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := getDBFromContext(ctx, s.db).Preload("Role").Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *store) UpdateUser(ctx context.Context, user *User) error {
	return translate(getDBFromContext(ctx, s.db).Omit(clause.Associations).Save(user).Error)
}

func (s *store) ListUsers(ctx context.Context) ([]*User, error) {
	var users []*User
	err := getDBFromContext(ctx, s.db).
		Preload("Role").
		Order("created_at desc").
		Find(&users).Error
	return users, err
}

func (s *store) CreateWorkspace(ctx context.Context, ws *Workspace) error {
	return translate(getDBFromContext(ctx, s.db).Create(ws).Error)
}

func (s *store) GetWorkspaceBySlug(ctx context.Context, slug string) (*Workspace, error) {
	var ws Workspace
	if err := getDBFromContext(ctx, s.db).Where("slug = ?", slug).First(&ws).Error; err != nil {
		return nil, translate(err)
	}
	return &ws, nil
}

func (s *store) UpdateWorkspace(ctx context.Context, ws *Workspace) error {
	return translate(getDBFromContext(ctx, s.db).Save(ws).Error)
}

// DeleteWorkspace removes dependents explicitly so the result does not rely on
// the dialect enforcing foreign keys
func (s *store) DeleteWorkspace(ctx context.Context, id string) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		tx := getDBFromContext(ctx, s.db)
		if err := tx.Where("workspace_id = ?", id).Delete(&Environment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&Activity{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&WorkspaceMember{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Workspace{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *store) ListWorkspaces(ctx context.Context, q WorkspaceQuery) ([]*Workspace, int64, error) {
	query := getDBFromContext(ctx, s.db).Model(&Workspace{})
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR slug LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if q.PageSize > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * q.PageSize).Limit(q.PageSize)
	}

	var list []*Workspace
	err := query.Order("created_at desc").Find(&list).Error
	return list, total, err
}

func (s *store) ListUserWorkspaces(ctx context.Context, userID string) ([]*UserWorkspace, error) {
	var list []*UserWorkspace
	err := getDBFromContext(ctx, s.db).
		Table("workspaces").
		Select("workspaces.*, workspace_members.role AS role").
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = ? AND workspace_members.is_active = ? AND workspaces.is_active = ?", userID, true, true).
		Order("workspaces.name asc").
		Scan(&list).Error
	return list, err
}

func (s *store) SetMemberCount(ctx context.Context, workspaceID string, count int) error {
	return getDBFromContext(ctx, s.db).
		Model(&Workspace{}).
		Where("id = ?", workspaceID).
		UpdateColumn("member_count", count).Error
}

func (s *store) CreateMember(ctx context.Context, m *WorkspaceMember) error {
	return translate(getDBFromContext(ctx, s.db).Omit(clause.Associations).Create(m).Error)
}

func (s *store) GetMember(ctx context.Context, workspaceID, userID string) (*WorkspaceMember, error) {
	var m WorkspaceMember
	err := getDBFromContext(ctx, s.db).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *store) UpdateMember(ctx context.Context, m *WorkspaceMember) error {
	return translate(getDBFromContext(ctx, s.db).Omit(clause.Associations).Save(m).Error)
}

func (s *store) DeleteMember(ctx context.Context, workspaceID, userID string) error {
	res := getDBFromContext(ctx, s.db).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Delete(&WorkspaceMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) ListMembers(ctx context.Context, workspaceID string) ([]*MemberDetail, error) {
	var list []*MemberDetail
	err := getDBFromContext(ctx, s.db).
		Table("workspace_members").
		Select("workspace_members.*, users.username, users.display_name, users.email, users.avatar_key, users.is_active AS user_active").
		Joins("JOIN users ON users.id = workspace_members.user_id").
		Where("workspace_members.workspace_id = ?", workspaceID).
		Order("workspace_members.joined_at asc").
		Scan(&list).Error
	return list, err
}

func (s *store) ListMembersByRole(ctx context.Context, workspaceID, role string) ([]*WorkspaceMember, error) {
	var list []*WorkspaceMember
	err := getDBFromContext(ctx, s.db).
		Where("workspace_id = ? AND role = ?", workspaceID, role).
		Find(&list).Error
	return list, err
}

func (s *store) CountActiveMembers(ctx context.Context, workspaceID string) (int64, error) {
	var count int64
	err := getDBFromContext(ctx, s.db).
		Model(&WorkspaceMember{}).
		Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Count(&count).Error
	return count, err
}

func (s *store) CountMembersByRole(ctx context.Context, workspaceID string) (map[string]int64, error) {
	var rows []struct {
		Role  string
		Count int64
	}
	err := getDBFromContext(ctx, s.db).
		Model(&WorkspaceMember{}).
		Select("role, COUNT(*) AS count").
		Where("workspace_id = ?", workspaceID).
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Role] = r.Count
	}
	return out, nil
}

func (s *store) CreateActivity(ctx context.Context, a *Activity) error {
	return getDBFromContext(ctx, s.db).Omit(clause.Associations).Create(a).Error
}

func (s *store) ListActivities(ctx context.Context, q ActivityQuery) ([]*Activity, error) {
	query := getDBFromContext(ctx, s.db).Model(&Activity{})
	if q.OwnerID != "" {
		query = query.Where("owner_id = ?", q.OwnerID)
	}
	if q.WorkspaceID != "" {
		query = query.Where("workspace_id = ?", q.WorkspaceID)
	}
	if q.BeforeTime != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", *q.BeforeTime, *q.BeforeTime, q.BeforeID)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var list []*Activity
	err := query.Order("created_at desc").Order("id desc").Find(&list).Error
	return list, err
}

func (s *store) CountActivities(ctx context.Context, workspaceID string) (int64, error) {
	var count int64
	err := getDBFromContext(ctx, s.db).
		Model(&Activity{}).
		Where("workspace_id = ?", workspaceID).
		Count(&count).Error
	return count, err
}

func (s *store) GetEnvironment(ctx context.Context, workspaceID string) (*Environment, error) {
	var env Environment
	if err := getDBFromContext(ctx, s.db).Where("workspace_id = ?", workspaceID).First(&env).Error; err != nil {
		return nil, translate(err)
	}
	return &env, nil
}

// SaveEnvironment upserts on workspace_id
func (s *store) SaveEnvironment(ctx context.Context, env *Environment) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		tx := getDBFromContext(ctx, s.db)
		existing, err := s.GetEnvironment(ctx, env.WorkspaceID)
		switch {
		case errors.Is(err, ErrNotFound):
			return translate(tx.Omit(clause.Associations).Create(env).Error)
		case err != nil:
			return err
		}
		env.ID = existing.ID
		env.CreatedAt = existing.CreatedAt
		env.Revision = existing.Revision + 1
		return translate(tx.Omit(clause.Associations).Save(env).Error)
	})
}

func (s *store) DeleteEnvironment(ctx context.Context, workspaceID string) error {
	res := getDBFromContext(ctx, s.db).Where("workspace_id = ?", workspaceID).Delete(&Environment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) RecordEnvironmentTest(ctx context.Context, env *Environment) error {
	db := getDBFromContext(ctx, s.db)
	guard := db.Model(&Environment{}).Where("id = ? AND revision = ?", env.ID, env.Revision)
	res := guard.UpdateColumns(map[string]any{
		"status":         env.Status,
		"last_tested_at": env.LastTestedAt,
		"last_error":     env.LastError,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// MySQL reports 0 rows when the values did not change
	var count int64
	if err := db.Model(&Environment{}).Where("id = ? AND revision = ?", env.ID, env.Revision).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrStale
	}
	return nil
}

func (s *store) ListEnvironments(ctx context.Context) ([]*Environment, error) {
	var envs []*Environment
	err := getDBFromContext(ctx, s.db).Order("created_at ASC").Find(&envs).Error
	return envs, err
}
