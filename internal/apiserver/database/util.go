package database

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/amoylab/wshub/internal/apiserver/rbac"
	"github.com/amoylab/wshub/internal/common/config"
)

// InitPlatformRoles creates the platform roles if they don't exist
func InitPlatformRoles(ctx context.Context, db Database) error {
	for _, r := range rbac.PlatformRoles() {
		_, err := db.GetRoleByName(ctx, r.String())
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := db.CreateRole(ctx, &Role{Name: r.String(), Description: r.String() + " role"}); err != nil && !errors.Is(err, ErrDuplicate) {
			return err
		}
	}
	return nil
}

// InitSuperAdmin creates the configured platform admin on first start. An
// existing account keeps its password.
func InitSuperAdmin(ctx context.Context, db Database, cfg config.SuperAdminConfig) (*User, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, nil
	}

	if existing, err := db.GetUserByUsername(ctx, cfg.Username); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	role, err := db.GetRoleByName(ctx, rbac.PlatformAdminName)
	if err != nil {
		return nil, fmt.Errorf("admin role missing: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:    cfg.Username,
		DisplayName: cfg.Username,
		Password:    string(hashed),
		RoleID:      &role.ID,
		IsActive:    true,
	}
	if err := db.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
