package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a platform-wide role such as Admin or User
type Role struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name" gorm:"type:varchar(50);uniqueIndex;not null"`
	Description string    `json:"description" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (r *Role) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// User is a platform account. Users are deactivated, never deleted.
type User struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username    string     `json:"username" gorm:"type:varchar(50);uniqueIndex;not null"`
	DisplayName string     `json:"displayName" gorm:"type:varchar(100)"`
	Password    string     `json:"-" gorm:"not null"`
	Email       string     `json:"email" gorm:"type:varchar(255)"`
	Phone       string     `json:"phone" gorm:"type:varchar(50)"`
	Bio         string     `json:"bio" gorm:"type:text"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	AvatarKey   string     `json:"avatarKey,omitempty" gorm:"type:varchar(255)"`
	RoleID      *string    `json:"roleId,omitempty" gorm:"type:varchar(36);index"`
	Role        *Role      `json:"role,omitempty" gorm:"foreignKey:RoleID;constraint:OnDelete:SET NULL"`
	IsActive    bool       `json:"isActive" gorm:"not null;default:true"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// RoleName returns the name of the user's platform role, empty when unassigned
func (u *User) RoleName() string {
	if u.Role == nil {
		return ""
	}
	return u.Role.Name
}

// Workspace is a tenant container
type Workspace struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Slug        string    `json:"slug" gorm:"type:varchar(63);uniqueIndex;not null"`
	Description string    `json:"description" gorm:"type:text"`
	IsActive    bool      `json:"isActive" gorm:"not null;default:true"`
	MemberCount int       `json:"memberCount" gorm:"not null;default:0"`
	CreatedBy   *string   `json:"createdBy,omitempty" gorm:"type:varchar(36)"`
	UpdatedBy   *string   `json:"updatedBy,omitempty" gorm:"type:varchar(36)"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (w *Workspace) BeforeCreate(*gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// WorkspaceMember binds a user to a workspace with a workspace role
type WorkspaceMember struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	WorkspaceID string     `json:"workspaceId" gorm:"type:varchar(36);not null;uniqueIndex:idx_workspace_user"`
	UserID      string     `json:"userId" gorm:"type:varchar(36);not null;uniqueIndex:idx_workspace_user;index"`
	Role        string     `json:"role" gorm:"type:varchar(20);not null;default:'Member'"`
	IsActive    bool       `json:"isActive" gorm:"not null;default:true"`
	JoinedAt    time.Time  `json:"joinedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Workspace   *Workspace `json:"-" gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE"`
	User        *User      `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (m *WorkspaceMember) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	return nil
}

// MemberDetail is a membership joined with its user's profile
type MemberDetail struct {
	WorkspaceMember
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	AvatarKey   string `json:"avatarKey,omitempty"`
	UserActive  bool   `json:"userActive"`
}

// UserWorkspace is a workspace seen through one user's membership
type UserWorkspace struct {
	Workspace
	Role string `json:"role"`
}

// Activity is an append-only audit entry
type Activity struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID     string     `json:"ownerId" gorm:"type:varchar(36);not null;index"`
	WorkspaceID *string    `json:"workspaceId,omitempty" gorm:"type:varchar(36);index"`
	Type        string     `json:"type" gorm:"type:varchar(50);not null;index"`
	Message     string     `json:"message" gorm:"type:text"`
	Metadata    string     `json:"metadata,omitempty" gorm:"type:text"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"index"`
	Owner       *User      `json:"-" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Workspace   *Workspace `json:"-" gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE"`
}

func (a *Activity) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Environment is a workspace's external database connection profile
type Environment struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	WorkspaceID  string     `json:"workspaceId" gorm:"type:varchar(36);not null;uniqueIndex"`
	Kind         string     `json:"kind" gorm:"type:varchar(20);not null"`
	Host         string     `json:"host" gorm:"type:varchar(255);not null"`
	Port         int        `json:"port"`
	Username     string     `json:"username" gorm:"type:varchar(255)"`
	Password     string     `json:"-" gorm:"type:text"` // age armored ciphertext
	DatabaseName string     `json:"database" gorm:"type:varchar(255)"`
	Options      string     `json:"options,omitempty" gorm:"type:text"`
	Timeout      int        `json:"timeout"` // seconds
	Status       string     `json:"status" gorm:"type:varchar(20);not null;default:'unknown'"`
	LastTestedAt *time.Time `json:"lastTestedAt,omitempty"`
	LastError    string     `json:"lastError,omitempty" gorm:"type:text"`
	Revision     int64      `json:"-" gorm:"not null;default:0"` // bumped on every settings save
	UpdatedBy    *string    `json:"updatedBy,omitempty" gorm:"type:varchar(36)"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	Workspace    *Workspace `json:"-" gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE"`
}

func (e *Environment) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// ActivityQuery selects a page of activities
type ActivityQuery struct {
	OwnerID     string
	WorkspaceID string
	Limit       int

	// keyset position of the last item of the previous page
	BeforeTime *time.Time
	BeforeID   string
}

// WorkspaceQuery filters the admin workspace listing
type WorkspaceQuery struct {
	Search   string
	Page     int
	PageSize int
}

// allModels lists the tables in dependency order
func allModels() []any {
	return []any{&Role{}, &User{}, &Workspace{}, &WorkspaceMember{}, &Activity{}, &Environment{}}
}
