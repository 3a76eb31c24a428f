package apiclient

import (
	"time"

	"github.com/amoylab/wshub/internal/common/dto"
)

// Role is a platform role
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Workspace is a tenant as returned by the API. Role is set only on the
// caller's own workspace listing.
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	MemberCount int       `json:"memberCount"`
	Role        string    `json:"role,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// WorkspacePage is one page of the admin listing
type WorkspacePage struct {
	Items    []Workspace `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

// WorkspaceQuery filters the admin listing
type WorkspaceQuery struct {
	Page     int
	PageSize int
	Search   string
}

// Member is a membership joined with its user
type Member struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	UserID      string    `json:"userId"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"isActive"`
	JoinedAt    time.Time `json:"joinedAt"`
	Username    string    `json:"username,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Email       string    `json:"email,omitempty"`
	UserActive  bool      `json:"userActive,omitempty"`
}

// OwnerChange is the result of an ownership transfer
type OwnerChange struct {
	PreviousOwner *Member `json:"previousOwner"`
	NewOwner      *Member `json:"newOwner"`
}

// Activity is an audit log entry
type Activity struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	WorkspaceID *string   `json:"workspaceId,omitempty"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Metadata    string    `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ActivityPage is a page of activities; NextCursor is empty on the last page
type ActivityPage struct {
	Items      []Activity `json:"items"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// PageRequest selects a page of activities
type PageRequest struct {
	Limit  int
	Cursor string
}

// Environment is a workspace's database connection. Password is masked in
// responses; sending the mask back keeps the stored secret.
type Environment struct {
	ID           string     `json:"id,omitempty"`
	WorkspaceID  string     `json:"workspaceId,omitempty"`
	Kind         string     `json:"kind"`
	Host         string     `json:"host"`
	Port         int        `json:"port"`
	Username     string     `json:"username"`
	Password     string     `json:"password"`
	Database     string     `json:"database"`
	Options      string     `json:"options,omitempty"`
	Timeout      int        `json:"timeout,omitempty"`
	Status       string     `json:"status,omitempty"`
	LastTestedAt *time.Time `json:"lastTestedAt,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
}

type (
	CreateUserRequest      = dto.CreateUserRequest
	CreateWorkspaceRequest = dto.CreateWorkspaceRequest
	UpdateWorkspaceRequest = dto.UpdateWorkspaceRequest
	UpdateProfileRequest   = dto.UpdateProfileRequest
	WorkspaceStats         = dto.WorkspaceStats
)
