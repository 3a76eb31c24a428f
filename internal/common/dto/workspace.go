package dto

import "time"

// CreateWorkspaceRequest creates a workspace. The slug is derived from the
// name when omitted and cannot change afterwards.
type CreateWorkspaceRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	OwnerID     string `json:"ownerId"`
}

// UpdateWorkspaceRequest edits a workspace. Nil fields are left untouched.
type UpdateWorkspaceRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

// WorkspaceList is one page of the admin workspace listing
type WorkspaceList struct {
	Items    any   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

// AddMemberRequest adds a user to a workspace
type AddMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
	Role   string `json:"role"`
}

// ReplaceOwnerRequest transfers ownership to an existing active member
type ReplaceOwnerRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// WorkspaceStats summarizes a workspace for the admin dashboard
type WorkspaceStats struct {
	MemberCount       int              `json:"memberCount"`
	ActiveMembers     int64            `json:"activeMembers"`
	InactiveMembers   int64            `json:"inactiveMembers"`
	MembersByRole     map[string]int64 `json:"membersByRole"`
	ActivityCount     int64            `json:"activityCount"`
	EnvironmentStatus string           `json:"environmentStatus"`
	LastTestedAt      *time.Time       `json:"lastTestedAt,omitempty"`
}
