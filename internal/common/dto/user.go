package dto

// DateLayout is the wire format of dates without a time part
const DateLayout = "2006-01-02"

// UpdateProfileRequest changes the caller's own profile. Nil fields are left
// untouched; an empty dateOfBirth clears it.
type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName" binding:"omitempty,max=100"`
	Email       *string `json:"email" binding:"omitempty,email,max=255"`
	Phone       *string `json:"phone" binding:"omitempty,max=50"`
	Bio         *string `json:"bio" binding:"omitempty,max=2000"`
	DateOfBirth *string `json:"dateOfBirth" binding:"omitempty,datetime=2006-01-02"`
}

// CreateUserRequest represents an admin request to create a user
type CreateUserRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName" binding:"omitempty,max=100"`
	Email       string `json:"email" binding:"omitempty,email"`
	Role        string `json:"role"`
}

// UpdateStatusRequest toggles the active flag of a user or a membership
type UpdateStatusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// UpdateRoleRequest changes a platform or workspace role
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// AvatarResponse is returned after an avatar upload
type AvatarResponse struct {
	AvatarURL string    `json:"avatarUrl"`
	User      *UserInfo `json:"user"`
}
