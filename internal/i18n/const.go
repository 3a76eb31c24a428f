package i18n

// Common errors
var (
	ErrBadRequest     = NewErrorWithCode("ErrorBadRequest", ErrorBadRequest).WithMessage("Invalid request")
	ErrValidation     = NewErrorWithCode("ErrorValidation", ErrorUnprocessable).WithMessage("Validation failed")
	ErrUnauthorized   = NewErrorWithCode("ErrorUnauthorized", ErrorUnauthorized).WithMessage("Unauthorized")
	ErrForbidden      = NewErrorWithCode("ErrorForbidden", ErrorForbidden).WithMessage("Permission denied")
	ErrNotFound       = NewErrorWithCode("ErrorResourceNotFound", ErrorNotFound).WithMessage("Resource not found")
	ErrConflict       = NewErrorWithCode("ErrorConflict", ErrorConflict).WithMessage("The resource was changed by another request")
	ErrInternalServer = NewErrorWithCode("ErrorInternalServer", ErrorInternalServer).WithMessage("Internal server error")
)

// Authentication errors
var (
	ErrorInvalidCredentials  = NewErrorWithCode("ErrorInvalidCredentials", ErrorUnauthorized).WithMessage("Invalid username or password")
	ErrorInvalidToken        = NewErrorWithCode("ErrorInvalidToken", ErrorUnauthorized).WithMessage("Invalid or expired token")
	ErrorInvalidRefreshToken = NewErrorWithCode("ErrorInvalidRefreshToken", ErrorUnauthorized).WithMessage("Invalid or expired refresh token")
	ErrorUserDisabled        = NewErrorWithCode("ErrorUserDisabled", ErrorForbidden).WithMessage("User account is disabled")
	ErrorInvalidOldPassword  = NewErrorWithCode("ErrorInvalidOldPassword", ErrorBadRequest).WithMessage("Current password is incorrect")
	ErrorPasswordTooShort    = NewErrorWithCode("ErrorPasswordTooShort", ErrorBadRequest).WithMessage("Password must be at least {{.Min}} characters")
	ErrorAdminRequired       = NewErrorWithCode("ErrorAdminRequired", ErrorForbidden).WithMessage("Platform administrator required")
	ErrorCredentialsRequired = NewErrorWithCode("ErrorCredentialsRequired", ErrorBadRequest).WithMessage("Username and password are required")
)

// User errors
var (
	ErrorUserNotFound      = NewErrorWithCode("ErrorUserNotFound", ErrorNotFound).WithMessage("User not found")
	ErrorUsernameExists    = NewErrorWithCode("ErrorUsernameExists", ErrorConflict).WithMessage("Username already exists")
	ErrorInvalidUsername   = NewErrorWithCode("ErrorInvalidUsername", ErrorBadRequest).WithMessage("Username must be 3-32 letters, digits, dots, dashes or underscores")
	ErrorInvalidEmail      = NewErrorWithCode("ErrorInvalidEmail", ErrorBadRequest).WithMessage("Invalid email address")
	ErrorRoleNotFound      = NewErrorWithCode("ErrorRoleNotFound", ErrorNotFound).WithMessage("Role not found")
	ErrorCannotDisableSelf = NewErrorWithCode("ErrorCannotDisableSelf", ErrorConflict).WithMessage("You cannot change your own status or role")
)

// Avatar errors
var (
	ErrorAvatarRequired    = NewErrorWithCode("ErrorAvatarRequired", ErrorBadRequest).WithMessage("Avatar file is required")
	ErrorAvatarTooLarge    = NewErrorWithCode("ErrorAvatarTooLarge", ErrorRequestTooLarge).WithMessage("Avatar exceeds the maximum size")
	ErrorAvatarUnsupported = NewErrorWithCode("ErrorAvatarUnsupported", ErrorUnsupportedMedia).WithMessage("Avatar must be a PNG, JPEG, GIF or WebP image")
	ErrorAvatarNotFound    = NewErrorWithCode("ErrorAvatarNotFound", ErrorNotFound).WithMessage("Avatar not found")
)

// Workspace errors
var (
	ErrorWorkspaceNotFound = NewErrorWithCode("ErrorWorkspaceNotFound", ErrorNotFound).WithMessage("Workspace not found")
	ErrorWorkspaceInactive = NewErrorWithCode("ErrorWorkspaceInactive", ErrorForbidden).WithMessage("Workspace is disabled")
	ErrorWorkspaceName     = NewErrorWithCode("ErrorWorkspaceNameRequired", ErrorBadRequest).WithMessage("Workspace name is required")
	ErrorInvalidSlug       = NewErrorWithCode("ErrorInvalidSlug", ErrorBadRequest).WithMessage("Slug must be 3-63 lowercase letters, digits or single hyphens")
	ErrorSlugExists        = NewErrorWithCode("ErrorSlugExists", ErrorConflict).WithMessage("Slug is already in use")
	ErrorNotMember         = NewErrorWithCode("ErrorNotMember", ErrorForbidden).WithMessage("You are not an active member of this workspace")
)

// Membership errors
var (
	ErrorMemberNotFound = NewErrorWithCode("ErrorMemberNotFound", ErrorNotFound).WithMessage("Member not found")
	ErrorAlreadyMember  = NewErrorWithCode("ErrorAlreadyMember", ErrorConflict).WithMessage("User is already a member of this workspace")
	ErrorInvalidRole    = NewErrorWithCode("ErrorInvalidRole", ErrorBadRequest).WithMessage("Role must be one of Owner, Author or Member")
	ErrorOwnerConflict  = NewErrorWithCode("ErrorOwnerConflict", ErrorConflict).WithMessage("The operation would leave the workspace without exactly one owner")
)

// Activity errors
var (
	ErrorInvalidCursor = NewErrorWithCode("ErrorInvalidCursor", ErrorBadRequest).WithMessage("Invalid pagination cursor")
)

// Environment errors
var (
	ErrorEnvironmentNotFound = NewErrorWithCode("ErrorEnvironmentNotFound", ErrorNotFound).WithMessage("Environment is not configured")
	ErrorEnvironmentInvalid  = NewErrorWithCode("ErrorEnvironmentInvalid", ErrorBadRequest).WithMessage("Invalid environment settings: {{.Detail}}")
	ErrorUnsupportedKind     = NewErrorWithCode("ErrorUnsupportedKind", ErrorBadRequest).WithMessage("Unsupported database kind")
)

// Success messages
var (
	MsgLoggedOut          = NewWithMessage("MessageLoggedOut", "Logged out")
	MsgPasswordChanged    = NewWithMessage("MessagePasswordChanged", "Password changed")
	MsgMemberRemoved      = NewWithMessage("MessageMemberRemoved", "Member removed")
	MsgWorkspaceDeleted   = NewWithMessage("MessageWorkspaceDeleted", "Workspace deleted")
	MsgEnvironmentDeleted = NewWithMessage("MessageEnvironmentDeleted", "Environment deleted")
)
