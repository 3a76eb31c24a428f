package cnst

// Tracer names used across the services
const (
	TraceAPIServer   = "wshub/apiserver"
	TraceMembership  = "wshub/membership"
	TraceEnvironment = "wshub/environment"
	TraceClient      = "wshub/apiclient"
)

// Common attribute keys
const (
	AttrWorkspaceSlug = "workspace.slug"
	AttrWorkspaceID   = "workspace.id"
	AttrActorID       = "actor.id"
	AttrTargetUserID  = "member.user_id"
	AttrOperation     = "membership.operation"
	AttrEnvKind       = "environment.kind"
	AttrEnvStatus     = "environment.status"
	AttrErrorReason   = "error.reason"
)
