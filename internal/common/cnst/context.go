package cnst

// gin context keys set by the apiserver middleware
const (
	CtxKeyClaims    = "claims"
	CtxKeyWorkspace = "workspace"
	CtxKeyActor     = "actor"
)
