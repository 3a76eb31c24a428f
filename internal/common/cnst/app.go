package cnst

const (
	AppName     = "wshub"
	CommandName = "wsctl"
)
