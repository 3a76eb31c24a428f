package cnst

// Language codes
const (
	LangEN      = "en"
	LangZH      = "zh"
	LangDefault = LangEN
)

const (
	// XLang overrides Accept-Language for a single request
	XLang = "X-Lang"
	// CtxKeyTranslator is the gin context key holding the request language
	CtxKeyTranslator = "translator"
)
