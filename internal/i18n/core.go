package i18n

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/amoylab/wshub/internal/common/cnst"
)

var (
	mu         sync.RWMutex
	translator *I18n
)

var supportedLangs = []language.Tag{language.English, language.Chinese}

// InitTranslator loads the translation files under path and installs the
// result as the process-wide translator
func InitTranslator(path string) error {
	t := NewI18n(language.English)
	if err := t.LoadTranslations(path); err != nil {
		return err
	}
	SetTranslator(t)
	return nil
}

// SetTranslator replaces the process-wide translator. A nil translator makes
// errors fall back to their default messages.
func SetTranslator(t *I18n) {
	mu.Lock()
	defer mu.Unlock()
	translator = t
}

// GetTranslator returns the process-wide translator, which may be nil
func GetTranslator() *I18n {
	mu.RLock()
	defer mu.RUnlock()
	return translator
}

// I18n manages message bundles
type I18n struct {
	bundle      *i18n.Bundle
	defaultLang language.Tag
}

// NewI18n creates a new I18n instance with the specified default language
func NewI18n(defaultLang language.Tag) *I18n {
	bundle := i18n.NewBundle(defaultLang)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	return &I18n{
		bundle:      bundle,
		defaultLang: defaultLang,
	}
}

// LoadTranslations loads every *.toml file in dir
func (i *I18n) LoadTranslations(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read translations directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".toml") {
			continue
		}
		if _, err := i.bundle.LoadMessageFile(filepath.Join(dir, file.Name())); err != nil {
			return fmt.Errorf("failed to load %s: %w", file.Name(), err)
		}
	}
	return nil
}

// AddMessages registers messages for a language without touching the filesystem
func (i *I18n) AddMessages(tag language.Tag, messages map[string]string) error {
	for id, other := range messages {
		if err := i.bundle.AddMessages(tag, &i18n.Message{ID: id, Other: other}); err != nil {
			return err
		}
	}
	return nil
}

// Translate returns the localized message or "" when the bundle has none
func (i *I18n) Translate(msgID string, lang string, data map[string]any) string {
	localizer := i18n.NewLocalizer(i.bundle, lang, i.defaultLang.String())
	lc := &i18n.LocalizeConfig{MessageID: msgID}
	if len(data) > 0 {
		lc.TemplateData = data
	}

	// a key missing in lang comes back in the default language together
	// with a MessageNotFoundErr
	msg, err := localizer.Localize(lc)
	if msg != "" {
		return msg
	}
	if err != nil {
		return ""
	}
	return msg
}

// LanguageMiddleware stores the negotiated request language in the gin context
func LanguageMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(cnst.XLang, languageFromRequest(c.Request))
		c.Next()
	}
}

// languageFromRequest prefers X-Lang, then Accept-Language
func languageFromRequest(r *http.Request) string {
	if lang := r.Header.Get(cnst.XLang); lang != "" {
		return normalizeLang(lang)
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		tags, _, err := language.ParseAcceptLanguage(accept)
		if err == nil && len(tags) > 0 {
			return normalizeLang(tags[0].String())
		}
	}
	return cnst.LangDefault
}

// normalizeLang maps a language tag to one of the supported base codes
func normalizeLang(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return cnst.LangDefault
	}
	_, idx, conf := language.NewMatcher(supportedLangs).Match(tag)
	if conf == language.No {
		return cnst.LangDefault
	}
	base, _ := supportedLangs[idx].Base()
	return base.String()
}

// contextLang returns the language chosen by LanguageMiddleware
func contextLang(c *gin.Context) string {
	if c == nil {
		return cnst.LangDefault
	}
	if v, ok := c.Get(cnst.XLang); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return cnst.LangDefault
}

// TranslateMessage translates msgID in the request language
func TranslateMessage(c *gin.Context, msgID string, data map[string]any) string {
	if t := GetTranslator(); t != nil {
		if msg := t.Translate(msgID, contextLang(c), data); msg != "" {
			return msg
		}
	}
	return msgID
}
