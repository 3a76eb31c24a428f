package i18n

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/amoylab/wshub/internal/common/cnst"
)

func withTranslator(t *testing.T, tr *I18n) {
	t.Helper()
	prev := GetTranslator()
	SetTranslator(tr)
	t.Cleanup(func() { SetTranslator(prev) })
}

func writeBundles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.toml"),
		[]byte("ErrorWorkspaceNotFound = \"Workspace not found\"\nErrorPasswordTooShort = \"Password must be at least {{.Min}} characters\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zh.toml"),
		[]byte("ErrorWorkspaceNotFound = \"工作空间不存在\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))
	return dir
}

func TestLoadTranslations(t *testing.T) {
	tr := NewI18n(language.English)
	require.NoError(t, tr.LoadTranslations(writeBundles(t)))

	assert.Equal(t, "Workspace not found", tr.Translate("ErrorWorkspaceNotFound", "en", nil))
	assert.Equal(t, "工作空间不存在", tr.Translate("ErrorWorkspaceNotFound", "zh", nil))
	assert.Equal(t, "Password must be at least 8 characters",
		tr.Translate("ErrorPasswordTooShort", "zh", map[string]any{"Min": 8}), "falls back to the default language")
	assert.Empty(t, tr.Translate("ErrorMissing", "en", nil))
}

func TestTranslate_FallsBackToDefaultLanguage(t *testing.T) {
	tr := NewI18n(language.English)
	require.NoError(t, tr.AddMessages(language.English, map[string]string{"ErrorOnlyEnglish": "Only in English"}))
	require.NoError(t, tr.AddMessages(language.Chinese, map[string]string{"ErrorBoth": "两者都有"}))

	assert.Equal(t, "Only in English", tr.Translate("ErrorOnlyEnglish", "zh", nil))
	assert.Equal(t, "Only in English", tr.Translate("ErrorOnlyEnglish", "fr", nil))
	assert.Equal(t, "两者都有", tr.Translate("ErrorBoth", "zh-CN", nil))
	assert.Empty(t, tr.Translate("ErrorNowhere", "zh", nil))
}

func TestLoadTranslationsMissingDir(t *testing.T) {
	tr := NewI18n(language.English)
	assert.Error(t, tr.LoadTranslations(filepath.Join(t.TempDir(), "nope")))
}

func TestInitTranslator(t *testing.T) {
	withTranslator(t, nil)
	require.NoError(t, InitTranslator(writeBundles(t)))
	assert.NotNil(t, GetTranslator())
	assert.Equal(t, "Workspace not found", ErrorWorkspaceNotFound.Error())
}

func TestErrorFallsBackToDefaultMessage(t *testing.T) {
	withTranslator(t, nil)

	assert.Equal(t, "Workspace not found", ErrorWorkspaceNotFound.Error())
	assert.Equal(t, "Password must be at least 8 characters",
		ErrorPasswordTooShort.WithParam("Min", 8).Error())
	assert.Equal(t, "ErrorSomething", New("ErrorSomething").Error())
}

func TestWithParamDoesNotMutateShared(t *testing.T) {
	withTranslator(t, nil)

	e := ErrorPasswordTooShort.WithParam("Min", 12)
	assert.Empty(t, ErrorPasswordTooShort.Data)
	assert.Equal(t, 12, e.Data["Min"])
	assert.True(t, errors.Is(e, ErrorPasswordTooShort))
	assert.False(t, errors.Is(e, ErrorInvalidSlug))
	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", e), ErrorPasswordTooShort))
}

func TestMachineCode(t *testing.T) {
	tests := map[string]string{
		"ErrorWorkspaceNotFound":   "workspace_not_found",
		"ErrorInvalidRefreshToken": "invalid_refresh_token",
		"ErrorForbidden":           "forbidden",
		"Plain":                    "plain",
	}
	for in, want := range tests {
		assert.Equal(t, want, machineCode(in), in)
	}
	assert.Equal(t, "owner_conflict", ErrorOwnerConflict.Reason)
}

func TestNormalizeLang(t *testing.T) {
	assert.Equal(t, "zh", normalizeLang("zh-CN"))
	assert.Equal(t, "zh", normalizeLang("zh-Hans"))
	assert.Equal(t, "en", normalizeLang("en-US"))
	assert.Equal(t, "en", normalizeLang("fr"))
	assert.Equal(t, "en", normalizeLang("!!"))
}

func TestLanguageMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"default", nil, "en"},
		{"x-lang wins", map[string]string{cnst.XLang: "zh", "Accept-Language": "en-US"}, "zh"},
		{"accept-language", map[string]string{"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8"}, "zh"},
		{"unsupported", map[string]string{"Accept-Language": "de-DE"}, "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(LanguageMiddleware())
			var got string
			r.GET("/", func(c *gin.Context) { got = contextLang(c) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			r.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tr := NewI18n(language.English)
	require.NoError(t, tr.LoadTranslations(writeBundles(t)))
	withTranslator(t, tr)

	tests := []struct {
		name       string
		err        error
		lang       string
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"translated zh", ErrorWorkspaceNotFound, "zh", http.StatusNotFound, "workspace_not_found", "工作空间不存在"},
		{"translated en", fmt.Errorf("ctx: %w", ErrorWorkspaceNotFound), "en", http.StatusNotFound, "workspace_not_found", "Workspace not found"},
		{"default message", ErrorOwnerConflict, "en", http.StatusConflict, "owner_conflict", ErrorOwnerConflict.DefaultMessage},
		{"plain error hidden", errors.New("pq: connection refused"), "en", http.StatusInternalServerError, "internal_server", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set(cnst.XLang, tt.lang)

			RespondWithError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["code"])
			assert.Equal(t, tt.wantMsg, body["error"])
			assert.NotContains(t, body, "fields")
			assert.True(t, c.IsAborted())
		})
	}
}

func TestRespondWithErrorFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	withTranslator(t, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	RespondWithError(c, ErrValidation.WithFields(map[string]string{"email": "invalid"}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"Validation failed","code":"validation","fields":{"email":"invalid"}}`, w.Body.String())
	assert.Nil(t, ErrValidation.Fields)
}

func TestRespondMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	withTranslator(t, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	RespondMessage(c, http.StatusOK, MsgLoggedOut, gin.H{"ok": true})
	assert.JSONEq(t, `{"message":"Logged out","ok":true}`, w.Body.String())
}

func TestPredefinedErrorsHaveBundleEntries(t *testing.T) {
	tr := NewI18n(language.English)
	require.NoError(t, tr.LoadTranslations(filepath.Join("..", "..", "configs", "i18n")))

	for _, e := range []*ErrorWithCode{
		ErrBadRequest, ErrValidation, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrInternalServer,
		ErrorInvalidCredentials, ErrorInvalidRefreshToken, ErrorWorkspaceNotFound, ErrorMemberNotFound,
		ErrorAlreadyMember, ErrorInvalidRole, ErrorOwnerConflict, ErrorInvalidCursor, ErrorEnvironmentNotFound,
	} {
		assert.NotEmpty(t, tr.Translate(e.MessageID, "en", nil), e.MessageID)
		assert.NotEmpty(t, tr.Translate(e.MessageID, "zh", nil), e.MessageID)
	}
}
