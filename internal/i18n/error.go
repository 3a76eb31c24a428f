package i18n

import (
	"errors"
	"maps"
	"net/http"
	"strings"
	"text/template"
	"unicode"

	"github.com/gin-gonic/gin"

	"github.com/amoylab/wshub/internal/common/cnst"
)

// ErrorCode is the HTTP status an error maps to
type ErrorCode int

const (
	ErrorBadRequest         ErrorCode = http.StatusBadRequest
	ErrorUnauthorized       ErrorCode = http.StatusUnauthorized
	ErrorForbidden          ErrorCode = http.StatusForbidden
	ErrorNotFound           ErrorCode = http.StatusNotFound
	ErrorConflict           ErrorCode = http.StatusConflict
	ErrorRequestTooLarge    ErrorCode = http.StatusRequestEntityTooLarge
	ErrorUnsupportedMedia   ErrorCode = http.StatusUnsupportedMediaType
	ErrorUnprocessable      ErrorCode = http.StatusUnprocessableEntity
	ErrorInternalServer     ErrorCode = http.StatusInternalServerError
	ErrorServiceUnavailable ErrorCode = http.StatusServiceUnavailable
)

// I18nError is a translatable error message
type I18nError struct {
	// MessageID is the key used for translation lookup
	MessageID string
	// DefaultMessage is rendered when no translation exists
	DefaultMessage string
	Data           map[string]any
}

// New creates an I18nError whose default message is the message id
func New(messageID string) *I18nError {
	return &I18nError{MessageID: messageID, DefaultMessage: messageID}
}

// NewWithMessage creates an I18nError with an English fallback
func NewWithMessage(messageID, defaultMessage string) *I18nError {
	return &I18nError{MessageID: messageID, DefaultMessage: defaultMessage}
}

// Error renders the message in the default language
func (e *I18nError) Error() string {
	return e.translate(cnst.LangDefault)
}

func (e *I18nError) translate(lang string) string {
	if t := GetTranslator(); t != nil {
		if msg := t.Translate(e.MessageID, lang, e.Data); msg != "" {
			return msg
		}
	}
	return renderDefault(e.DefaultMessage, e.Data)
}

func renderDefault(msg string, data map[string]any) string {
	if len(data) == 0 || !strings.Contains(msg, "{{") {
		return msg
	}
	tpl, err := template.New("msg").Option("missingkey=zero").Parse(msg)
	if err != nil {
		return msg
	}
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return msg
	}
	return sb.String()
}

// ErrorWithCode couples a translatable message with its HTTP status and the
// machine readable code clients switch on
type ErrorWithCode struct {
	*I18nError
	Code   ErrorCode
	Reason string
	Fields map[string]string
}

// NewErrorWithCode creates an error whose machine code is derived from the
// message id: ErrorWorkspaceNotFound becomes workspace_not_found
func NewErrorWithCode(messageID string, code ErrorCode) *ErrorWithCode {
	return &ErrorWithCode{
		I18nError: New(messageID),
		Code:      code,
		Reason:    machineCode(messageID),
	}
}

// WithMessage sets the English fallback used when no bundle is loaded
func (e *ErrorWithCode) WithMessage(msg string) *ErrorWithCode {
	e.DefaultMessage = msg
	return e
}

// WithParam returns a copy carrying one more template parameter. Predefined
// errors are shared, so they are never mutated.
func (e *ErrorWithCode) WithParam(key string, value any) *ErrorWithCode {
	cp := e.clone()
	cp.Data[key] = value
	return cp
}

// WithFields returns a copy carrying per-field validation messages
func (e *ErrorWithCode) WithFields(fields map[string]string) *ErrorWithCode {
	cp := e.clone()
	cp.Fields = maps.Clone(fields)
	return cp
}

func (e *ErrorWithCode) clone() *ErrorWithCode {
	data := maps.Clone(e.Data)
	if data == nil {
		data = make(map[string]any)
	}
	return &ErrorWithCode{
		I18nError: &I18nError{
			MessageID:      e.MessageID,
			DefaultMessage: e.DefaultMessage,
			Data:           data,
		},
		Code:   e.Code,
		Reason: e.Reason,
		Fields: maps.Clone(e.Fields),
	}
}

// Is matches errors with the same message id, so copies made by WithParam
// still satisfy errors.Is against the predefined value
func (e *ErrorWithCode) Is(target error) bool {
	var other *ErrorWithCode
	if errors.As(target, &other) {
		return other.MessageID == e.MessageID
	}
	return false
}

// TranslateError renders err in the request language
func TranslateError(c *gin.Context, err error) string {
	if err == nil {
		return ""
	}
	var codeErr *ErrorWithCode
	if errors.As(err, &codeErr) {
		return codeErr.translate(contextLang(c))
	}
	var i18nErr *I18nError
	if errors.As(err, &i18nErr) {
		return i18nErr.translate(contextLang(c))
	}
	return err.Error()
}

func machineCode(messageID string) string {
	id := strings.TrimPrefix(messageID, "Error")
	var sb strings.Builder
	for i, r := range id {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
