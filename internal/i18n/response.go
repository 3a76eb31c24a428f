package i18n

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondWithError writes err as {"error", "code", "fields"?}. Errors that
// are not *ErrorWithCode become 500 internal_server without leaking detail.
func RespondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var codeErr *ErrorWithCode
	if !errors.As(err, &codeErr) {
		codeErr = ErrInternalServer
	}

	body := gin.H{
		"error": TranslateError(c, codeErr),
		"code":  codeErr.Reason,
	}
	if len(codeErr.Fields) > 0 {
		body["fields"] = codeErr.Fields
	}
	c.AbortWithStatusJSON(int(codeErr.Code), body)
}

// RespondOK writes payload with status 200
func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondCreated writes payload with status 201
func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondMessage writes {"message": <translated msg>} merged with extra
func RespondMessage(c *gin.Context, statusCode int, msg *I18nError, extra gin.H) {
	body := gin.H{"message": msg.translate(contextLang(c))}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(statusCode, body)
}
