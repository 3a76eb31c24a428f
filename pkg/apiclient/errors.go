package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// AuthError is returned for 401 responses and failed session refreshes
type AuthError struct {
	Message string
	Code    string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication required"
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Cause }

// NetworkError is returned when no response was received
type NetworkError struct {
	Method  string
	URL     string
	Timeout bool
	Cause   error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s %s: request timed out", e.Method, e.URL)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// ValidationError carries per-field messages from a rejected request body
type ValidationError struct {
	Status  int
	Message string
	Code    string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return "validation failed"
	}
	return e.Message
}

// APIError is any other non-2xx response
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// IsRetryable reports whether err is worth retrying by the caller
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Status)
	}
	return false
}

// ErrorCode returns the machine code carried by err, empty when none
func ErrorCode(err error) string {
	var (
		authErr *AuthError
		valErr  *ValidationError
		apiErr  *APIError
	)
	switch {
	case errors.As(err, &authErr):
		return authErr.Code
	case errors.As(err, &valErr):
		return valErr.Code
	case errors.As(err, &apiErr):
		return apiErr.Code
	}
	return ""
}

func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusRequestTimeout
}

// classify turns a non-2xx response into a typed error
func classify(resp *Response) error {
	doc := gjson.ParseBytes(resp.Body)
	msg := doc.Get("error").String()
	if msg == "" {
		msg = doc.Get("message").String()
	}
	if msg == "" {
		msg = http.StatusText(resp.Status)
	}
	code := doc.Get("code").String()

	switch {
	case resp.Status == http.StatusUnauthorized:
		return &AuthError{Message: msg, Code: code}
	case resp.Status == http.StatusUnprocessableEntity,
		resp.Status == http.StatusBadRequest && doc.Get("fields").IsObject():
		fields := map[string]string{}
		doc.Get("fields").ForEach(func(k, v gjson.Result) bool {
			fields[k.String()] = v.String()
			return true
		})
		return &ValidationError{Status: resp.Status, Message: msg, Code: code, Fields: fields}
	default:
		return &APIError{Status: resp.Status, Message: msg, Code: code}
	}
}

// AdminAPIError wraps failures of the admin feature calls
type AdminAPIError struct {
	Op      string
	Message string
	Err     error
}

func (e *AdminAPIError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AdminAPIError) Unwrap() error { return e.Err }

// WorkspaceAPIError wraps failures of the workspace feature calls
type WorkspaceAPIError struct {
	Op      string
	Message string
	Err     error
}

func (e *WorkspaceAPIError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *WorkspaceAPIError) Unwrap() error { return e.Err }

// passthrough reports errors that feature calls return unchanged
func passthrough(err error) bool {
	var (
		authErr *AuthError
		valErr  *ValidationError
		admErr  *AdminAPIError
		wsErr   *WorkspaceAPIError
	)
	return errors.As(err, &authErr) || errors.As(err, &valErr) ||
		errors.As(err, &admErr) || errors.As(err, &wsErr)
}

func wrapAdmin(op, message string, err error) error {
	if err == nil || passthrough(err) {
		return err
	}
	return &AdminAPIError{Op: op, Message: message, Err: err}
}

func wrapWorkspace(op, message string, err error) error {
	if err == nil || passthrough(err) {
		return err
	}
	return &WorkspaceAPIError{Op: op, Message: message, Err: err}
}
