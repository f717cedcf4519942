// Package apperr carries the error kinds a generation request can end in and maps them to HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindAIProvider Kind = "ai_provider"
	KindRender     Kind = "render"
	KindConversion Kind = "conversion"
	KindUnexpected Kind = "unexpected"
)

// Error is a categorized application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAIProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Validation(message string, details any) *Error {
	return &Error{Kind: KindValidation, Code: "validation_error", Message: message, Details: details}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: message}
}

func AIProvider(message string, cause error) *Error {
	return &Error{Kind: KindAIProvider, Code: "ai_provider_error", Message: message, Err: cause}
}

func Render(message string, cause error) *Error {
	return &Error{Kind: KindRender, Code: "render_error", Message: message, Err: cause}
}

func Conversion(code, message string, details any, cause error) *Error {
	if code == "" {
		code = "conversion_error"
	}
	return &Error{Kind: KindConversion, Code: code, Message: message, Details: details, Err: cause}
}

func Unexpected(message string, cause error) *Error {
	return &Error{Kind: KindUnexpected, Code: "internal_error", Message: message, Err: cause}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// StatusCode returns the HTTP status for any error; untyped errors are 500.
func StatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Status()
	}
	return http.StatusInternalServerError
}
