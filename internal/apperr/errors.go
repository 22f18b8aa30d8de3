// Package apperr is the error taxonomy shared by the authorization boundary
// and the HTTP surface.
//
// Authorization failures carry an explicit code so the HTTP layer can tell
// "log in" (401) apart from "you don't own this" (403). Anything that isn't
// an *Error is treated as an opaque provider failure.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error category.
type Code string

const (
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeConflict     Code = "CONFLICT"
	CodeProvider     Code = "PROVIDER_ERROR"
)

// HTTPStatus maps a code to its response status. Unknown codes are 500.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed failure with a code, a client-safe message and an
// optional cause that is only ever logged.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so errors.Is(err, ErrForbidden)
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrUnauthorized = New(CodeUnauthorized, "unauthorized")
	ErrForbidden    = New(CodeForbidden, "forbidden")
	ErrNotFound     = New(CodeNotFound, "not found")
	ErrValidation   = New(CodeValidation, "validation error")
	ErrConflict     = New(CodeConflict, "conflict")
	ErrProvider     = New(CodeProvider, "provider error")
)

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Validation builds a 400 with the given message.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Provider wraps a chat/database/event service failure.
func Provider(message string, cause error) *Error {
	return Wrap(CodeProvider, message, cause)
}

// CodeOf extracts the code from err. Plain errors are provider failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeProvider
}

// PublicMessage returns the message safe to show a client. Causes never
// leak; untyped errors get the fallback.
func PublicMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
