// Package errors defines the storefront's error vocabulary: sentinel errors
// to branch on with errors.Is, and AppError, which also carries the code and
// status shown to the browser.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrGone           = errors.New("gone")
	ErrUnprocessable  = errors.New("unprocessable")
	ErrServiceUnavail = errors.New("service unavailable")
)

// AppError is an error safe to show to the client.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// kinds pairs each sentinel with its wire code and status.
var kinds = []struct {
	err    error
	code   string
	status int
}{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrAlreadyExists, "ALREADY_EXISTS", http.StatusConflict},
	{ErrConflict, "CONFLICT", http.StatusConflict},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
	{ErrForbidden, "FORBIDDEN", http.StatusForbidden},
	{ErrGone, "GONE", http.StatusGone},
	{ErrUnprocessable, "UNPROCESSABLE", http.StatusUnprocessableEntity},
	{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
}

func newError(sentinel error, message string) *AppError {
	for _, k := range kinds {
		if k.err == sentinel {
			return &AppError{Code: k.code, Message: message, Status: k.status, Err: sentinel}
		}
	}
	panic("errors: unregistered sentinel " + sentinel.Error())
}

// NotFound reports that what, as known to resource, does not exist.
func NotFound(resource, what string) *AppError {
	return newError(ErrNotFound, fmt.Sprintf("%s: %s not found", resource, what))
}

// AlreadyExists reports a duplicate resource identified by field=value.
func AlreadyExists(resource, field, value string) *AppError {
	return newError(ErrAlreadyExists, fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

func InvalidInput(message string) *AppError  { return newError(ErrInvalidInput, message) }
func Unauthorized(message string) *AppError  { return newError(ErrUnauthorized, message) }
func Forbidden(message string) *AppError     { return newError(ErrForbidden, message) }
func Conflict(message string) *AppError      { return newError(ErrConflict, message) }
func Gone(message string) *AppError          { return newError(ErrGone, message) }
func Unprocessable(message string) *AppError { return newError(ErrUnprocessable, message) }

// HTTPStatus is the status for err: an AppError's own, else the status of
// the first sentinel err wraps, else 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}
