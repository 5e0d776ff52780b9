package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		sentinel error
		code     string
		status   int
		message  string
	}{
		{"not found", NotFound("commerce", "cart"), ErrNotFound, "NOT_FOUND", 404, "commerce: cart not found"},
		{"already exists", AlreadyExists("customer", "email", "a@b.c"), ErrAlreadyExists, "ALREADY_EXISTS", 409, `customer with email "a@b.c" already exists`},
		{"invalid input", InvalidInput("quantity must be positive"), ErrInvalidInput, "INVALID_INPUT", 400, "quantity must be positive"},
		{"unauthorized", Unauthorized("sign in first"), ErrUnauthorized, "UNAUTHORIZED", 401, "sign in first"},
		{"forbidden", Forbidden("not your wishlist"), ErrForbidden, "FORBIDDEN", 403, "not your wishlist"},
		{"conflict", Conflict("cart completed"), ErrConflict, "CONFLICT", 409, "cart completed"},
		{"gone", Gone("share link expired"), ErrGone, "GONE", 410, "share link expired"},
		{"unprocessable", Unprocessable("variant out of stock"), ErrUnprocessable, "UNPROCESSABLE", 422, "variant out of stock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.message, tt.err.Message)
			assert.Equal(t, tt.status, HTTPStatus(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "GONE: expired: gone", Gone("expired").Error())
	assert.Equal(t, "RATE_LIMITED: slow down", (&AppError{Code: "RATE_LIMITED", Message: "slow down"}).Error())
}

func TestAppError_As(t *testing.T) {
	err := fmt.Errorf("toggle wishlist: %w", Unauthorized("session expired"))

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "session expired", appErr.Message)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get: %w", ErrNotFound), http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrGone, http.StatusGone},
		{ErrUnprocessable, http.StatusUnprocessableEntity},
		{ErrServiceUnavail, http.StatusServiceUnavailable},
		{errors.New("dial tcp: refused"), http.StatusInternalServerError},
		{&AppError{Code: "RATE_LIMITED", Status: http.StatusTooManyRequests}, http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestNewError_UnknownSentinelPanics(t *testing.T) {
	assert.Panics(t, func() { newError(errors.New("other"), "x") })
}
