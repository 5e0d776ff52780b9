// Package httputil writes the storefront's JSON envelopes: {"data": ...} on
// success and {"error": {...}} on failure.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// Response is the envelope of every JSON body.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse describes a failed request. RequestID echoes the correlation
// id so support can find the matching log lines.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON encodes v with status. Encoding errors are dropped: the header
// is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status and error body. AppErrors are shown as-is;
// anything unrecognized becomes an opaque 500 and is logged with the request
// logger, or with fallback when none is in the context.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	ctx := r.Context()
	body := &ErrorResponse{RequestID: logger.CorrelationID(ctx)}

	var appErr *apperrors.AppError
	status := apperrors.HTTPStatus(err)
	switch {
	case errors.As(err, &appErr):
		status, body.Code, body.Message = appErr.Status, appErr.Code, appErr.Message
	case errors.Is(err, apperrors.ErrInvalidInput):
		body.Code, body.Message = "INVALID_INPUT", err.Error()
	case status == http.StatusInternalServerError:
		body.Code, body.Message = "INTERNAL_ERROR", "an internal error occurred"
	default:
		body.Code, body.Message = codeFor(status), http.StatusText(status)
	}

	if status >= http.StatusInternalServerError {
		l := logger.FromContext(ctx)
		if l == nil {
			l = fallback
		}
		l.ErrorContext(ctx, "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
		)
	}
	WriteJSON(w, status, Response{Error: body})
}

func codeFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusGone:
		return "GONE"
	case http.StatusUnprocessableEntity:
		return "UNPROCESSABLE"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	}
	return "ERROR"
}

// WriteValidationError writes a 400 listing the invalid fields of a
// validator.ValidationError, or err's text for any other error.
func WriteValidationError(w http.ResponseWriter, err error) {
	body := &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()}
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		body = &ErrorResponse{Code: "VALIDATION_ERROR", Message: "request validation failed", Fields: valErr.Fields()}
	}
	WriteJSON(w, http.StatusBadRequest, Response{Error: body})
}
