package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// errorBody accepts both shapes of upstream error: the commerce API's flat
// {"type","code","message"} and the {"error":{"code","message"}} envelope.
type errorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// flatten returns the code and message, preferring the envelope. ok is false
// when the body carries no recognizable error.
func (b errorBody) flatten() (code, message string, ok bool) {
	if b.Error != nil {
		return b.Error.Code, b.Error.Message, true
	}
	code = b.Code
	if code == "" {
		code = strings.ToUpper(b.Type)
	}
	return code, b.Message, b.Message != "" && code != ""
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// returns the matching AppError. Bodies in neither known shape produce a
// plain error quoting status and body.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned %d, body unreadable: %w", upstream, resp.StatusCode, err)
	}

	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		if code, message, ok := body.flatten(); ok {
			return upstreamError(upstream, resp.StatusCode, code, message)
		}
	}
	return fmt.Errorf("%s returned %d: %s", upstream, resp.StatusCode, strings.TrimSpace(string(raw)))
}

// upstreamError keeps the upstream's meaning so handlers can branch on the
// sentinel errors in pkg/errors.
func upstreamError(upstream string, status int, code, message string) error {
	msg := upstream + ": " + message

	switch {
	case status == http.StatusNotFound || code == "NOT_FOUND":
		return &apperrors.AppError{Code: "NOT_FOUND", Message: msg, Status: http.StatusNotFound, Err: apperrors.ErrNotFound}
	case IsDuplicate(status, code, message):
		return &apperrors.AppError{Code: "ALREADY_EXISTS", Message: msg, Status: http.StatusConflict, Err: apperrors.ErrAlreadyExists}
	case status == http.StatusUnauthorized || code == "UNAUTHORIZED":
		return apperrors.Unauthorized(msg)
	}

	switch status {
	case http.StatusBadRequest:
		return apperrors.InvalidInput(msg)
	case http.StatusConflict:
		return apperrors.Conflict(msg)
	case http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case http.StatusGone:
		return apperrors.Gone(msg)
	case http.StatusUnprocessableEntity:
		return apperrors.Unprocessable(msg)
	case http.StatusServiceUnavailable:
		return &apperrors.AppError{Code: code, Message: msg, Status: status, Err: apperrors.ErrServiceUnavail}
	}
	if status >= 500 {
		return fmt.Errorf("%s failed with %d (%s): %s", upstream, status, code, message)
	}
	return &apperrors.AppError{Code: code, Message: msg, Status: status}
}

// IsDuplicate reports whether an upstream error means the entity already
// exists. The commerce API says so with a duplicate code, or with a 400/409
// whose message contains "already".
func IsDuplicate(status int, code, message string) bool {
	if code == "DUPLICATE_ERROR" || code == "ALREADY_EXISTS" {
		return true
	}
	return (status == http.StatusConflict || status == http.StatusBadRequest) &&
		strings.Contains(strings.ToLower(message), "already")
}
