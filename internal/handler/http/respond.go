package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

func writeData(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, httputil.Response{Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	httputil.WriteError(w, r, err, logger)
}

func writeMessage(w http.ResponseWriter, status int, code, message string) {
	httputil.WriteJSON(w, status, httputil.Response{
		Error: &httputil.ErrorResponse{Code: code, Message: message},
	})
}

// formMessages maps a struct field to the message shown when it fails
// validation. The first failing field with an entry wins.
type formMessages map[string]string

// decodeForm reads and validates a JSON body. On failure it writes a 400
// carrying a literal user-facing message and returns false.
func decodeForm(w http.ResponseWriter, r *http.Request, dst any, messages formMessages, fallback string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return false
	}

	err := validator.Validate(dst)
	if err == nil {
		return true
	}

	message := fallback
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		for _, fe := range valErr.Errors {
			if m, ok := messages[fe.StructField()]; ok {
				message = m
				break
			}
		}
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: message,
				Fields:  valErr.Fields(),
			},
		})
		return false
	}

	httputil.WriteValidationError(w, err)
	return false
}

// result is the body of mutation endpoints that report success as a flag.
type result struct {
	OK bool `json:"ok"`
	// State is the provider snapshot after the mutation.
	State any `json:"state"`
}
