package web

// errors.go turns fatal errors into JSON responses.
//
// The technical error is logged with the request ID; the client receives
// the user message from core.MapError so internals never leak.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/annonces/internal/core"
	"github.com/JonMunkholm/annonces/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var errNoFile = errors.New("no file provided: the form has no 'file' field")

// respondError logs err and writes its user-facing mapping. Unmapped
// errors are logged at Error whatever the status.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	uerr := core.NewUserError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", uerr.Technical.Error(),
		"code", uerr.User.Code,
	}
	if statusCode >= http.StatusInternalServerError || !core.IsUserFacing(uerr.Technical) {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	writeJSON(w, r, statusCode, ErrorResponse{
		Error:   uerr.Error(),
		Message: uerr.User.Message,
		Action:  uerr.User.Action,
		Code:    uerr.User.Code,
	})
}

// statusFor picks the HTTP status of a fatal validation error.
func statusFor(err error) int {
	var encErr *core.EncodingError

	switch {
	case errors.Is(err, core.ErrEmptyFile), errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnknownSchema), errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	case errors.As(err, &encErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
