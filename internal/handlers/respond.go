package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/cinevo/backend/internal/auth"
	"github.com/cinevo/backend/internal/feed"
	"github.com/cinevo/backend/internal/logging"
	"github.com/cinevo/backend/internal/reaction"
	"github.com/cinevo/backend/internal/repositories"
)

// Envelope is the uniform response shape for every endpoint, success or
// failure.
type Envelope struct {
	Success    bool     `json:"success"`
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Data       any      `json:"data"`
	Errors     []string `json:"errors,omitempty"`
	Stack      string   `json:"stack,omitempty"`
}

// debugErrors controls whether failure envelopes carry a stack trace.
// Enabled outside production only.
var debugErrors bool

// EnableDebugErrors turns on stack traces in failure envelopes.
func EnableDebugErrors() { debugErrors = true }

func respond(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	writeEnvelope(ctx, w, Envelope{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

func fail(ctx context.Context, w http.ResponseWriter, status int, message string, errs ...string) {
	if len(errs) == 0 {
		errs = []string{message}
	}
	env := Envelope{
		StatusCode: status,
		Message:    message,
		Errors:     errs,
	}
	if debugErrors && status >= http.StatusInternalServerError {
		env.Stack = string(debug.Stack())
	}
	writeEnvelope(ctx, w, env)
}

// failWith maps a domain error to its HTTP status and writes the failure
// envelope. message overrides the generic text when non-empty.
func failWith(ctx context.Context, w http.ResponseWriter, err error, message string) {
	status := http.StatusInternalServerError
	text := "internal server error"

	var conflict *repositories.ConflictError
	switch {
	case errors.As(err, &conflict):
		status = http.StatusConflict
		text = conflict.Error()
	case errors.Is(err, repositories.ErrConflict):
		status = http.StatusConflict
		text = "record conflict"
	case errors.Is(err, repositories.ErrNotFound),
		errors.Is(err, feed.ErrVideoNotFound),
		errors.Is(err, feed.ErrChannelNotFound),
		errors.Is(err, feed.ErrUserNotFound):
		status = http.StatusNotFound
		text = "resource not found"
	case errors.Is(err, reaction.ErrInvalidType):
		status = http.StatusBadRequest
		text = err.Error()
	case errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrRefreshMismatch),
		errors.Is(err, auth.ErrUserNotFound):
		status = http.StatusUnauthorized
		text = "invalid or expired credentials"
	}

	if message != "" {
		text = message
	}

	logger := logging.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request rejected", "status", status, "error", err)
	}

	fail(ctx, w, status, text)
}

func writeEnvelope(ctx context.Context, w http.ResponseWriter, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)

	if err := json.NewEncoder(w).Encode(env); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", env.StatusCode, "error", err)
	}
}

// decodeJSON reads a JSON request body into dst with a sane size cap.
func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(dst)
}
