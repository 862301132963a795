package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/finvault/realtime-backend/internal/adapters/primary/http/middleware"
	apperrors "github.com/finvault/realtime-backend/internal/core/errors"
)

// GetRequestID returns the request ID set by the RequestID middleware.
func GetRequestID(ctx context.Context) string {
	return middleware.GetRequestID(ctx)
}

// ClientIP returns the originating client address for the request.
func ClientIP(r *http.Request) string {
	return middleware.ClientIP(r)
}

// ErrorResponse is the shape of every error body returned by the API.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// WriteError maps an application error to an HTTP error response. Unknown
// errors are reported as 500 without leaking internals.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{
		Error:     "Internal server error",
		Code:      "INTERNAL_ERROR",
		RequestID: GetRequestID(r.Context()),
	}
	status := http.StatusInternalServerError

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
		resp.Code = appErr.Code
		resp.Details = appErr.Details
		status = appErr.StatusCode
	}

	WriteJSON(w, status, resp)
}
