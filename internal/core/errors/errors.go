package errors

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors - these represent business rule violations
var (
	// Authentication
	ErrMissingToken = errors.New("authentication token is missing")
	ErrInvalidToken = errors.New("authentication token is invalid or expired")
	ErrUserInactive = errors.New("user is inactive or no longer belongs to the tenant")
	ErrUserNotFound = errors.New("user not found")

	// Subscription validation
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrEntityIDRequired  = errors.New("entity ID is required")
	ErrForeignTenantRoom = errors.New("room belongs to a different tenant")

	// Rate limiting
	ErrRateLimited = errors.New("rate limit exceeded")

	// Presence
	ErrPresenceUnavailable = errors.New("presence store unavailable")

	// Dispatch
	ErrUnknownEventType = errors.New("unknown event type")
	ErrInvalidEvent     = errors.New("event failed structural validation")

	// Generic
	ErrNotFound = errors.New("resource not found")
	ErrInternal = errors.New("internal server error")
)

// AppError wraps errors with additional context for HTTP and socket responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAuthenticationError covers missing/invalid/expired tokens and inactive
// users. Connections carrying one of these are refused before any room join
// or presence write happens.
func NewAuthenticationError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "AUTHENTICATION_ERROR",
		StatusCode: 401,
	}
}

// NewValidationError rejects a malformed subscribe/unsubscribe action. The
// connection itself stays alive.
func NewValidationError(err error, message string, details map[string]interface{}) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		StatusCode: 422,
		Details:    details,
	}
}

// NewRateLimitError refuses a connection attempt pre-handshake. RetryAfter is
// surfaced to the client so well-behaved ones can back off.
func NewRateLimitError(retryAfter time.Duration) *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Message:    "Too many connection attempts. Please try again later.",
		Code:       "RATE_LIMITED",
		StatusCode: 429,
		Details: map[string]interface{}{
			"retryAfterSeconds": int(retryAfter.Seconds()),
		},
	}
}

// NewPresenceStoreError marks a backing-store failure. Callers log it and keep
// serving the socket rather than tearing the connection down.
func NewPresenceStoreError(err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrPresenceUnavailable, err),
		Message:    "Presence store operation failed",
		Code:       "PRESENCE_STORE_ERROR",
		StatusCode: 503,
	}
}

// NewDispatchError marks an event that failed base structural validation. The
// event is dropped and never delivered to any client.
func NewDispatchError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "DISPATCH_ERROR",
		StatusCode: 400,
	}
}

func NewNotFoundError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "NOT_FOUND",
		StatusCode: 404,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "An unexpected error occurred",
		Code:       "INTERNAL_ERROR",
		StatusCode: 500,
	}
}

// IsAuthenticationError reports whether err is an authentication failure.
func IsAuthenticationError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == "AUTHENTICATION_ERROR"
}

// IsRateLimitError reports whether err is a rate-limit rejection.
func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsPresenceStoreError reports whether err came from the presence backing store.
func IsPresenceStoreError(err error) bool {
	return errors.Is(err, ErrPresenceUnavailable)
}
