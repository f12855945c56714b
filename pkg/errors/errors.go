package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the failure classes the service distinguishes.
// Match with errors.Is; every AppError wraps exactly one of these.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrInternal       = errors.New("internal error")
)

// AppError is a structured application error carrying a machine-readable
// code, a caller-safe message, and the HTTP status it maps to. Messages must
// stay free of internals (connection strings, keys, stack traces).
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(code string, status int, sentinel error, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: sentinel}
}

// NotFound creates a 404 error naming the missing resource and its id.
func NotFound(resource, id string) *AppError {
	msg := fmt.Sprintf("%s with id %s not found", resource, id)
	return newAppError("NOT_FOUND", http.StatusNotFound, ErrNotFound, msg)
}

// InvalidInput creates a 400 error. The message should name the offending
// field and value so the caller can act on it.
func InvalidInput(message string) *AppError {
	return newAppError("INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput, message)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return newAppError("UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized, message)
}

// Conflict creates a 409 error for optimistic-concurrency failures. The
// caller may safely retry the request.
func Conflict(message string) *AppError {
	return newAppError("CONFLICT", http.StatusConflict, ErrConflict, message)
}

// ServiceUnavailable creates a 503 error for transient infrastructure
// failures (store or collaborator down, circuit open, timeout).
func ServiceUnavailable(message string) *AppError {
	return newAppError("SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail, message)
}

// Internal creates a 500 error. The wrapped cause is kept for logs; the
// message shown to callers is deliberately generic.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// HTTPStatus returns the HTTP status code for the given error, unwrapping
// AppError first and falling back to sentinel matching.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
