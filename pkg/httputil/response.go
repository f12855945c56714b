package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/MiSArch/shoppingcart/pkg/errors"
	"github.com/MiSArch/shoppingcart/pkg/logger"
	"github.com/MiSArch/shoppingcart/pkg/validator"
)

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorEnvelope(w http.ResponseWriter, status int, e *ErrorResponse) {
	WriteJSON(w, status, Response{Error: e})
}

// WriteError writes a standardized error response based on the error type.
// It prefers the request-scoped logger from context (set by the
// RequestLogger middleware) over the fallback logger, and includes the
// correlation ID in the payload when present.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}

	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		writeErrorEnvelope(w, appErr.Status, &ErrorResponse{
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: requestID,
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code, message := classify(err)

	if status == http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	writeErrorEnvelope(w, status, &ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: requestID,
	})
}

// classify maps a bare sentinel error to the caller-facing code and message.
// Messages for internal failures stay generic; the detail goes to the log.
func classify(err error) (code, message string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return "NOT_FOUND", "resource not found"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "INVALID_INPUT", err.Error()
	case errors.Is(err, apperrors.ErrConflict):
		return "CONFLICT", "the resource was modified concurrently, retry the request"
	case errors.Is(err, apperrors.ErrServiceUnavail):
		return "SERVICE_UNAVAILABLE", "a downstream dependency is unavailable, retry later"
	default:
		return "INTERNAL_ERROR", "an internal error occurred"
	}
}

// WriteValidationError writes a field-level validation error response.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeErrorEnvelope(w, http.StatusBadRequest, &ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		})
		return
	}

	writeErrorEnvelope(w, http.StatusBadRequest, &ErrorResponse{
		Code:    "INVALID_INPUT",
		Message: err.Error(),
	})
}

// PaginatedResponse is a generic paginated list response envelope.
type PaginatedResponse[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewPaginatedResponse constructs a PaginatedResponse from the given data,
// total count, page, and per-page values. Data is never null in the JSON
// output; an empty page serializes as [].
func NewPaginatedResponse[T any](data []T, totalCount, page, perPage int) PaginatedResponse[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := (totalCount + perPage - 1) / perPage
	return PaginatedResponse[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
