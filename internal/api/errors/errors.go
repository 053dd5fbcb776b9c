package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/nkkko/pushreg/internal/registry"
)

// ErrorType defines the type of error
type ErrorType string

const (
	// ErrorTypeValidation represents a validation error
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeNotFound represents a not found error
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeConflict represents a conflict error
	ErrorTypeConflict ErrorType = "conflict"

	// ErrorTypeInternal represents an internal server error
	ErrorTypeInternal ErrorType = "internal"
)

// APIError represents a standardized API error
type APIError struct {
	Type      ErrorType `json:"type"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	HTTPCode  int       `json:"-"` // Not serialized
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to the error
func (e *APIError) WithRequestID(requestID string) *APIError {
	e.RequestID = requestID
	return e
}

// ValidationError creates a new validation error
func ValidationError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeValidation,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusBadRequest,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeNotFound,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusNotFound,
	}
}

// ConflictError creates a new conflict error
func ConflictError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeConflict,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusConflict,
	}
}

// InternalError creates a new internal server error
func InternalError(code string, message string) *APIError {
	return &APIError{
		Type:     ErrorTypeInternal,
		Code:     code,
		Message:  message,
		HTTPCode: http.StatusInternalServerError,
	}
}

// FromError creates a new API error from a Go error, mapping registry
// failures to their HTTP equivalents
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}

	// Check if it's already an APIError
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	var expErr *registry.ExpireTimeInvalidError
	if stderrors.As(err, &expErr) {
		return ValidationError("expire_time_invalid", expErr.Reason).
			WithDetails(map[string]any{"requested": expErr.Requested})
	}

	var clientErr *registry.DeviceClientIDInvalidError
	if stderrors.As(err, &clientErr) {
		return ConflictError("device_client_id_invalid", clientErr.Reason).
			WithDetails(map[string]any{"device_client_id": clientErr.Value})
	}

	var tokenErr *registry.TokenInvalidError
	if stderrors.As(err, &tokenErr) {
		return ConflictError("device_token_invalid", tokenErr.Reason)
	}

	var nfErr *registry.NotFoundError
	if stderrors.As(err, &nfErr) {
		return NotFoundError("subscription_not_found", "Subscription not found").
			WithDetails(map[string]any{"id": nfErr.ID})
	}

	// Default to an internal server error; the cause is logged, not returned
	return InternalError("internal_error", "Internal server error")
}
