package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and services use these instead of
// hardcoded strings so HTTP status mapping stays consistent.
const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidLat   ErrorCode = "validation_invalid_latitude"
	ErrCodeValidationInvalidLon   ErrorCode = "validation_invalid_longitude"
	ErrCodeValidationHorizon      ErrorCode = "validation_invalid_horizon"
	ErrCodeValidationBatchSize    ErrorCode = "validation_batch_size_exceeded"
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"

	// Remote model path. These codes are fallback signals: the orchestrator
	// absorbs them and switches to the local simulator, so they never reach
	// API clients under normal operation.
	//
	// remote_unavailable   - credentials not configured; the expected state
	//                        in local-only deployments, not an error.
	// remote_not_deployed  - the model endpoint returned 404; an expected
	//                        transitional state, logged at info level.
	// remote_auth_failed   - token exchange rejected; logged at warn level.
	// remote_failed        - timeout, network error or unexpected status;
	//                        logged at error level.
	ErrCodeRemoteUnavailable ErrorCode = "remote_unavailable"
	ErrCodeRemoteNotDeployed ErrorCode = "remote_not_deployed"
	ErrCodeRemoteAuthFailed  ErrorCode = "remote_auth_failed"
	ErrCodeRemoteFailed      ErrorCode = "remote_failed"

	// Internal (500)
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Unrecognized codes map to 500 as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "remote_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. All domain and handler
// errors are expressed as AppError to enable consistent error formatting,
// HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details
// that are safe to expose to API clients.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
