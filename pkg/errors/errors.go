package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application-level error with HTTP status code
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeInvalidState          = "invalid_state"
	ErrCodeAuthFailed            = "auth_failed"
	ErrCodeKeyStoreEmpty         = "key_store_empty"
	ErrCodeUnknownRequestID      = "unknown_request_id"
	ErrCodeDuplicateRequestID    = "duplicate_request_id"
	ErrCodeRequestTimeout        = "request_timeout"
	ErrCodeUserRejected          = "user_rejected"
	ErrCodeOriginNotAllowed      = "origin_not_allowed"
	ErrCodeUnknownMessageType    = "unknown_msg_type"
	ErrCodeSignerUnavailable     = "signer_unavailable"
	ErrCodeSignerVersionMismatch = "signer_version_mismatch"
	ErrCodeUnauthorized          = "unauthorized"
	ErrCodeBadRequest            = "bad_request"
	ErrCodeRateLimited           = "rate_limited"
	ErrCodeInternalError         = "internal_error"
)

// Predefined errors
var (
	ErrAuthFailed = &AppError{
		Code:       ErrCodeAuthFailed,
		Message:    "Invalid password",
		StatusCode: http.StatusUnauthorized,
	}

	ErrKeyStoreEmpty = &AppError{
		Code:       ErrCodeKeyStoreEmpty,
		Message:    "Key store is empty",
		StatusCode: http.StatusNotFound,
	}

	ErrUnauthorized = &AppError{
		Code:       ErrCodeUnauthorized,
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrBadRequest = &AppError{
		Code:       ErrCodeBadRequest,
		Message:    "Invalid request parameters",
		StatusCode: http.StatusBadRequest,
	}

	ErrRateLimited = &AppError{
		Code:       ErrCodeRateLimited,
		Message:    "Too many requests",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrInternalError = &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Detail:     detail,
		StatusCode: statusCode,
	}
}

// InvalidState reports an operation that is illegal for the current
// key-ring status
func InvalidState(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidState,
		Message:    "Operation not allowed in current key-ring state",
		Detail:     detail,
		StatusCode: http.StatusConflict,
	}
}

// UnknownRequestID reports a lookup of a request id that is not pending
func UnknownRequestID(id string) *AppError {
	return &AppError{
		Code:       ErrCodeUnknownRequestID,
		Message:    "Unknown request id",
		Detail:     fmt.Sprintf("id: %s", id),
		StatusCode: http.StatusNotFound,
	}
}

// DuplicateRequestID reports an attempt to register an id that is already pending
func DuplicateRequestID(id string) *AppError {
	return &AppError{
		Code:       ErrCodeDuplicateRequestID,
		Message:    "Request id is already pending",
		Detail:     fmt.Sprintf("id: %s", id),
		StatusCode: http.StatusConflict,
	}
}

// RequestTimeout reports a pending request that expired before resolution
func RequestTimeout(id string) *AppError {
	return &AppError{
		Code:       ErrCodeRequestTimeout,
		Message:    "Request timed out waiting for approval",
		Detail:     fmt.Sprintf("id: %s", id),
		StatusCode: http.StatusRequestTimeout,
	}
}

// UserRejected reports an explicit rejection of a pending request
func UserRejected(id string) *AppError {
	return &AppError{
		Code:       ErrCodeUserRejected,
		Message:    "Request rejected by user",
		Detail:     fmt.Sprintf("id: %s", id),
		StatusCode: http.StatusForbidden,
	}
}

// OriginNotAllowed reports an external message that failed the origin check
func OriginNotAllowed(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeOriginNotAllowed,
		Message:    "Message origin not allowed",
		Detail:     detail,
		StatusCode: http.StatusForbidden,
	}
}

// UnknownMessageType reports a dispatch miss for a route/type pair
func UnknownMessageType(route, msgType string) *AppError {
	return &AppError{
		Code:       ErrCodeUnknownMessageType,
		Message:    "Unknown message type",
		Detail:     fmt.Sprintf("route: %s, type: %s", route, msgType),
		StatusCode: http.StatusBadRequest,
	}
}

// SignerUnavailable reports a remote signer that cannot currently serve requests
func SignerUnavailable(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeSignerUnavailable,
		Message:    "Remote signer unavailable",
		Detail:     detail,
		StatusCode: http.StatusServiceUnavailable,
	}
}

// SignerVersionMismatch reports a remote signer running an unsupported version
func SignerVersionMismatch(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeSignerVersionMismatch,
		Message:    "Remote signer version not supported",
		Detail:     detail,
		StatusCode: http.StatusBadGateway,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError carrying the given code
func HasCode(err error, code string) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}
