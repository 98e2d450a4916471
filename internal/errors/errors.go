package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable machine-readable identifier sent to clients.
type ErrorCode string

const (
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeConflict        ErrorCode = "CONFLICT"

	// Session lifecycle and attendance records
	ErrCodeActiveSessionExists ErrorCode = "ACTIVE_SESSION_EXISTS"
	ErrCodeSessionEnded        ErrorCode = "SESSION_ENDED"
	ErrCodeSessionNotActive    ErrorCode = "SESSION_NOT_ACTIVE"
	ErrCodeDuplicateDevice     ErrorCode = "DUPLICATE_DEVICE"

	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError is an error whose code and message are safe to show a client.
// The cause, if any, stays server side.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, cause: cause}
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

// SessionNotOwned is the single answer for owner-scoped lookups that miss or
// hit another owner's session, so ids cannot be probed.
func SessionNotOwned() *AppError {
	return New(ErrCodeForbidden, "Session not found or unauthorized")
}

func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func ActiveSessionExists() *AppError {
	return New(ErrCodeActiveSessionExists, "An active session already exists for this owner")
}

func SessionEnded() *AppError {
	return New(ErrCodeSessionEnded, "Session has already ended")
}

func SessionNotActive() *AppError {
	return New(ErrCodeSessionNotActive, "Session is not active")
}

func DuplicateDevice() *AppError {
	return New(ErrCodeDuplicateDevice, "An attendance record already exists for this device")
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// AsAppError finds an AppError anywhere in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns err's code, or ErrCodeInternal for anything that is not an AppError.
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
