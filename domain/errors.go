package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"
	ErrCodeUpstream     ErrorCode = "UPSTREAM"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error carrying the same code and message, so sentinel
// errors keep working with errors.Is after being wrapped.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Invalid builds a validation error.
func Invalid(message string) *Error {
	return NewError(ErrCodeInvalid, message)
}

// Upstream classifies a storage, scheduler or messaging failure. Domain errors
// pass through untouched so not-found and conflict results survive the wrap.
func Upstream(message string, err error) error {
	if err == nil {
		return nil
	}
	var dErr *Error
	if errors.As(err, &dErr) {
		return err
	}
	return WrapError(ErrCodeUpstream, message, err)
}

// Common domain errors.
var (
	ErrProfileNotFound      = NewError(ErrCodeNotFound, "profile not found")
	ErrProfileConflict      = NewError(ErrCodeConflict, "profile was modified concurrently")
	ErrTaskNotFound         = NewError(ErrCodeNotFound, "task not found")
	ErrTaskExists           = NewError(ErrCodeConflict, "task id already in use")
	ErrTaskAlreadyCompleted = NewError(ErrCodeConflict, "task already completed")
	ErrLaunchTokenNotFound  = NewError(ErrCodeNotFound, "launch token not found")
	ErrReminderNotFuture    = NewError(ErrCodeInvalid, "reminder time must be in the future")
	ErrRateLimited          = NewError(ErrCodeRateLimited, "daily limit reached")
	ErrUnauthorized         = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrForbidden            = NewError(ErrCodeForbidden, "forbidden")
	ErrInvalidPayload       = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
