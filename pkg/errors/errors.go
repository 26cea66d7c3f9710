package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeUnauthenticated       = "UNAUTHENTICATED"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeRequestAlreadyTaken   = "REQUEST_ALREADY_TAKEN"
	CodeNotFound              = "NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
	CodeTooManyRequests       = "TOO_MANY_REQUESTS"
	CodeInternal              = "INTERNAL_ERROR"
)

const (
	SeverityError = "error"
	SeverityInfo  = "info"
)

type AppError struct {
	Code     string
	Message  string
	Status   int
	Severity string
	Err      error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Status:   status,
		Severity: SeverityError,
		Err:      err,
	}
}

// Validation is the caller's fault; no state was changed.
func Validation(message string, err error) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest, err)
}

// BadRequest is kept for handler-level binding errors.
func BadRequest(message string, err error) *AppError {
	return Validation(message, err)
}

// Unauthenticated means no trusted identity reached the core.
func Unauthenticated(message string, err error) *AppError {
	return New(CodeUnauthenticated, message, http.StatusUnauthorized, err)
}

// Unauthorized means the actor is not a party to the resource.
func Unauthorized(message string, err error) *AppError {
	return New(CodeUnauthorized, message, http.StatusForbidden, err)
}

func InvalidTransition(message string) *AppError {
	return New(CodeInvalidTransition, message, http.StatusConflict, nil)
}

// RequestAlreadyTaken is the expected outcome of losing an accept race.
func RequestAlreadyTaken() *AppError {
	return &AppError{
		Code:     CodeRequestAlreadyTaken,
		Message:  "Another provider has already accepted this request",
		Status:   http.StatusConflict,
		Severity: SeverityInfo,
	}
}

func NotFound(resource string, err error) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, err)
}

// Conflict signals a failed conditional write. The state machine maps it to a
// domain error after re-reading; it should not normally reach a client.
func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict, nil)
}

func DependencyUnavailable(message string, err error) *AppError {
	return New(CodeDependencyUnavailable, message, http.StatusServiceUnavailable, err)
}

func TooManyRequests(message string, err error) *AppError {
	return New(CodeTooManyRequests, message, http.StatusTooManyRequests, err)
}

func Internal(message string, err error) *AppError {
	return New(CodeInternal, message, http.StatusInternalServerError, err)
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable reports whether a caller may retry with backoff.
func IsRetryable(err error) bool {
	return Is(err, CodeDependencyUnavailable)
}
