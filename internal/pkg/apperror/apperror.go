package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an error independently of its HTTP status.
type Kind string

const (
	KindInvalidDateRange     Kind = "InvalidDateRange"
	KindCapacityExhausted    Kind = "CapacityExhausted"
	KindRestrictionViolation Kind = "RestrictionViolation"
	KindRoomNotReady         Kind = "RoomNotReady"
	KindGuaranteeRequired    Kind = "GuaranteeRequired"
	KindOutstandingBalance   Kind = "OutstandingBalance"
	KindBusy                 Kind = "Busy"
	KindChannelConflict      Kind = "ChannelConflict"
	KindNotFound             Kind = "NotFound"
	KindInvalidTransition    Kind = "InvalidTransition"
	KindInvalidInput         Kind = "InvalidInput"
	KindUnauthorized         Kind = "Unauthorized"
	KindInternal             Kind = "Internal"
)

// AppError is a custom error type that includes an HTTP status code and an error kind.
type AppError struct {
	Code    int    // HTTP Status Code (e.g., 400, 404)
	Kind    Kind   // Stable machine-readable classification
	Message string // User-facing error message
	Err     error  // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with a status code, kind and message.
func New(code int, kind Kind, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(err error, code int, kind Kind, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Detail returns a copy of the sentinel with a more specific message.
// errors.Is against the sentinel still holds.
func Detail(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:    sentinel.Code,
		Kind:    sentinel.Kind,
		Message: message,
		Err:     sentinel,
	}
}

// KindOf returns the kind of the first AppError in the chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status of the first AppError in the chain, or 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the caller may safely retry the request.
func Retryable(err error) bool {
	return KindOf(err) == KindBusy
}
