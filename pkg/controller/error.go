package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/nimburion/recordlock/pkg/identity"
	"github.com/nimburion/recordlock/pkg/locking"
	"github.com/nimburion/recordlock/pkg/server/router"
)

// codeInternal is reported for errors that carry no HTTP mapping. Their text
// is not sent to the client.
const codeInternal = "internal"

// AppError is an error that already knows its HTTP rendering.
type AppError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// MapError picks the status and body for err. Policy validation errors are
// 422, unresolvable entities 400 and anything unknown 500.
func MapError(ctx context.Context, err error) (int, router.ErrorResponse) {
	requestID, _ := identity.RequestID(ctx)

	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, locking.ErrInvalidPolicy), errors.Is(err, locking.ErrDuplicatePolicy):
		appErr = &AppError{Status: http.StatusUnprocessableEntity, Code: "policy.invalid", Message: err.Error()}
	case errors.Is(err, locking.ErrUnresolvableEntity):
		appErr = NewValidationError(err.Error(), nil)
	default:
		appErr = &AppError{Status: http.StatusInternalServerError, Code: codeInternal, Message: "an unexpected error occurred"}
	}

	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return status, router.ErrorResponse{
		Error:     router.ErrorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details},
		RequestID: requestID,
	}
}

func NewValidationError(message string, details map[string]any) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: "validation.failed", Message: message, Details: details}
}

func NewNotFoundError(code, message string, details map[string]any) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: code, Message: message, Details: details}
}

// NewUnavailableError reports a dependency failure such as an unreachable
// policy source.
func NewUnavailableError(message string, err error) *AppError {
	return &AppError{Status: http.StatusServiceUnavailable, Code: "dependency.unavailable", Message: message, Err: err}
}
