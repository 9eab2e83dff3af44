package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError carries a stable code alongside the cause, for errors that cross the CLI or RPC
// boundary.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

var (
	// ErrInvalidInput marks configuration or request values that can never succeed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable marks an external dependency (tariff store) that did not answer.
	ErrUnavailable = errors.New("dependency unavailable")
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Unavailable wraps cause so it matches ErrUnavailable.
func Unavailable(code, message string, cause error) *AppError {
	return NewAppError(code, message, fmt.Errorf("%w: %w", ErrUnavailable, cause))
}

// StatusCode maps the sentinels above to gRPC codes; anything else is Internal.
func StatusCode(err error) codes.Code {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return codes.InvalidArgument
	case errors.Is(err, ErrUnavailable):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InvalidArgumentErrorf(format string, args ...any) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func FailedPreconditionError(message string) error {
	return status.Error(codes.FailedPrecondition, message)
}

func InternalErrorf(format string, args ...any) error {
	return status.Error(codes.Internal, fmt.Sprintf(format, args...))
}
