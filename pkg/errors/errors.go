// Package errors defines the error taxonomy of the QA service. Retrieval and
// generation failures are recovered at the agent boundary and surfaced as
// error-shaped query results; the sentinels here let callers distinguish the
// failure classes programmatically instead of string-matching messages.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrRetrieval        = errors.New("retrieval failed")
	ErrGeneration       = errors.New("answer generation failed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDocumentTooLarge = errors.New("document too large")
	ErrUnsupportedType  = errors.New("unsupported document type")
	ErrSessionNotFound  = errors.New("session not found")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnsupportedType):
		return http.StatusBadRequest
	case errors.Is(err, ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrRetrieval), errors.Is(err, ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
