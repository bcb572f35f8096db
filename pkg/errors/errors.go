// Package errors holds the failure kinds the hotel search services report and
// how each one reaches an HTTP client.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDecoding          = errors.New("document is not valid text")
	ErrCorpusUnavailable = errors.New("corpus not loaded")
	ErrInvalidInput      = errors.New("invalid input")
	ErrCacheDisabled     = errors.New("caching is disabled")
	ErrTimeout           = errors.New("operation timed out")
)

// sentinelStatus is consulted, in order, for errors that carry a sentinel but
// no AppError.
var sentinelStatus = []struct {
	sentinel error
	status   int
}{
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrDecoding, http.StatusUnprocessableEntity},
	{ErrCorpusUnavailable, http.StatusServiceUnavailable},
	{ErrCacheDisabled, http.StatusServiceUnavailable},
	{ErrTimeout, http.StatusServiceUnavailable},
}

// AppError pairs a sentinel with a client-facing message and status.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// HTTPStatusCode picks the response status for err: an AppError's own status,
// else the status of the first sentinel in its chain, else 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	for _, s := range sentinelStatus {
		if errors.Is(err, s.sentinel) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// Public returns the status and the message a client may see. Unclassified
// failures become "internal error" so backend addresses and driver messages
// stay in the logs.
func Public(err error) (int, string) {
	status := HTTPStatusCode(err)
	var appErr *AppError
	if !errors.As(err, &appErr) && status == http.StatusInternalServerError {
		return status, "internal error"
	}
	return status, err.Error()
}
