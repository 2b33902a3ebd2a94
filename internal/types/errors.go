package types

import (
	"errors"
	"fmt"
)

// Terminal errors produced by the retry coordinator. Callers match them with
// errors.Is(); the original platform error is kept in the wrap chain.
var (
	// ErrRateLimitExceeded is returned after exhausting retries on rate-limit failures.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrConnectionFailed is returned after exhausting retries on connection failures.
	ErrConnectionFailed = errors.New("video connection failed")

	// ErrOperationBlocked is returned while an operation key is under cooldown,
	// before the wrapped operation is invoked.
	ErrOperationBlocked = errors.New("operation temporarily blocked, wait before retrying")

	// ErrConnectionAttemptsExceeded is returned when the socket attempt window
	// for a subject is exhausted.
	ErrConnectionAttemptsExceeded = errors.New("connection rate limit reached, wait before reconnecting")

	// ErrSessionClosed is returned when an operation is issued against a manager
	// or session handle that was already torn down.
	ErrSessionClosed = errors.New("session closed")
)

type HttpError interface {
	error
	StatusCode() int
}

func NewHttpError(code int, message string) HttpError {
	return &httpError{code, message}
}

func NewHttpErrorf(code int, message string, a ...interface{}) HttpError {
	return &httpError{code, fmt.Sprintf(message, a...)}
}

type httpError struct {
	code    int
	message string
}

func (e *httpError) Error() string {
	return e.message
}

func (e *httpError) StatusCode() int {
	return e.code
}
