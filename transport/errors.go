package transport

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnauthorized matches an *HTTPError with status 401 via errors.Is.
var ErrUnauthorized = errors.New("transport: unauthorized")

// TimeoutError reports an attempt that exceeded its deadline.
type TimeoutError struct {
	Method string
	Path   string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transport: %s %s timed out after %s", e.Method, e.Path, e.After)
}

func (e *TimeoutError) Timeout() bool { return true }

// NetworkError reports a request that never produced a response.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. It is never retried.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("transport: %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("transport: %s %s: %d %s: %s", e.Method, e.Path, e.Status, http.StatusText(e.Status), e.Body)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// DecodeError reports a 2xx body that could not be decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("transport: decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// BodyTooLargeError is a 2xx response whose body exceeds Limit bytes. It is
// never retried.
type BodyTooLargeError struct {
	Method string
	Path   string
	Limit  int64
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("transport: %s %s: response body exceeds %d bytes", e.Method, e.Path, e.Limit)
}

// Retryable reports whether err is a timeout or a network failure.
func Retryable(err error) bool {
	var te *TimeoutError
	var ne *NetworkError
	return errors.As(err, &te) || errors.As(err, &ne)
}
