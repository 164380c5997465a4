// Package errors provides custom error types for the dashboard data layer.
//
// Every remote query failure falls into one of three classes:
//   - TransportError: the request never produced an HTTP response
//   - StatusError: the backend answered with a non-2xx status
//   - DecodeError: the payload did not match the expected shape
//
// All three are surfaced to the presentation layer as "query failed" with a
// message. None of them is fatal to the process.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// TransportError wraps network-level failures (DNS, refused connection,
// timeout, cancelled context).
//
// Recovery strategy: one silent retry, then report
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new transport error with context
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// StatusError indicates that the backend answered with a non-success status.
//
// Recovery strategy: retry on 5xx and 429, report 4xx immediately
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("backend error: %s: HTTP %d: %s", e.Op, e.Code, e.Body)
	}
	return fmt.Sprintf("backend error: %s: HTTP %d", e.Op, e.Code)
}

// NewStatusError creates a new status error. Long bodies are cut on a rune
// boundary to keep log lines readable.
func NewStatusError(op string, code int, body string) *StatusError {
	const maxBody = 200
	if len(body) > maxBody {
		cut := maxBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	return &StatusError{Op: op, Code: code, Body: body}
}

// DecodeError indicates a malformed or unexpected payload.
//
// Recovery strategy: none, the same payload would fail again
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError creates a new decode error with context
func NewDecodeError(op string, err error) *DecodeError {
	return &DecodeError{Op: op, Err: err}
}

// IsTransport checks if the error chain contains a transport error
func IsTransport(err error) bool {
	var target *TransportError
	return stderrors.As(err, &target)
}

// IsStatus checks if the error chain contains a status error
func IsStatus(err error) bool {
	var target *StatusError
	return stderrors.As(err, &target)
}

// IsDecode checks if the error chain contains a decode error
func IsDecode(err error) bool {
	var target *DecodeError
	return stderrors.As(err, &target)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var target *StatusError
	if stderrors.As(err, &target) {
		return target.Code
	}
	return 0
}

// IsNotFound reports whether the backend answered 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsRetryable reports whether a second attempt could succeed.
//
// Transport failures, 5xx and 429 are retryable. Decode failures and other
// 4xx answers are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsDecode(err) {
		return false
	}
	if code := StatusCode(err); code != 0 {
		return code >= 500 || code == http.StatusTooManyRequests
	}
	return IsTransport(err)
}

// QueryFailed renders err as the uniform message shown to the presentation
// layer.
func QueryFailed(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("query failed: %v", err)
}
