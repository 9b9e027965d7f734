package api

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a client error.
type ErrorKind string

const (
	// ErrorKindAuthentication means no credential source succeeded or the
	// token request was rejected. Fatal for the batch; nothing is submitted.
	ErrorKindAuthentication ErrorKind = "authentication_error"

	// ErrorKindTransport means a connection failure, a non-2xx status, or a
	// malformed response body on a fragment submission. Aborts the remaining
	// fragments of the batch.
	ErrorKindTransport ErrorKind = "transport_error"

	// ErrorKindApplication means the remote execution completed but reported
	// an error field. Recorded in the log; the batch continues.
	ErrorKindApplication ErrorKind = "application_error"
)

// Error is a structured client error with kind, message, and the 1-indexed
// fragment position it is attributable to (0 when not fragment-specific).
type Error struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Fragment int       `json:"fragment,omitempty"`
	Err      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Fragment > 0 {
		return fmt.Sprintf("%s: fragment %d: %s", e.Kind, e.Fragment, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewAuthenticationError creates an Error for credential resolution or
// token request failures.
func NewAuthenticationError(message string, cause error) *Error {
	return &Error{
		Kind:    ErrorKindAuthentication,
		Message: message,
		Err:     cause,
	}
}

// NewTransportError creates an Error for a fragment submission that failed
// at the transport level. fragment is 1-indexed.
func NewTransportError(fragment int, message string, cause error) *Error {
	return &Error{
		Kind:     ErrorKindTransport,
		Message:  message,
		Fragment: fragment,
		Err:      cause,
	}
}

// NewApplicationError creates an Error for a remote execution that
// completed with an error report. fragment is 1-indexed.
func NewApplicationError(fragment int, message string) *Error {
	return &Error{
		Kind:     ErrorKindApplication,
		Message:  message,
		Fragment: fragment,
	}
}

// IsAuthentication reports whether err is (or wraps) an authentication error.
func IsAuthentication(err error) bool {
	return isKind(err, ErrorKindAuthentication)
}

// IsTransport reports whether err is (or wraps) a transport error.
func IsTransport(err error) bool {
	return isKind(err, ErrorKindTransport)
}

func isKind(err error, kind ErrorKind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}
