// Package apperr defines the error taxonomy shared by the permission gate,
// the request dispatcher, and the notification escalator.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP mapping and caller behavior.
type Kind int

const (
	// KindNotFound: a referenced org/location/event/request is missing.
	// Fatal to the call, never retried.
	KindNotFound Kind = iota + 1
	// KindInvalidState: the graph is not in the state the request claims
	// (wrong old region, same source and target, wrong org type).
	KindInvalidState
	// KindUnauthorized: the permission gate failed. Surfaced distinctly so
	// callers can prompt re-authentication instead of showing a data error.
	KindUnauthorized
	// KindDelivery: a notification send failed. Logged, non-fatal, never
	// rolls back the already-committed request.
	KindDelivery
)

// Error carries a kind plus a caller-facing message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// InvalidState builds a KindInvalidState error.
func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

// Unauthorized builds a KindUnauthorized error.
func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

// Delivery wraps a send failure.
func Delivery(err error, format string, args ...any) *Error {
	return &Error{Kind: KindDelivery, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return Is(err, KindNotFound) }

// IsInvalidState reports whether err is an InvalidState error.
func IsInvalidState(err error) bool { return Is(err, KindInvalidState) }

// IsUnauthorized reports whether err is an Unauthorized error.
func IsUnauthorized(err error) bool { return Is(err, KindUnauthorized) }
