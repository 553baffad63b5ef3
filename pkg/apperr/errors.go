// Package apperr defines the error kinds used across the workflow engine
// and HTTP adapter, and the HTTP status each kind maps to.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the HTTP adapter and the plan evaluator can
// decide how to propagate it without string-matching messages.
type Kind string

const (
	// ConfigInvalid marks a structurally invalid plan or a missing
	// referenced model, discovered at startup.
	ConfigInvalid Kind = "config_invalid"

	// RequestMalformed marks a client request missing required fields.
	RequestMalformed Kind = "request_malformed"

	// UpstreamHTTP marks a non-2xx response from a provider.
	UpstreamHTTP Kind = "upstream_http"

	// UpstreamProvider marks a 2xx response carrying an embedded error payload.
	UpstreamProvider Kind = "upstream_provider"

	// UpstreamMalformed marks a response with no extractable text and no
	// detectable error.
	UpstreamMalformed Kind = "upstream_malformed"

	// Timeout marks a stage deadline expiring.
	Timeout Kind = "timeout"

	// WorkersAllFailed marks zero successful workers at a plan level.
	WorkersAllFailed Kind = "workers_all_failed"

	// SelectorUnparseable marks a selector reply that was neither a valid
	// JSON choice nor integer-bearing text.
	SelectorUnparseable Kind = "selector_unparseable"

	// NoFinalResponse marks a selector-only path with no usable output.
	NoFinalResponse Kind = "no_final_response"
)

// Error is the error type carried through the engine. It always has a Kind
// so callers can branch on classification instead of matching message text.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error with the given kind, message, and underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// As reports whether err is (or wraps) an *Error and, if so, returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, or "" otherwise.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}
