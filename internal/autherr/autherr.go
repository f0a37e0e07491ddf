// Package autherr defines the error taxonomy exposed by the auth subsystem.
// Every failure that crosses a service boundary is one of these kinds; raw
// storage or provider errors are wrapped and never escape as-is.
package autherr

import (
	"errors"
	"fmt"
)

// Kind classifies an auth failure for boundary mapping (HTTP status, audit).
type Kind int

const (
	// Internal is the fallback for unclassified failures.
	Internal Kind = iota
	// BadRequest covers malformed payloads and generically framed
	// persistence hiccups.
	BadRequest
	// Unauthorized covers bad credentials, invalid or expired tokens, and
	// invalid or expired OIDC state.
	Unauthorized
	// NotFound covers missing resources on direct lookups.
	NotFound
	// Conflict covers duplicate emails and deletions blocked by ownership.
	Conflict
	// TooManyRequests covers rate-limit rejections.
	TooManyRequests
)

// Error is a kinded auth error with a caller-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an Error of the given kind with a caller-safe message.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind that records cause for logging while
// exposing only message to callers.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the Kind from err, or Internal if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf extracts the caller-safe message from err, or a generic message
// if err carries none.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
