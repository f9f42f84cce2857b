// Package apperr defines the error taxonomy shared by the domain engines
// and the HTTP layer. Engines only ever return these errors across their
// boundary; raw driver errors are wrapped before they escape.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure into one of the response families the API uses.
type Kind int

const (
	// KindInvalidInput is caller-fixable bad input, detected before any mutation.
	KindInvalidInput Kind = iota
	// KindPrincipalNotFound means the authenticated identity no longer exists
	// in the store (stale session).
	KindPrincipalNotFound
	// KindForbidden means authenticated but lacking participant/role standing.
	KindForbidden
	// KindReferenceNotFound means a referenced secondary entity (friend, chat,
	// message, participant) does not exist or fails a relationship precondition.
	KindReferenceNotFound
	// KindConflict means the requested creation already exists in equivalent form.
	KindConflict
	// KindDependencyFailure means a store or collaborator operation failed
	// unexpectedly (connection loss, commit error).
	KindDependencyFailure
)

// Error carries a taxonomy kind, a caller-facing message and an optional
// wrapped cause.
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

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// New builds a taxonomy error with a caller-facing message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a taxonomy error around an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the taxonomy kind from err. Anything that is not an *Error
// is treated as a dependency failure so unclassified errors never masquerade
// as caller mistakes.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindDependencyFailure
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode maps a taxonomy kind to its HTTP status family.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindPrincipalNotFound:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindReferenceNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to ship to clients. Dependency
// failures are flattened to a generic message so internals never leak.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindDependencyFailure {
		return ae.Message
	}
	return "internal server error"
}
