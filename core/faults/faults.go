// Package faults defines the error taxonomy shared by all dispatch
// components. Callers branch on the kind, not on message text.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind int

const (
	// Validation marks malformed input. Never retried.
	Validation Kind = iota + 1
	// NotFound marks an unknown gig, provider or dispute id.
	NotFound
	// Conflict marks a lost race, e.g. a gig already confirmed by another
	// provider. Clients should refresh state rather than retry blindly.
	Conflict
	// InvalidState marks an operation that is not legal in the current
	// lifecycle state. Always an ordering error, never retried.
	InvalidState
	// Upstream marks a collaborator failure (storage, payment, push).
	Upstream
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case InvalidState:
		return "invalid_state"
	case Upstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error carries a kind alongside the message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf builds a Validation error.
func Validationf(format string, args ...any) error {
	return &Error{Kind: Validation, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: NotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a Conflict error.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: Conflict, Msg: fmt.Sprintf(format, args...)}
}

// InvalidStatef builds an InvalidState error.
func InvalidStatef(format string, args ...any) error {
	return &Error{Kind: InvalidState, Msg: fmt.Sprintf(format, args...)}
}

// Upstreamf wraps a collaborator failure.
func Upstreamf(err error, format string, args ...any) error {
	return &Error{Kind: Upstream, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or zero when err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool { return KindOf(err) == k }
