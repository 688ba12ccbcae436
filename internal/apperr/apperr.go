// Package apperr defines the typed failures surfaced by the coordinator and
// registries so the API layer can map each kind to an HTTP status.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	// KindNotFound means a referenced entity does not exist.
	KindNotFound Kind = iota
	// KindResourceUnavailable means the entity exists but fails a precondition
	// (wrong status, inactive, already booked).
	KindResourceUnavailable
	// KindInvalidState means the operation is not legal for the activity's
	// current lifecycle state.
	KindInvalidState
	// KindInvalidInput means a malformed numeric or date input.
	KindInvalidInput
	// KindConflict means a write was blocked by an existing reference or a
	// duplicate key.
	KindConflict
	// KindInternal is an unexpected storage or infrastructure failure.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindResourceUnavailable:
		return "resource_unavailable"
	case KindInvalidState:
		return "invalid_state"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is an application error with enough detail for the caller to react.
type Error struct {
	Kind   Kind
	Entity string // e.g. "truck", "hauling activity"
	ID     string // offending id, when known
	Msg    string
	Err    error // wrapped cause, if any
}

func (e *Error) Error() string {
	s := e.Msg
	if s == "" {
		s = fmt.Sprintf("%s %s", e.Entity, e.Kind)
	}
	if e.ID != "" {
		s = fmt.Sprintf("%s (id %s)", s, e.ID)
	}
	if e.Err != nil {
		s = fmt.Sprintf("%s: %v", s, e.Err)
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two application errors by kind, so callers can write
// errors.Is(err, apperr.NotFound("", "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Msg: entity + " not found"}
}

func Unavailable(entity, id, msg string) *Error {
	return &Error{Kind: KindResourceUnavailable, Entity: entity, ID: id, Msg: msg}
}

func InvalidState(entity, id, msg string) *Error {
	return &Error{Kind: KindInvalidState, Entity: entity, ID: id, Msg: msg}
}

func InvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Msg: msg}
}

func Conflict(entity, id, msg string) *Error {
	return &Error{Kind: KindConflict, Entity: entity, ID: id, Msg: msg}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Msg: "internal error", Err: err}
}
