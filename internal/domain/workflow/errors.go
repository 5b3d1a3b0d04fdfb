package workflow

import (
	"errors"
	"fmt"
)

// ErrorKind classifies workflow failures for callers and transports
type ErrorKind string

const (
	KindNotFoundError          ErrorKind = "NOT_FOUND"
	KindValidationError        ErrorKind = "VALIDATION"
	KindInvalidTransitionError ErrorKind = "INVALID_TRANSITION"
	KindAuthorizationError     ErrorKind = "AUTHORIZATION"
	KindConflictError          ErrorKind = "CONFLICT"
	KindPersistenceError       ErrorKind = "PERSISTENCE"
)

// Error is the typed error returned by workflow operations
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a workflow error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithDetails returns a copy of the error carrying the given details
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

var (
	// ErrNotFound is returned when a request id does not resolve to a record
	ErrNotFound = &Error{Kind: KindNotFoundError}

	// ErrValidation is returned for malformed actions or missing fields
	ErrValidation = &Error{Kind: KindValidationError}

	// ErrInvalidTransition is returned when an action is not legal from the current status
	ErrInvalidTransition = &Error{Kind: KindInvalidTransitionError}

	// ErrAuthorization is returned when the actor lacks permission for the step
	ErrAuthorization = &Error{Kind: KindAuthorizationError}

	// ErrConflict is returned when a concurrent transition won the race
	ErrConflict = &Error{Kind: KindConflictError}

	// ErrPersistence is returned when the underlying store fails
	ErrPersistence = &Error{Kind: KindPersistenceError}

	// ErrGuardFailed is returned when every guarded transition for a trigger rejects
	ErrGuardFailed = errors.New("guard condition failed")
)

// NotFound builds a NOT_FOUND error
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFoundError, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a VALIDATION error with a field-level detail
func Validation(field, message string) *Error {
	return &Error{
		Kind:    KindValidationError,
		Message: message,
		Details: map[string]any{"field": field},
	}
}

// InvalidTransition builds an INVALID_TRANSITION error
func InvalidTransition(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransitionError, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized builds an AUTHORIZATION error
func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorizationError, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a CONFLICT error
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflictError, Message: fmt.Sprintf(format, args...)}
}

// Persistence wraps a store failure
func Persistence(message string, err error) *Error {
	return &Error{Kind: KindPersistenceError, Message: message, Err: err}
}

// KindOf returns the workflow error kind carried by err, or "" if none
func KindOf(err error) ErrorKind {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}
	return ""
}
