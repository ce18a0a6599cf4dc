package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures reported to callers of the store operations.
type ErrorKind string

// Error kinds surfaced by lifecycle operations.
const (
	KindInvalidInput  ErrorKind = "invalid_input"
	KindNotFound      ErrorKind = "not_found"
	KindAlreadyExists ErrorKind = "already_exists"
	// KindUnauthorized is declared for callers that gate operations; no store operation returns it.
	KindUnauthorized ErrorKind = "unauthorized"
)

// Error is a typed operation failure carrying a human-readable message.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is matches kind sentinels so errors.Is(err, ErrNotFound) works for any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// Kind sentinels for errors.Is comparisons.
var (
	ErrInvalidInput  = &Error{Kind: KindInvalidInput}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrAlreadyExists = &Error{Kind: KindAlreadyExists}
	ErrUnauthorized  = &Error{Kind: KindUnauthorized}
)

// InvalidInput builds an InvalidInput error.
func InvalidInput(msg string) error { return &Error{Kind: KindInvalidInput, Msg: msg} }

// NotFound builds a NotFound error.
func NotFound(msg string) error { return &Error{Kind: KindNotFound, Msg: msg} }

// AlreadyExists builds an AlreadyExists error.
func AlreadyExists(msg string) error { return &Error{Kind: KindAlreadyExists, Msg: msg} }

// KindOf extracts the error kind. Blocking rule violations are reported as
// invalid input; errors without a kind (backend failures) return "".
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	var violation RuleViolationError
	if errors.As(err, &violation) {
		return KindInvalidInput
	}
	return ""
}
