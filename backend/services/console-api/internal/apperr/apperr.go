// Package apperr defines the error kinds every console operation reports.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Kinds are stable identifiers exposed to clients.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindInvalidTransition Kind = "invalid_state_transition"
	KindInvalidToken      Kind = "invalid_token"
	KindNotAuthorized     Kind = "not_authorized"
	KindConflict          Kind = "conflict"
	KindNotFound          Kind = "not_found"
	KindUnauthenticated   Kind = "unauthenticated"
)

// Error is a classified failure carrying a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrInvalidToken) works
// regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrInvalidToken      = &Error{Kind: KindInvalidToken}
	ErrNotAuthorized     = &Error{Kind: KindNotAuthorized}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
)

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) error {
	return newf(KindValidation, format, args...)
}

func InvalidTransition(format string, args ...interface{}) error {
	return newf(KindInvalidTransition, format, args...)
}

func InvalidToken(format string, args ...interface{}) error {
	return newf(KindInvalidToken, format, args...)
}

// NotAuthorized never names the target, so it cannot reveal whether the entity exists.
func NotAuthorized() error {
	return &Error{Kind: KindNotAuthorized, Message: "not authorized"}
}

func Conflict(format string, args ...interface{}) error {
	return newf(KindConflict, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newf(KindNotFound, format, args...)
}

// Unauthenticated reports a missing or rejected credential.
func Unauthenticated(format string, args ...interface{}) error {
	return newf(KindUnauthenticated, format, args...)
}

// KindOf returns the kind of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
