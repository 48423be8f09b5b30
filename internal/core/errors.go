package core

import (
	"errors"
	"fmt"
)

// Failure taxonomy shared by storage, engines and transport.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrForbidden    = errors.New("forbidden")

	// ErrAlreadyCheckedIn is a Conflict: a second check-in on the same calendar day.
	ErrAlreadyCheckedIn = fmt.Errorf("%w: already checked in today", ErrConflict)

	// ErrVersionMismatch is returned by conditional writes whose precondition no longer holds.
	// Callers re-read and retry; it never reaches the transport layer.
	ErrVersionMismatch = errors.New("version mismatch")
)

// FieldError reports a single invalid field. It unwraps to ErrInvalidInput.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidInput
}

// InvalidField builds a *FieldError.
func InvalidField(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// NotFoundf wraps ErrNotFound with the entity name.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
