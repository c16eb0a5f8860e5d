// pkg/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Error kinds. Backends classify their failures into one of these so that
// callers can branch with errors.Is.
var (
	ErrStore               = errors.New("store error")
	ErrConstraintViolation = &kindError{msg: "constraint violation", parent: ErrStore}
	ErrPermissionDenied    = errors.New("permission denied")
	ErrNotFound            = errors.New("not found")
)

type kindError struct {
	msg    string
	parent error
}

func (e *kindError) Error() string { return e.msg }

// Unwrap lets a constraint violation also match ErrStore.
func (e *kindError) Unwrap() error { return e.parent }

// OpError records the operation that failed together with its kind.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

// NewOpError classifies err under op. The kind is the first known kind err
// matches, ErrStore otherwise.
func NewOpError(op string, err error) *OpError {
	return &OpError{Op: op, Kind: KindOf(err), Err: err}
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Message is the text shown to the user.
func (e *OpError) Message() string {
	switch {
	case errors.Is(e.Kind, ErrConstraintViolation):
		return fmt.Sprintf("Could not %s: it conflicts with existing data.", e.Op)
	case errors.Is(e.Kind, ErrPermissionDenied):
		return fmt.Sprintf("Could not %s: permission denied.", e.Op)
	case errors.Is(e.Kind, ErrNotFound):
		return fmt.Sprintf("Could not %s: not found.", e.Op)
	default:
		return fmt.Sprintf("Could not %s. Please try again.", e.Op)
	}
}

// KindOf returns the error kind err carries.
func KindOf(err error) error {
	switch {
	case errors.Is(err, ErrConstraintViolation):
		return ErrConstraintViolation
	case errors.Is(err, ErrPermissionDenied):
		return ErrPermissionDenied
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	default:
		return ErrStore
	}
}
