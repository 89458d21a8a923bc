// Package apperr holds the error taxonomy shared by repositories, services
// and the HTTP layer. Callers classify with errors.Is against the Err* kinds.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage failure")
	ErrTransaction  = errors.New("transaction failed")
	ErrUnauthorized = errors.New("invalid credentials")
)

// Error pairs a kind with a caller-facing message and an optional cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Validationf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Msg: fmt.Sprintf(format, args...)}
}

func Unauthorized() error {
	return &Error{Kind: ErrUnauthorized}
}

func Storage(err error, msg string) error {
	return &Error{Kind: ErrStorage, Msg: msg, Err: err}
}

// Transaction wraps err as a transaction failure unless it already carries
// a more specific kind (validation, conflict, not found).
func Transaction(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &Error{Kind: ErrTransaction, Msg: msg, Err: err}
}

// Message returns the caller-facing message of err. Storage and transaction
// failures never expose their cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if errors.Is(e.Kind, ErrStorage) || errors.Is(e.Kind, ErrTransaction) {
			return "internal server error"
		}
		if e.Msg != "" {
			return e.Msg
		}
		return e.Kind.Error()
	}
	return "internal server error"
}
