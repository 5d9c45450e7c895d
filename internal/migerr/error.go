// Package migerr classifies failures of the migration commands.
package migerr

import (
	"errors"
	"fmt"
)

// Kind is the failure class. It decides whether a failure aborts the command,
// skips a row or gets retried.
type Kind string

const (
	// KindFatal aborts the command before any destination writes.
	KindFatal Kind = "fatal"
	// KindPrecondition aborts because required prior state (a ledger) is missing.
	KindPrecondition Kind = "precondition"
	// KindRow is a rejected single-row write or lookup; the row is skipped.
	KindRow Kind = "row"
	// KindSkip is a data-quality skip of a legacy record.
	KindSkip Kind = "skip"
	// KindTransient is a network or 5xx failure that may succeed on retry.
	KindTransient Kind = "transient"
)

// Error is a classified migration error.
type Error struct {
	Kind     Kind
	Op       string
	Message  string
	Internal error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Internal != nil {
		msg = e.Internal.Error()
	} else if e.Internal != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Internal)
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

// Unwrap returns the internal error
func (e *Error) Unwrap() error {
	return e.Internal
}

// New creates an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Internal: err}
}

// Fatal wraps err as KindFatal.
func Fatal(op string, err error) error { return Wrap(KindFatal, op, err) }

// Fatalf creates a KindFatal error from a format string.
func Fatalf(op, format string, args ...any) error {
	return New(KindFatal, op, fmt.Sprintf(format, args...))
}

// Precondition creates a KindPrecondition error.
func Precondition(op, message string) error {
	return New(KindPrecondition, op, message)
}

// Transient wraps err as KindTransient.
func Transient(op string, err error) error { return Wrap(KindTransient, op, err) }

// KindOf returns the kind of the outermost classified error in err's chain,
// or "" when err is unclassified.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Aborts reports whether err must end the whole command.
func Aborts(err error) bool {
	switch KindOf(err) {
	case KindFatal, KindPrecondition:
		return true
	}
	return false
}
