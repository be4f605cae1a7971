// Package errors augments the standard errors
// provided by fmt (https://golang.org/src/fmt/errors.go)
// with Wrap methods to qualify errors with a sentinel kind,
// without resorting to fmt.Errorf("%w", err).
package errors

import (
	stderr "errors"
	"fmt"

	"go.uber.org/zap"
)

var _ error = New("")

// New Error
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Error augments the standard error interface with Wrap methods.
//
// Wrapping never mutates the receiver: it returns a new error which
// still matches the original one with Is. This makes it safe to wrap
// package level sentinels.
type Error struct {
	msg  string
	err  error
	kind *Error
}

// Error message, followed by the message of the wrapped error if any
func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap nested error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap a nested error
func (e *Error) Wrap(err error) *Error {
	return &Error{msg: e.msg, err: err, kind: e.sentinel()}
}

// WrapMessage appends some formatted detail to the error message
func (e *Error) WrapMessage(format string, args ...interface{}) *Error {
	return &Error{
		msg:  e.msg + ": " + fmt.Sprintf(format, args...),
		err:  e.err,
		kind: e.sentinel(),
	}
}

// WrapWithLog wraps a nested error and logs the result as an error
func (e *Error) WrapWithLog(l *zap.Logger, err error, fields ...zap.Field) *Error {
	if l != nil {
		l.Error(e.msg, append(fields, zap.Error(err))...)
	}
	return e.Wrap(err)
}

// Is of some error type?
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e == t || e.sentinel() == t
}

func (e *Error) sentinel() *Error {
	if e.kind != nil {
		return e.kind
	}
	return e
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
// (a shortcut to standard lib errors.As)
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is reports whether any error in err's chain matches target
// (a shortcut to standard lib errors.Is)
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
