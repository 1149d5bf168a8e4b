// Package errors provides the rule-engine's unified error-kind system.
package errors

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed error kinds the core surfaces.
type Kind string

const (
	// KindOK is not actually returned as an error; it exists so callers
	// can compare a Kind value against it without a special "no error" case.
	KindOK Kind = "OK"

	// KindEALLOC means the backing arena could not satisfy an allocation.
	KindEALLOC Kind = "EALLOC"
	// KindEINVAL means an argument violated a precondition: cross-config
	// pairing, a malformed target string, a capture slot above 9, a
	// non-list value where a list was required, or an "@"-prefixed
	// plugin registration.
	KindEINVAL Kind = "EINVAL"
	// KindEEXIST means a duplicate var source registration. Duplicate
	// plugin names are reported as EINVAL instead.
	KindEEXIST Kind = "EEXIST"
	// KindENOENT means a missing source, a missing store slot, no matching
	// managed-collection handler, or nothing matched a filter removal.
	KindENOENT Kind = "ENOENT"
	// KindEINCOMPAT means an append was attempted on an existing non-list slot.
	KindEINCOMPAT Kind = "EINCOMPAT"
	// KindEOTHER means an unexpected internal failure, including a dynamic
	// field's own getter returning an error.
	KindEOTHER Kind = "EOTHER"
	// KindENOTIMPL is reserved for a capability the caller asked for that
	// the plugin did not provide.
	KindENOTIMPL Kind = "ENOTIMPL"
)

// CoreError is a structured error carrying the failing operation's name,
// the error Kind, a message, and an optional wrapped cause.
type CoreError struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *CoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *CoreError carrying the same Kind, so
// callers can write errors.Is(err, rerrors.ENOENT("", "")) style checks.
func (e *CoreError) Is(target error) bool {
	var other *CoreError
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New creates a CoreError with no wrapped cause.
func New(kind Kind, op, message string) *CoreError {
	return &CoreError{Kind: kind, Op: op, Message: message}
}

// Wrap creates a CoreError that wraps an existing error.
func Wrap(kind Kind, op, message string, err error) *CoreError {
	return &CoreError{Kind: kind, Op: op, Message: message, Err: err}
}

// Per-kind constructors. Each mirrors the shape of the reference
// ServiceError helpers (Unauthorized, NotFound, ...): a short function
// named after the condition that fills in the Kind.

func EALLOC(op, message string) *CoreError    { return New(KindEALLOC, op, message) }
func EINVAL(op, message string) *CoreError    { return New(KindEINVAL, op, message) }
func EEXIST(op, message string) *CoreError    { return New(KindEEXIST, op, message) }
func ENOENT(op, message string) *CoreError    { return New(KindENOENT, op, message) }
func EINCOMPAT(op, message string) *CoreError { return New(KindEINCOMPAT, op, message) }
func EOTHER(op, message string) *CoreError    { return New(KindEOTHER, op, message) }
func ENOTIMPL(op, message string) *CoreError  { return New(KindENOTIMPL, op, message) }

// WrapOther wraps an arbitrary error as EOTHER, used at boundaries where a
// plugin callback or handler returned a plain Go error.
func WrapOther(op string, err error) *CoreError {
	return Wrap(KindEOTHER, op, "unexpected internal failure", err)
}

// KindOf extracts the Kind from err if it is (or wraps) a *CoreError,
// otherwise returns KindEOTHER.
func KindOf(err error) Kind {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindEOTHER
}

// HasKind reports whether err is (or wraps) a *CoreError of the given Kind.
func HasKind(err error, kind Kind) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
