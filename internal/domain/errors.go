package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers and transport adapters can react
// without string matching. It is carried as a tagged value on every failure
// result, not derived from an exception hierarchy.
type ErrorKind string

const (
	// KindUser marks client-caused failures: duplicate tenant ids,
	// interface version mismatches, dependency diagnostics.
	KindUser ErrorKind = "user"
	// KindNotFound marks an addressed entity that does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindInternal marks invariant violations and unexpected sub-system
	// failures.
	KindInternal ErrorKind = "internal"
	// KindAny is the in-use signal: the message carries the id of the first
	// tenant still using a module.
	KindAny ErrorKind = "any"
)

// Error is the failure value used across the control plane.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// UserErrorf builds a client-caused failure.
func UserErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindUser, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds an entity-absent failure.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Internalf builds an invariant-violation failure.
func Internalf(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// InternalWrap wraps a sub-system failure, keeping the cause chain.
func InternalWrap(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Cause: cause}
}

// InUse signals that tenantID still has a module enabled.
func InUse(tenantID string) *Error {
	return &Error{Kind: KindAny, Message: tenantID}
}

// KindOf extracts the kind from an error chain. Untagged errors report
// KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsNotFound reports whether the error chain carries KindNotFound.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
