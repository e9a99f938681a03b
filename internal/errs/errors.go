// Package errs provides the unified error type used across s3ranger.
//
// Store drivers, the local filesystem layer and the path parser wrap their
// native errors into *errs.Error before returning them. The UI and the
// navigation core use the Is* predicates to decide how a failure is
// surfaced without importing driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.KindNotFound, "failed to get object", err)
//
//	// In a caller, check the error kind:
//	if errs.IsStore(err) {
//	    notify(err)
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind categorises an error without exposing backend-specific codes.
type Kind int

const (
	KindUnknown          Kind = iota
	KindMalformedURI          // store location string could not be parsed
	KindInvalidInput          // bad arguments from the caller
	KindNotFound              // no such bucket or key
	KindPermissionDenied      // access denied / bad credentials
	KindTimeout               // context deadline / cancellation / throttling
	KindConnectionFailed      // cannot reach the endpoint
	KindStoreFailed           // any other store operation error
	KindLocalIO               // local filesystem failure
)

func (k Kind) String() string {
	switch k {
	case KindMalformedURI:
		return "malformed_uri"
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindTimeout:
		return "timeout"
	case KindConnectionFailed:
		return "connection_failed"
	case KindStoreFailed:
		return "store_failed"
	case KindLocalIO:
		return "local_io"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by s3ranger subsystems.
type Error struct {
	Kind    Kind
	Message string
	Cause   error // original error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
// An existing *Error cause keeps its own kind, so re-wrapping at a higher
// layer adds context without reclassifying the failure.
func Wrap(kind Kind, msg string, cause error) *Error {
	if k := KindOf(cause); k != KindUnknown {
		kind = k
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsMalformedURI reports whether err came from parsing a store location.
func IsMalformedURI(err error) bool {
	return KindOf(err) == KindMalformedURI
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == KindInvalidInput
}

// IsNotFound reports whether err represents a missing bucket or key.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == KindPermissionDenied
}

// IsTimeout reports whether err was caused by a deadline or throttling.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}

// IsLocalIO reports whether err is a local filesystem failure.
func IsLocalIO(err error) bool {
	return KindOf(err) == KindLocalIO
}

// IsStore reports whether err is any failure reported by a store client.
func IsStore(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindPermissionDenied, KindTimeout, KindConnectionFailed, KindStoreFailed:
		return true
	default:
		return false
	}
}

// KindOf extracts the Kind from any error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
