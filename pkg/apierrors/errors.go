// Package apierrors defines the error kinds shared by every stage of the
// validation engine: Malformed, Rejected, Misconfigured and Unavailable.
package apierrors

import "fmt"

// Kind classifies why a validation step failed.
type Kind string

const (
	// Malformed means a token could not be decoded or classified.
	Malformed Kind = "malformed"
	// Rejected means a cryptographic or semantic check failed.
	Rejected Kind = "rejected"
	// Misconfigured means no validator is registered for a token type.
	Misconfigured Kind = "misconfigured"
	// Unavailable means a network collaborator (DID resolver, JWKS, status
	// endpoint) could not be reached.
	Unavailable Kind = "unavailable"
)

// Status returns the HTTP-like status code associated with the kind, per
// spec: 200 ok, 400 malformed, 403 rejected, 500 misconfigured. Unavailable
// surfaces as 403 since it always fails the whole run the same way a
// rejection does.
func (k Kind) Status() int {
	switch k {
	case Malformed:
		return 400
	case Rejected, Unavailable:
		return 403
	case Misconfigured:
		return 500
	default:
		return 500
	}
}

// Error is the typed error every validator returns on failure. It carries
// enough to build a ValidationResponse without re-deriving the status code
// or re-formatting the message at the call site.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

// New creates an Error with no wrapped cause.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Newf creates an Error with a formatted detail message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that keeps the original error reachable via
// errors.Unwrap / errors.As.
func Wrap(kind Kind, cause error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Status returns the HTTP-like status for this error's kind.
func (e *Error) Status() int {
	return e.Kind.Status()
}
