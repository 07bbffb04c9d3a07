// Package apperr defines the typed error kinds shared by the satellite
// service. Kinds are assigned where a failure is first understood and
// translated to HTTP status codes only by the HTTP adapter.
package apperr

import (
	"errors"
	"fmt"
)

// Error is a failure carrying a Kind that callers can branch on.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Kind categorizes failures.
type Kind int

const (
	// KindInternal is an unexpected failure with no better classification.
	KindInternal Kind = iota
	// KindInvalidInput is a malformed region, date, numeric range or dimension.
	KindInvalidInput
	// KindNoCandidates means no scene matched the date range and cloud filter.
	KindNoCandidates
	// KindNoImagery means a composite or radar backup had no scenes to work with.
	KindNoImagery
	// KindNoFieldAtPoint means no vegetated component contains the requested point.
	KindNoFieldAtPoint
	// KindPerImageFailure is one failed per-image unit. It is logged and
	// dropped, never returned to a caller.
	KindPerImageFailure
	// KindRemotePlatform is a failure reported by the remote geospatial platform.
	KindRemotePlatform
	// KindNotFound is an unknown resource such as an async job id.
	KindNotFound
	// KindUnavailable means a required dependency is not configured.
	KindUnavailable
)

var kindNames = map[Kind]string{
	KindInternal:        "internal",
	KindInvalidInput:    "invalid_input",
	KindNoCandidates:    "no_candidates",
	KindNoImagery:       "no_imagery",
	KindNoFieldAtPoint:  "no_field_at_point",
	KindPerImageFailure: "per_image_failure",
	KindRemotePlatform:  "remote_platform",
	KindNotFound:        "not_found",
	KindUnavailable:     "unavailable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an Error of the given kind wrapping err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Invalidf returns a KindInvalidInput error with a formatted message.
func Invalidf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the client-safe message of the first *Error in err's
// chain, or fallback when there is none.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return fallback
}
