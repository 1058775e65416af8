package domain

import "errors"

// ErrorKind is the failure taxonomy every pipeline raises into.
type ErrorKind string

const (
	// ErrValidation: missing or unsupported input. Safe to surface verbatim.
	ErrValidation ErrorKind = "validation"
	// ErrPolicy: upstream content-safety rejection.
	ErrPolicy ErrorKind = "policy"
	// ErrUpstream: network/service failure from any backend.
	ErrUpstream ErrorKind = "upstream"
	// ErrWorkflow: a browser-automation step failed.
	ErrWorkflow ErrorKind = "workflow"
)

// Error is a tagged failure. UserMsg is only surfaced to the user for
// validation errors; everything else maps to a fixed message so internal
// diagnostics never leak.
type Error struct {
	Kind    ErrorKind
	UserMsg string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	if e.UserMsg != "" {
		return string(e.Kind) + ": " + e.UserMsg
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a user-surfaceable input error.
func Validation(userMsg string) error {
	return &Error{Kind: ErrValidation, UserMsg: userMsg}
}

// Policy wraps an upstream content-policy rejection.
func Policy(err error) error {
	return &Error{Kind: ErrPolicy, Err: err}
}

// Upstream wraps a backend/network failure.
func Upstream(err error) error {
	return &Error{Kind: ErrUpstream, Err: err}
}

// Workflow wraps an automation-step failure.
func Workflow(err error) error {
	return &Error{Kind: ErrWorkflow, Err: err}
}

// KindOf extracts the ErrorKind from err. Untagged errors are upstream.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrUpstream
}

// UserMessage returns the user-safe message carried by err, if any.
func UserMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.UserMsg
	}
	return ""
}
