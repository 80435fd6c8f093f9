// internal/pipeline/errors.go
//
// Failure taxonomy carried from a failing stage to the error stage.
//
// Context
// -------
// Stages fail with any error.  When they want a specific status or a
// client-visible category they return *Error, built with the helpers
// below.  Anything else is treated as unhandled: status 500, message
// exposed, stack logged but never sent.
//
// Notes
// -----
// • Guard and not-found messages are fixed strings chosen by the caller;
//   they must not echo credentials or internal identifiers.
// • Oxford commas, two spaces after periods.

package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindGuard
	KindNotFound
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindGuard:
		return "guard"
	case KindNotFound:
		return "not_found"
	case KindClient:
		return "client"
	default:
		return "internal"
	}
}

// FieldError is one violated validation rule.
type FieldError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// Error is the structured failure understood by the error stage.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Fields  []FieldError
	Err     error  // optional cause, logged only
	Stack   []byte // captured on panics, logged only
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports a missing resource with a caller-chosen message.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: msg}
}

// Unauthorized is a guard rejection for missing or bad credentials.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindGuard, Status: http.StatusUnauthorized, Message: msg}
}

// Forbidden is a guard rejection for valid but insufficient credentials.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindGuard, Status: http.StatusForbidden, Message: msg}
}

// BadRequest reports malformed input that is not a field-level violation.
func BadRequest(msg string) *Error {
	return &Error{Kind: KindClient, Status: http.StatusBadRequest, Message: msg}
}

// Invalid reports the full list of field violations.
func Invalid(fields []FieldError) *Error {
	return &Error{
		Kind:    KindValidation,
		Status:  http.StatusBadRequest,
		Message: "Validation failed",
		Fields:  fields,
	}
}

// Errorf builds a failure with an explicit status.  4xx statuses are client
// failures; anything else is internal.
func Errorf(status int, format string, args ...any) *Error {
	k := KindInternal
	if status >= 400 && status < 500 {
		k = KindClient
	}
	return &Error{Kind: k, Status: status, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected error.  Its message is what the client sees.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
}

// StatusOf returns the status carried by err, or 500.
func StatusOf(err error) int {
	var pe *Error
	if errors.As(err, &pe) && pe.Status != 0 {
		return pe.Status
	}
	return http.StatusInternalServerError
}

// KindOf returns the failure category of err.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// messageOf is the client-visible message for err.
func messageOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}
