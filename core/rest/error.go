// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package rest provides the RESTful error taxonomy and the JSON rendering of
successful and failed responses.

Every client visible failure is an *Error. It carries the HTTP status, an
application code, a message, a description and an optional property. The
property is an empty string by default; for validation failures it holds the
field to messages mapping.

Custom business logic reports failures with an *OperationalError which names
the kind of failure. The kind is mapped to a status by FromError at the
controller boundary.
*/
package rest

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a RESTful error with a fixed HTTP status
type Error struct {
	Status      int    `json:"status"`
	Code        int    `json:"code"`
	Message     string `json:"message"`
	Description string `json:"description"`
	Property    any    `json:"property"`

	// Context holds diagnostics which are logged but never rendered
	Context map[string]any `json:"-"`
	cause   error
}

// New creates an error for the given status with the default message and
// description from the status table. An optional message replaces the default.
func New(code int, message ...string) *Error {
	s, ok := statuses[code]
	if !ok {
		code = http.StatusInternalServerError
		s = statuses[code]
	}
	e := &Error{
		Status:      code,
		Code:        code,
		Message:     s.message,
		Description: s.description,
		Property:    "",
	}
	if len(message) > 0 && message[0] != "" {
		e.Message = message[0]
	}
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Message, e.cause.Error())
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDescription replaces the description
func (e *Error) WithDescription(description string) *Error {
	e.Description = description
	return e
}

// WithProperty sets the property
func (e *Error) WithProperty(property any) *Error {
	e.Property = property
	return e
}

// WithCode sets the application code
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// WithContext adds a diagnostic value
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// WithCause records the error which caused this one
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// BadRequest returns a 400 error
func BadRequest(message string) *Error { return New(http.StatusBadRequest, message) }

// Unauthorized returns a 401 error: a credential is missing, malformed or incorrect
func Unauthorized(message string) *Error { return New(http.StatusUnauthorized, message) }

// Forbidden returns a 403 error: the credential is well formed but rejected
func Forbidden(message string) *Error { return New(http.StatusForbidden, message) }

// NotFound returns a 404 error: no record matches the criteria
func NotFound(message string) *Error { return New(http.StatusNotFound, message) }

// MethodNotAllowed returns a 405 error
func MethodNotAllowed(message string) *Error { return New(http.StatusMethodNotAllowed, message) }

// Conflict returns a 409 error: stale or replayed signature, or a violated state precondition
func Conflict(message string) *Error { return New(http.StatusConflict, message) }

// UnsupportedMediaType returns a 415 error
func UnsupportedMediaType(message string) *Error { return New(http.StatusUnsupportedMediaType, message) }

// ValidationFailed returns a 422 error with the field messages as property
func ValidationFailed(fields map[string][]string) *Error {
	return New(http.StatusUnprocessableEntity, "Validation Failed").WithProperty(fields)
}

// ServerError returns a 500 error. The cause is kept for diagnostics only.
func ServerError(err error) *Error {
	e := New(http.StatusInternalServerError)
	if err != nil {
		e = e.WithCause(err).WithContext("error", err.Error())
	}
	return e
}

// fieldMessager is implemented by validation errors of the persistence layer
type fieldMessager interface {
	FieldMessages() map[string][]string
}

// FromError converts any error into an *Error.
//
// *Error values are returned as is, operational errors are translated by
// their kind, validation errors become 422 and everything else becomes 500.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var restErr *Error
	if errors.As(err, &restErr) {
		return restErr
	}
	var opErr *OperationalError
	if errors.As(err, &opErr) {
		return opErr.Translate()
	}
	var fm fieldMessager
	if errors.As(err, &fm) {
		return ValidationFailed(fm.FieldMessages()).WithCause(err)
	}
	return ServerError(err)
}
