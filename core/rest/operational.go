package rest

import (
	"fmt"
	"net/http"
)

// Kind names the category of an operational failure
type Kind string

// all operational failure kinds
const (
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindGone         Kind = "gone"
	KindPrecondition Kind = "precondition"
	KindValidation   Kind = "validation"
	KindLocked       Kind = "locked"
	KindServer       Kind = "server"
	KindUnavailable  Kind = "unavailable"
)

var kindStatus = map[Kind]int{
	KindBadRequest:   http.StatusBadRequest,
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindConflict:     http.StatusConflict,
	KindGone:         http.StatusGone,
	KindPrecondition: http.StatusPreconditionFailed,
	KindValidation:   http.StatusUnprocessableEntity,
	KindLocked:       http.StatusLocked,
	KindServer:       http.StatusInternalServerError,
	KindUnavailable:  http.StatusServiceUnavailable,
}

// Status returns the HTTP status for the kind. Unknown kinds map to 500.
func (k Kind) Status() int {
	if s, ok := kindStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// OperationalError is a business rule failure raised by custom resource logic,
// for example in a put or patch hook.
type OperationalError struct {
	Kind        Kind
	Message     string
	Description string
	Property    any
}

// Operational creates an operational error of the given kind
func Operational(kind Kind, message string) *OperationalError {
	return &OperationalError{Kind: kind, Message: message}
}

// WithDescription sets the description
func (e *OperationalError) WithDescription(description string) *OperationalError {
	e.Description = description
	return e
}

// WithProperty sets the property, typically the offending field
func (e *OperationalError) WithProperty(property any) *OperationalError {
	e.Property = property
	return e
}

// Error implements the error interface
func (e *OperationalError) Error() string {
	return fmt.Sprintf("operational failure (%s): %s", e.Kind, e.Message)
}

// Translate turns the operational error into the RESTful error for its kind,
// keeping message, description and property.
func (e *OperationalError) Translate() *Error {
	restErr := New(e.Kind.Status(), e.Message)
	if e.Description != "" {
		restErr.Description = e.Description
	}
	if e.Property != nil {
		restErr.Property = e.Property
	}
	return restErr
}
