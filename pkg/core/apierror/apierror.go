// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package apierror defines the error kinds surfaced to gateway callers.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an error for callers.
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindValidation           Kind = "validation_error"
	KindConflict             Kind = "conflict"
	KindForbidden            Kind = "forbidden"
	KindUpstream             Kind = "upstream_error"
	KindUpstreamConnectivity Kind = "upstream_connectivity_error"
	KindInternal             Kind = "internal_error"

	// KindTransformWarning marks a skipped transform rule. It is reported
	// alongside a result and never returned as an error.
	KindTransformWarning Kind = "transform_warning"
)

// Error is a typed error whose Message is safe to show to callers. Err may
// carry internal detail and is only exposed through Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure behind a generic message.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// HTTPStatus maps a kind to the status code returned to callers.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUpstream, KindUpstreamConnectivity:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
