// internal/types/errors.go
package types

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into the gateway's machine-readable taxonomy.
type Kind string

const (
	KindUnauthorized     Kind = "unauthorized"
	KindRateLimited      Kind = "rate_limited"
	KindExecutionTimeout Kind = "execution_timeout"
	KindExecutionFailed  Kind = "execution_failed"
	KindMalformedResult  Kind = "malformed_result"
	KindNotFound         Kind = "not_found"
	KindValidation       Kind = "validation_error"
	KindInternal         Kind = "internal"
)

// Error is a classified error. Message is safe to return to callers: it must
// never carry secrets or full stack traces.
type Error struct {
	Kind    Kind
	Message string
	wrapped error
}

// E creates a classified error with a formatted message.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error while keeping it on the unwrap chain.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), wrapped: err}
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return e.Message + ": " + e.wrapped.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// KindOf returns the classification of err, or KindInternal for unclassified
// errors.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the caller-safe message for err. Unclassified errors
// collapse to a generic message so internals never leak.
func PublicMessage(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Message
	}
	return "internal error"
}

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindExecutionTimeout:
		return http.StatusGatewayTimeout
	case KindExecutionFailed, KindMalformedResult:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
