// Package apperror defines the error kinds shared by every domain package.
// Domains declare sentinel values with New and wrap causes with Wrap; the
// HTTP layer maps a Kind onto a status code.
package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an error for callers that need to react to it.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "state_conflict"
	KindRateLimited   Kind = "rate_limited"
	KindAuthenticity  Kind = "authenticity"
	KindIntegrity     Kind = "integrity"
	KindConfiguration Kind = "configuration"
	KindInternal      Kind = "internal"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// New declares a sentinel error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
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

// Is matches errors of the same code, so a wrapped sentinel still satisfies
// errors.Is against the original.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Kind == t.Kind
}

// Wrap attaches a cause to a sentinel without mutating it.
func Wrap(sentinel *Error, cause error) error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: sentinel.Message, Err: cause}
}

// WithMessage returns a copy of the sentinel with a more specific message.
func WithMessage(sentinel *Error, message string) error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: message}
}

// KindOf returns the kind of err, or KindInternal when err is not classified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the status code returned to API clients.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindAuthenticity:
		return http.StatusUnauthorized
	case KindConfiguration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
