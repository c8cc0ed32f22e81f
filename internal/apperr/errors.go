// Package apperr contains the error taxonomy shared by the client, the engine and the HTTP surface.
package apperr

import (
	"errors"
	"net/http"
)

// Kind defines the error category
type Kind int

const (
	// KindGeneral is an unexpected failure.
	KindGeneral Kind = iota
	// KindFetch is a network failure or a non-2xx response from the admin API.
	KindFetch
	// KindAuth is a missing, expired or rejected credential. It is terminal for the session.
	KindAuth
	// KindNotFound is a user id that cannot be resolved to a wallet address.
	KindNotFound
	// KindValidation is a request the caller should not have made, e.g. a page out of range.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "FetchError"
	case KindAuth:
		return "AuthError"
	case KindNotFound:
		return "NotFoundError"
	case KindValidation:
		return "ValidationError"
	default:
		return "GeneralError"
	}
}

// Error is the typed error returned by core operations.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error method to comply with error interface
func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code used when the error is served to a presentation client.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindFetch:
		return http.StatusBadGateway
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Is checks that err is an *Error of the given kind
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindOf returns the kind of err, KindGeneral for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneral
}

// Message returns the user-facing message of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// FetchError returns an error with kind KindFetch.
// message is shown to the user; err is kept for the logs.
func FetchError(err error, message string) error {
	if message == "" {
		message = "failed to fetch data"
	}
	return &Error{Kind: KindFetch, Message: message, Err: err}
}

// AuthError returns an error with kind KindAuth
func AuthError(err error, message string) error {
	if message == "" {
		message = "session expired, please login again"
	}
	return &Error{Kind: KindAuth, Message: message, Err: err}
}

// NotFoundError returns an error with kind KindNotFound
func NotFoundError(err error, message string) error {
	return &Error{Kind: KindNotFound, Message: message, Err: err}
}

// ValidationError returns an error with kind KindValidation
func ValidationError(err error, message string) error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}
