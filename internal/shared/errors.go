package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	// ErrUnauthenticated indicates missing or invalid credentials.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates an authenticated caller lacking permission.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput indicates a request referencing something invalid.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage is the opaque error surfaced for any persistence failure.
	ErrStorage = errors.New("storage error")
)

var classifiedKinds = []error{
	ErrUnauthenticated,
	ErrForbidden,
	ErrNotFound,
	ErrConflict,
	ErrInvalidInput,
	ErrStorage,
}

// Error carries a classified kind plus a message safe to show to clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Message: msg}
}

// Unauthenticated builds an ErrUnauthenticated error.
func Unauthenticated(format string, args ...any) error {
	return newError(ErrUnauthenticated, format, args...)
}

// Forbidden builds an ErrForbidden error.
func Forbidden(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}

// NotFound builds an ErrNotFound error.
func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

// Conflict builds an ErrConflict error.
func Conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

// InvalidInput builds an ErrInvalidInput error.
func InvalidInput(format string, args ...any) error {
	return newError(ErrInvalidInput, format, args...)
}

// Classified reports whether err belongs to the domain taxonomy and can be
// shown to callers unchanged.
func Classified(err error) bool {
	if err == nil {
		return false
	}
	for _, kind := range classifiedKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// PublicMessage returns the client-facing message of a classified error.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	for _, kind := range classifiedKinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return ""
}
