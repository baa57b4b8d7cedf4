// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/semsearch/semsearch/internal/shared"
)

// ErrMalformed marks a request body that could not be decoded or validated.
var ErrMalformed = errors.New("malformed request")

// MalformedError lists per-field validation failures.
type MalformedError struct {
	Fields map[string]string
	cause  error
}

func (e *MalformedError) Error() string {
	if len(e.Fields) == 0 && e.cause != nil {
		return e.cause.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes ErrMalformed to errors.Is.
func (e *MalformedError) Unwrap() error { return ErrMalformed }

func malformed(err error) *MalformedError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return &MalformedError{Fields: fields, cause: err}
	}
	return &MalformedError{cause: err}
}

// ErrorRecorder is implemented by response writers that want to observe the
// error a handler responded with.
type ErrorRecorder interface {
	RecordError(err error)
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrMalformed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Unclassified errors never leak their text.
func RespondError(w http.ResponseWriter, err error) {
	if rec, ok := w.(ErrorRecorder); ok {
		rec.RecordError(err)
	}
	status := StatusFor(err)
	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
		Problem(w, status, "Unauthorized", shared.PublicMessage(err))
	case http.StatusForbidden:
		Problem(w, status, "Forbidden", shared.PublicMessage(err))
	case http.StatusNotFound:
		Problem(w, status, "Not Found", shared.PublicMessage(err))
	case http.StatusBadRequest:
		Problem(w, status, "Bad Request", shared.PublicMessage(err))
	case http.StatusUnprocessableEntity:
		var me *MalformedError
		errors.As(err, &me)
		detail := ""
		if me != nil {
			detail = me.Error()
		}
		JSON(w, status, ProblemDetail{Title: "Validation Failed", Status: status, Detail: detail, Fields: fieldsOf(me)})
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func fieldsOf(me *MalformedError) map[string]string {
	if me == nil {
		return nil
	}
	return me.Fields
}
