// Package apierr defines the error taxonomy the relay surfaces to callers
// and its mapping onto HTTP status codes. Handlers classify failures with
// New and translate them with Status; anything unclassified maps to 500.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error variables for the API taxonomy.
var (
	// ErrUnauthorized: missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden: credential present but signature mismatched.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest: malformed input shape.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound: unresolvable group/variable/path/command, or empty store.
	ErrNotFound = errors.New("not found")
	// ErrConflict: result submitted against a terminal command.
	ErrConflict = errors.New("conflict")
)

// Error pairs a taxonomy kind with a human-readable detail string.
// Error() returns only the detail; errors.Is matches the kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// New builds a classified error with a formatted detail message.
func New(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Status maps a classified error to its HTTP status code. Unclassified
// errors are treated as internal.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
