package repository

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is returned when a requested key or entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrTransport is returned when the remote API could not be reached or
	// did not answer. Always retryable.
	ErrTransport = errors.New("remote api unavailable")
)

// ServerError is a rejection from the remote API. Fields holds the
// field-scoped messages the server returned, Detail the generic one.
type ServerError struct {
	Status int
	Fields map[string]string
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("remote api rejected request (%d): %s", e.Status, e.Detail)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for k, v := range e.Fields {
			parts = append(parts, k+": "+v)
		}
		return fmt.Sprintf("remote api rejected request (%d): %s", e.Status, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("remote api rejected request (%d)", e.Status)
}

// Unauthorized reports whether the server refused the credentials or token.
func (e *ServerError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// AsServerError extracts a *ServerError from err.
func AsServerError(err error) (*ServerError, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
