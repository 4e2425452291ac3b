package bpm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is the terminal authentication failure: the token could not
// be refreshed (or was rejected again after refreshing) and has been cleared.
// Callers are expected to send the user back to login.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response other than a recovered 401.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api %s %s returned status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("api %s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
