package acceloapi

import (
	"errors"
	"fmt"
)

// ErrTooManyPages is returned when a query exceeds the configured page limit.
var ErrTooManyPages = errors.New("acceloapi: too many pages")

// APIError is a request the server answered with a failure, either through
// the HTTP status or through meta.status in the envelope.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	MoreInfo   string
	URL        string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("acceloapi: %s returned %d", e.URL, e.StatusCode)
	if e.Status != "" {
		msg += " (" + e.Status + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
