// Package ado provides the authenticated REST transport for Azure DevOps.
package ado

import "fmt"

// APIError is returned for non-2xx responses. It carries the HTTP status and
// the raw response body of the final attempt.
type APIError struct {
	Status int
	Body   string
	Method string
	Path   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ado: %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// IsAPIError reports whether err is an *APIError and returns it if so.
func IsAPIError(err error) (*APIError, bool) {
	apiErr, ok := err.(*APIError)
	return apiErr, ok
}
