package galileo

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches exactly one of
// them under errors.Is. None of them is retried.
var (
	// ErrConfig means a credential or identifier is missing or invalid.
	ErrConfig = errors.New("configuration error")

	// ErrTransport means a request failed: connection error, timeout,
	// status >= 400 or an undecodable body.
	ErrTransport = errors.New("transport error")

	// ErrNotFound means a project or log stream name did not resolve.
	ErrNotFound = errors.New("not found")
)

// StatusError is returned when the API answers with status >= 400.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: request failed with status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is reports StatusError as a transport error.
func (e *StatusError) Is(target error) bool {
	return target == ErrTransport
}

// NotFoundError carries the name that failed to resolve.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.Name)
}

// Is reports NotFoundError as ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
