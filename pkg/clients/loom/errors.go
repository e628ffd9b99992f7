package loom

import "fmt"

// Error represents an error from the Loom platform API.
type Error struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Body       string `json:"body,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("loom: %s (status: %d)", e.Message, e.StatusCode)
}

// IsClientError returns true if the error is due to client input.
func (e *Error) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsServerError returns true if the error is due to server issues.
func (e *Error) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsNotFound returns true if the resource was not found.
func (e *Error) IsNotFound() bool {
	return e.StatusCode == 404
}
