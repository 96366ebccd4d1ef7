package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRateLimited is wrapped when the API answers 429 Too Many Requests.
	ErrRateLimited = errors.New("rate limited by API")
)

// APIError represents a failed page request with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Class returns the error class of err, or "" when err is not an *APIError.
func Class(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}
