package assistant

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when no model credential is available.
	// No model call is attempted.
	ErrNotConfigured = errors.New("assistant API key is not configured")

	// ErrInvalidQuery is returned for an empty query.
	ErrInvalidQuery = errors.New("invalid query format")
)

// UpstreamError wraps a failed model call.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s model call failed: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ParseError means the model reply was not the expected JSON object.
// Answer recovers from it with a plain-text result.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable model reply: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
