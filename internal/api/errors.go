// ABOUTME: Uniform error type for transport and server-reported failures
// ABOUTME: Status 0 marks network-level failures where no response was received

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Error is returned for every failed request. StatusCode is 0 when no
// response was received; Cause then holds the underlying transport error.
type Error struct {
	StatusCode int
	Message    string
	Payload    json.RawMessage
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (HTTP %d): %v", e.Message, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// Unwrap exposes the transport cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsNetworkError reports whether err is an Error raised without a response.
func IsNetworkError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == 0
}

// IsCanceled reports whether err was caused by context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// StatusCode extracts the HTTP status from err, or 0 if it carries none.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
