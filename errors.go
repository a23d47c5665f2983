package fetchkit

import (
	"errors"
	"fmt"
	"time"
)

// Error type identifiers carried by FetchError.Type.
const (
	ErrorTypeNetwork    = "Network"
	ErrorTypeServer     = "Server"
	ErrorTypeClient     = "Client"
	ErrorTypeDecode     = "Decode"
	ErrorTypeAborted    = "Aborted"
	ErrorTypeValidation = "Validation"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrAborted is returned to a caller whose execute was superseded by a
	// newer one. It is never committed to the Fetcher's state and never
	// reaches OnError.
	ErrAborted = errors.New("fetchkit: execute aborted")

	// ErrCacheMiss is returned when a cache lookup fails.
	ErrCacheMiss = errors.New("fetchkit: cache miss")

	// ErrValidation is returned when a Fetcher was built from an invalid
	// configuration.
	ErrValidation = errors.New("fetchkit: invalid configuration")
)

// FetchError describes a request failure with diagnostic context.
type FetchError struct {
	Type        string
	Message     string
	Cause       error
	Key         string
	Attempt     int
	MaxAttempts int
	Timestamp   time.Time
	Duration    time.Duration
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.Key != "" {
		msg = fmt.Sprintf("[%s] %s", e.Key, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxAttempts)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *FetchError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*FetchError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// IsTransient reports whether an error represents a failure that might
// succeed on retry. Network and server failures are transient; aborts,
// decode failures and validation errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAborted) || errors.Is(err, ErrValidation) {
		return false
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.Type {
		case ErrorTypeNetwork, ErrorTypeServer:
			return true
		default:
			return false
		}
	}

	// Unclassified errors are assumed transient so a plain error from a
	// RequestFunc still gets the retry budget.
	return true
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *FetchError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.Key != "" {
		info += fmt.Sprintf("Key: %s\n", e.Key)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxAttempts)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}
