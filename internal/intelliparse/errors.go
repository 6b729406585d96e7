package intelliparse

import (
	"errors"
	"fmt"
)

// Sentinel errors for analysis server failures.
var (
	// ErrTransport covers every network-level failure. It is always retryable
	// from the user's point of view.
	ErrTransport = errors.New("intelliparse unreachable")
	ErrTimeout   = fmt.Errorf("%w: request timed out", ErrTransport)

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("session rejected by server")

	ErrJobNotFound        = errors.New("job not found")
	ErrMissingJobID       = errors.New("response carried no job_id")
	ErrUnexpectedStatus   = errors.New("unexpected response status")
	ErrBillingUnavailable = errors.New("billing not configured")
)

// SubmissionError is returned when an analysis request is not accepted.
// Body holds the raw response text so callers can surface it as-is.
type SubmissionError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("submission rejected (status %d): %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("submission rejected (status %d)", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("submission failed: %v", e.Err)
	default:
		return "submission failed"
	}
}

func (e *SubmissionError) Unwrap() error { return e.Err }
