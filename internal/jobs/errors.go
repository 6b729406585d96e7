package jobs

import (
	"errors"
	"fmt"

	"github.com/intelliparse/console/internal/intelliparse"
	"github.com/intelliparse/console/pkg/models"
)

var (
	// ErrPollTimeout means the attempt or time bound ran out before the job
	// reached a terminal status. The job may still finish on the server.
	ErrPollTimeout = errors.New("job still processing")

	ErrSuperseded    = errors.New("submission superseded by a newer one")
	ErrTrackerClosed = errors.New("job tracker closed")
)

// PollTimeoutError carries the detail of an exhausted poll. It matches ErrPollTimeout.
type PollTimeoutError struct {
	JobID      string
	Attempts   int
	LastStatus models.JobStatus
	Err        error
}

func (e *PollTimeoutError) Error() string {
	msg := fmt.Sprintf("job %s still %s after %d attempts", e.JobID, lastStatus(e.LastStatus), e.Attempts)
	if e.Err != nil {
		msg += fmt.Sprintf(" (last error: %v)", e.Err)
	}
	return msg
}

func (e *PollTimeoutError) Is(target error) bool { return target == ErrPollTimeout }

func (e *PollTimeoutError) Unwrap() error { return e.Err }

func lastStatus(s models.JobStatus) string {
	if s == "" {
		return "unconfirmed"
	}
	return string(s)
}

// Describe turns a job error into the message a view shows in place of a result.
func Describe(err error) string {
	var subErr *intelliparse.SubmissionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPollTimeout):
		return "Still processing, try again later."
	case errors.Is(err, intelliparse.ErrUnauthorized):
		return "Your session has expired, sign in again."
	case errors.As(err, &subErr) && subErr.Body != "":
		return "Submission failed: " + subErr.Body
	case errors.Is(err, intelliparse.ErrTransport):
		return "The analysis server could not be reached, try again."
	case errors.Is(err, intelliparse.ErrJobNotFound):
		return "The job was not found on the server."
	case errors.As(err, &subErr):
		return "Submission failed: " + subErr.Error()
	default:
		return err.Error()
	}
}
