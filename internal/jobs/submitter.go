package jobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"github.com/intelliparse/console/internal/intelliparse"
	"github.com/intelliparse/console/pkg/models"
)

// Analyzer sends one analysis request and returns the server-assigned job id.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (string, error)
}

// Submitter builds and sends analysis requests. It does not poll.
type Submitter struct {
	client Analyzer
}

// NewSubmitter creates a new Submitter.
func NewSubmitter(client Analyzer) *Submitter {
	return &Submitter{client: client}
}

// Submit sends blob for analysis and returns the job id. An empty blob is a
// no-op: no request is made and no job id is returned. Failures are always
// *intelliparse.SubmissionError.
func (s *Submitter) Submit(ctx context.Context, modality models.Modality, filename string, blob []byte, opts models.CheckOptions) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	if _, err := models.ParseModality(string(modality)); err != nil {
		return "", &intelliparse.SubmissionError{Err: err}
	}

	req := models.AnalysisRequest{
		Modality: modality,
		Filename: filename,
		Payload:  bytes.Clone(blob),
		Options:  opts,
	}

	jobID, err := s.client.Analyze(ctx, req)
	if err != nil {
		slog.Warn("analysis submission failed", "modality", modality, "error", err)
		var subErr *intelliparse.SubmissionError
		if !errors.As(err, &subErr) {
			err = &intelliparse.SubmissionError{Err: err}
		}
		return "", err
	}

	slog.Info("analysis submitted", "job_id", jobID, "modality", modality, "bytes", len(blob))
	return jobID, nil
}
