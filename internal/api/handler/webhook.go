package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/intelliparse/console/internal/api/response"
	"github.com/intelliparse/console/internal/intelliparse"
	"github.com/intelliparse/console/pkg/models"
)

const maxWebhookBody = 1 << 20

// JobSink accepts job snapshots pushed by the analysis server.
type JobSink interface {
	Deliver(ctx context.Context, job models.AnalysisJob) bool
}

// NewWebhookHandler returns an http.HandlerFunc for
// POST /api/v1/webhooks/intelliparse. Only bodies signed with secret are
// read; applied reports whether a slot was following the job.
func NewWebhookHandler(secret string, sink JobSink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Webhook body too large", nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read body", nil)
			return
		}

		if err := intelliparse.VerifySignature(secret, body, r.Header.Get(intelliparse.SignatureHeader)); err != nil {
			slog.Warn("rejected webhook", "error", err)
			response.Error(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "Signature does not match", nil)
			return
		}

		job, err := intelliparse.DecodeJobEvent(body)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		applied := sink.Deliver(r.Context(), job)
		slog.Info("webhook received", "job_id", job.JobID, "status", job.Status, "applied", applied)
		response.JSON(w, map[string]any{
			"verified": true,
			"job_id":   job.JobID,
			"status":   job.Status,
			"applied":  applied,
		})
	}
}
