package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/intelliparse/console/internal/api/response"
	"github.com/intelliparse/console/internal/auth"
	"github.com/intelliparse/console/internal/intelliparse"
	"github.com/intelliparse/console/internal/jobs"
)

// writeUpstreamError maps analysis server failures to the error envelope.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var subErr *intelliparse.SubmissionError
	switch {
	case errors.Is(err, intelliparse.ErrUnauthorized):
		response.Redirect(w, auth.LoginPath, "UNAUTHENTICATED", "Your session has expired, sign in again")
	case errors.Is(err, jobs.ErrSuperseded):
		response.Error(w, http.StatusConflict, "SUPERSEDED",
			"A newer submission replaced this one", nil)
	case errors.Is(err, jobs.ErrTrackerClosed):
		response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN",
			"The console is shutting down", nil)
	case errors.As(err, &subErr) && subErr.StatusCode != 0:
		response.Error(w, http.StatusBadGateway, "SUBMISSION_FAILED", jobs.Describe(err), map[string]any{
			"upstream_status": subErr.StatusCode,
		})
	case errors.Is(err, intelliparse.ErrTimeout):
		response.Error(w, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT",
			"The analysis server took too long to answer", nil)
	case errors.Is(err, intelliparse.ErrTransport):
		response.Error(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE",
			"The analysis server could not be reached, try again", nil)
	case errors.As(err, &subErr):
		response.Error(w, http.StatusBadGateway, "SUBMISSION_FAILED", jobs.Describe(err), nil)
	default:
		slog.Error("unexpected upstream error", "error", err)
		response.Error(w, http.StatusBadGateway, "UPSTREAM_ERROR",
			"The analysis server returned an unexpected answer", nil)
	}
}
