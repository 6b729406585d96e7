package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/intelliparse/console/internal/api/response"
	"github.com/intelliparse/console/internal/jobs"
	"github.com/intelliparse/console/pkg/models"
)

// multipartMemory is how much of an upload is held in memory before
// spilling to a temp file.
const multipartMemory = 32 << 20

// JobTracker owns the current job of every modality slot.
type JobTracker interface {
	Submit(ctx context.Context, req models.AnalysisRequest) (jobs.SlotView, error)
	View(m models.Modality) jobs.SlotView
}

// NewSubmitHandler returns an http.HandlerFunc for POST /api/v1/analyze/{modality}.
// It accepts a multipart form with an optional "file" part and an optional
// "options" JSON part. A request without a file changes nothing.
func NewSubmitHandler(tracker JobTracker, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		modality, err := models.ParseModality(chi.URLParam(r, "modality"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "UNKNOWN_MODALITY", err.Error(), nil)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
					"Upload exceeds the size limit", map[string]int64{"limit_bytes": tooLarge.Limit})
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Expected a multipart form", nil)
			return
		}
		defer r.MultipartForm.RemoveAll()

		opts, err := parseOptions(r.FormValue("options"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "options must be a JSON object of check flags", nil)
			return
		}

		req := models.AnalysisRequest{Modality: modality, Options: opts}
		file, header, err := r.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read the uploaded file", nil)
			return
		default:
			defer file.Close()
			req.Filename = header.Filename
			if req.Payload, err = io.ReadAll(file); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read the uploaded file", nil)
				return
			}
		}

		view, err := tracker.Submit(r.Context(), req)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		if len(req.Payload) == 0 {
			response.JSON(w, view)
			return
		}

		response.Accepted(w, map[string]any{
			"job_id":     view.JobID,
			"generation": view.Generation,
		})
	}
}

// NewViewHandler returns an http.HandlerFunc for GET /api/v1/analyze/{modality}.
func NewViewHandler(tracker JobTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		modality, err := models.ParseModality(chi.URLParam(r, "modality"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "UNKNOWN_MODALITY", err.Error(), nil)
			return
		}
		response.JSON(w, tracker.View(modality))
	}
}

// parseOptions reads the check flags. Absent options request every check.
func parseOptions(raw string) (models.CheckOptions, error) {
	if strings.TrimSpace(raw) == "" {
		return models.AllChecks(), nil
	}
	var opts models.CheckOptions
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		return models.CheckOptions{}, err
	}
	return opts, nil
}
