package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/intelliparse/console/internal/api/response"
	"github.com/intelliparse/console/pkg/models"
)

// WatchlistManager enrolls and removes identity vectors on the server.
type WatchlistManager interface {
	EnrollWatchlist(ctx context.Context, e models.WatchlistEnrollment) error
	DeleteWatchlistProfile(ctx context.Context, profileID string) error
}

// NewEnrollHandler returns an http.HandlerFunc for POST /api/v1/watchlist.
func NewEnrollHandler(wl WatchlistManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.WatchlistEnrollment
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		req.ProfileID = strings.TrimSpace(req.ProfileID)
		if err := req.Validate(); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		if err := wl.EnrollWatchlist(r.Context(), req); err != nil {
			writeUpstreamError(w, err)
			return
		}
		response.JSON(w, map[string]string{
			"profile_id": req.ProfileID,
			"type":       string(req.Type),
		})
	}
}

// NewDeleteProfileHandler returns an http.HandlerFunc for
// DELETE /api/v1/watchlist/{profileID}.
func NewDeleteProfileHandler(wl WatchlistManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profileID := strings.TrimSpace(chi.URLParam(r, "profileID"))
		if profileID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "profile id is required", nil)
			return
		}

		if err := wl.DeleteWatchlistProfile(r.Context(), profileID); err != nil {
			writeUpstreamError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
