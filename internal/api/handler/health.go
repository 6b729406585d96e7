package handler

import (
	"context"
	"net/http"

	"github.com/intelliparse/console/internal/api/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyChecker reports whether the analysis server answers.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
func NewHealthHandler(c Pinger, upstream ReadyChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"cache":        "ok",
			"intelliparse": "ok",
		}

		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if err := upstream.Ready(r.Context()); err != nil {
			checks["intelliparse"] = "degraded"
		}

		if checks["cache"] != "ok" || checks["intelliparse"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
