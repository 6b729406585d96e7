package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/intelliparse/console/internal/api/response"
	"github.com/intelliparse/console/internal/auth"
	"github.com/intelliparse/console/pkg/models"
)

// Checker runs the authoritative identity check and only calls fetch once
// the server has accepted the credential.
type Checker interface {
	Protect(ctx context.Context, fetch func(context.Context, models.Profile) error) (auth.Decision, error)
}

// Session guards protected routes with the server-side identity check.
type Session struct {
	guard Checker
}

// NewSession creates a new Session middleware.
func NewSession(g Checker) *Session {
	return &Session{guard: g}
}

// RequireSession lets the request through only when the analysis server
// accepts the cached credential. A rejection redirects to the login page
// before the handler runs, so no account data is fetched for it.
func (s *Session) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, err := s.guard.Protect(r.Context(), func(ctx context.Context, p models.Profile) error {
			next.ServeHTTP(w, r.WithContext(SetProfile(ctx, p)))
			return nil
		})
		switch {
		case err != nil:
			slog.Warn("identity check failed", "path", r.URL.Path, "error", err)
			w.Header().Set("Retry-After", "5")
			response.Error(w, http.StatusServiceUnavailable,
				"UPSTREAM_UNAVAILABLE", "Could not verify your session, try again", nil)
		case d.State == auth.StateAuthorized:
			// already served inside Protect
		case d.State == auth.StateRedirecting:
			response.Redirect(w, d.RedirectTo, "UNAUTHENTICATED", "Sign in to continue")
		default:
			response.Error(w, http.StatusServiceUnavailable,
				"UPSTREAM_UNAVAILABLE", "Could not verify your session, try again", nil)
		}
	})
}
