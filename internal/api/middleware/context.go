package middleware

import (
	"context"
	"net/http"

	"github.com/intelliparse/console/pkg/models"
)

type contextKey string

const profileKey contextKey = "profile"

// SetProfile stores the profile of the verified user in ctx.
func SetProfile(ctx context.Context, p models.Profile) context.Context {
	return context.WithValue(ctx, profileKey, p)
}

// GetProfile returns the profile set by RequireSession.
func GetProfile(r *http.Request) (models.Profile, bool) {
	p, ok := r.Context().Value(profileKey).(models.Profile)
	return p, ok
}
