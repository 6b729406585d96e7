package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	mw "github.com/intelliparse/console/internal/api/middleware"
	"github.com/intelliparse/console/internal/api/response"
	"github.com/intelliparse/console/internal/auth"
	"github.com/intelliparse/console/internal/intelliparse"
	"github.com/intelliparse/console/pkg/models"
)

// Authenticator signs the console in and out.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (models.Session, error)
	Logout(ctx context.Context) error
}

// NewRouteHandler returns an http.HandlerFunc for GET /api/v1/route.
func NewRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, auth.Classify(r.URL.Query().Get("path")))
	}
}

// NewLoginHandler returns an http.HandlerFunc for POST /api/v1/login.
func NewLoginHandler(svc Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "email and password are required", nil)
			return
		}

		sess, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, intelliparse.ErrInvalidCredentials):
				response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", auth.LoginMessage(err), nil)
			case errors.Is(err, intelliparse.ErrTransport):
				response.Error(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", auth.LoginMessage(err), nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", auth.LoginMessage(err), nil)
			}
			return
		}

		response.JSON(w, map[string]string{
			"identity": sess.Identity,
			"redirect": auth.DashboardPath,
		})
	}
}

// NewLogoutHandler returns an http.HandlerFunc for POST /api/v1/logout.
func NewLogoutHandler(svc Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Logout(r.Context()); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sign out", nil)
			return
		}
		response.JSON(w, map[string]string{"redirect": auth.LoginPath})
	}
}

// NewMeHandler returns an http.HandlerFunc for GET /api/v1/me. The profile
// comes from the identity check RequireSession already ran.
func NewMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, ok := mw.GetProfile(r)
		if !ok {
			response.Redirect(w, auth.LoginPath, "UNAUTHENTICATED", "Sign in to continue")
			return
		}
		response.JSON(w, profile)
	}
}
