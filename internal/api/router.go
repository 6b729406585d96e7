package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	mw "github.com/intelliparse/console/internal/api/middleware"
	"github.com/intelliparse/console/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Session        *mw.Session
	RateLimit      *mw.RateLimit
	AllowedOrigins []string

	HealthHandler   http.HandlerFunc
	RouteHandler    http.HandlerFunc
	LoginHandler    http.HandlerFunc
	LogoutHandler   http.HandlerFunc
	MeHandler       http.HandlerFunc
	SubmitHandler   http.HandlerFunc
	ViewHandler     http.HandlerFunc
	MetricsHandler  http.HandlerFunc
	CheckoutHandler http.HandlerFunc

	EnrollHandler        http.HandlerFunc
	DeleteProfileHandler http.HandlerFunc
	WebhookHandler       http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"Location", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Public routes
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Get("/api/v1/route", orNotImplemented(deps.RouteHandler))
	r.Post("/api/v1/login", orNotImplemented(deps.LoginHandler))
	r.Post("/api/v1/logout", orNotImplemented(deps.LogoutHandler))

	// Job callbacks from the analysis server, authenticated by signature
	r.Post("/api/v1/webhooks/intelliparse", orNotImplemented(deps.WebhookHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Session.RequireSession)

		r.Get("/api/v1/me", orNotImplemented(deps.MeHandler))
		r.Get("/api/v1/analyze/{modality}", orNotImplemented(deps.ViewHandler))
		r.Get("/api/v1/metrics", orNotImplemented(deps.MetricsHandler))
		r.Post("/api/v1/billing/checkout", orNotImplemented(deps.CheckoutHandler))
		r.Post("/api/v1/watchlist", orNotImplemented(deps.EnrollHandler))
		r.Delete("/api/v1/watchlist/{profileID}", orNotImplemented(deps.DeleteProfileHandler))

		r.With(deps.RateLimit.Limit).Post("/api/v1/analyze/{modality}", orNotImplemented(deps.SubmitHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
