package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/intelliparse/console/internal/api/response"
	"github.com/intelliparse/console/internal/intelliparse"
	"github.com/intelliparse/console/internal/render"
)

// MetricsSource returns the usage metrics of the signed-in account.
type MetricsSource interface {
	Metrics(ctx context.Context) (map[string]any, error)
}

// CheckoutCreator starts a billing checkout.
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context) (string, error)
}

// NewMetricsHandler returns an http.HandlerFunc for GET /api/v1/metrics.
func NewMetricsHandler(src MetricsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics, err := src.Metrics(r.Context())
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		response.JSON(w, map[string]any{
			"metrics":  metrics,
			"rendered": render.Value(metrics),
		})
	}
}

// NewCheckoutHandler returns an http.HandlerFunc for POST /api/v1/billing/checkout.
// A billing failure is shown with the server's own text.
func NewCheckoutHandler(billing CheckoutCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, err := billing.CreateCheckoutSession(r.Context())
		if err != nil {
			if errors.Is(err, intelliparse.ErrBillingUnavailable) {
				response.Error(w, http.StatusBadGateway, "BILLING_UNAVAILABLE", err.Error(), nil)
				return
			}
			writeUpstreamError(w, err)
			return
		}
		response.JSON(w, map[string]string{"checkout_url": url})
	}
}
