// Package http serves the read-only HTTP view of the escrow: health,
// Prometheus metrics, the campaign registry, funding details and the
// per-campaign event journal.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/factory"
)

// Config wires the router.
type Config struct {
	Factory *factory.Factory
	// Events backs /campaigns/{id}/events. Nil disables the route.
	Events event.Reader
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Ready reports whether dependencies are reachable. Nil means always ready.
	Ready func(context.Context) error
}

// NewRouter builds the HTTP handler tree.
func NewRouter(cfg Config) http.Handler {
	h := &handler{factory: cfg.Factory, events: cfg.Events, ready: cfg.Ready}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.healthz)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", h.listCampaigns)
		r.Get("/{campaign_id}", h.getCampaign)
		r.Get("/{campaign_id}/donors/{address}", h.getDonation)
		if cfg.Events != nil {
			r.Get("/{campaign_id}/events", h.listEvents)
		}
	})
	return r
}
