package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router mounts the full HTTP surface. Trailing slashes follow the upstream
// API contract the frontend already speaks.
func Router(a *API, h *Health) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/devices/{deviceID}", func(r chi.Router) {
		r.Post("/measurements/", a.HandleIngest)
		r.Get("/aggregated-data/", a.HandleAggregatedData)
		r.Get("/metrics/", a.HandleMetrics)
		r.Get("/alerts/", a.HandleAlerts)
	})

	r.Get("/ws/device/{publicID}/", a.HandleDeviceSocket)

	r.Handle("/metrics", promhttp.Handler())
	if h != nil {
		r.Get("/healthz", h.HandleHealthz)
		r.Get("/readyz", h.HandleReadyz)
	}
	return r
}
