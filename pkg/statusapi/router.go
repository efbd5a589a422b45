package statusapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRouter builds the chi router exposing /healthz (unauthenticated),
// /metrics (unauthenticated, scraped by Prometheus), and /progress
// (bearer-token authenticated).
func newRouter(tracker *Tracker, authToken string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		okResponse(w, map[string]string{"service": "coldvault"})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(authToken))
		r.Get("/progress", func(w http.ResponseWriter, r *http.Request) {
			okResponse(w, tracker.Snapshot())
		})
	})

	return r
}
