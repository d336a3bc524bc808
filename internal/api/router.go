// Package api exposes the gateway's HTTP surface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps collects handler dependencies. A nil Registrar leaves the
// registration routes unmounted; a nil Gatherer leaves /metrics unmounted.
type Deps struct {
	Verifier       Verifier
	Registrar      Registrar
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

// NewRouter wires the HTTP routes.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins(deps.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{
			Timeout: 5 * time.Second,
		}))
	}

	if deps.Verifier != nil {
		NewVATHandler(deps.Verifier).Register(r)
	}
	if deps.Registrar != nil {
		NewRegistrationHandler(deps.Registrar).Register(r)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return r
}

func origins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"*"}
	}
	return configured
}
