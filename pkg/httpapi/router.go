package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agrodata/refdata/pkg/log"
	"github.com/agrodata/refdata/pkg/metrics"
	"github.com/agrodata/refdata/pkg/provider"
)

// NewRouter assembles the full query surface: one sub-router per
// provider prefix plus the shared /metrics endpoint.
func NewRouter(eppo *provider.EPPOCoordinator, eu *provider.EUCoordinator) http.Handler {
	r := chi.NewRouter()
	logger := log.WithComponent("httpapi")

	r.Use(middleware.Recoverer)
	r.Use(rejectForwarded)
	r.Use(requestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Handle("/metrics", metrics.Handler())

	r.Route("/eppo", func(r chi.Router) {
		r.Use(apiMetrics("eppo"))
		h := &eppoHandlers{c: eppo}
		h.mount(r)
	})

	r.Route("/eu", func(r chi.Router) {
		r.Use(apiMetrics("eu"))
		h := &euHandlers{c: eu}
		h.mount(r)
	})

	return r
}
