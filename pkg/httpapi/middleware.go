package httpapi

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-chi/chi/v5"

	"github.com/agrodata/refdata/pkg/metrics"
)

// forwardedHeaders are refused outright: the query surface is meant to
// sit directly behind its own listener, never behind a shared reverse
// proxy that could spoof the caller's address.
var forwardedHeaders = []string{"X-Forwarded-For", "X-Forwarded-Host", "X-Real-Ip", "Forwarded"}

func rejectForwarded(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range forwardedHeaders {
			if r.Header.Get(h) != "" {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "requests via reverse proxy are not accepted"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// requestLogger logs one line per request: method, path, status, duration.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

// apiMetrics records refdata_api_requests_total and
// refdata_api_request_duration_seconds per provider and route. It reads
// the matched route pattern after next.ServeHTTP returns, since chi only
// finishes populating it once routing has completed.
func apiMetrics(providerLabel string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timer := metrics.NewTimer()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			metrics.APIRequestsTotal.WithLabelValues(providerLabel, route, statusClass(sw.status)).Inc()
			timer.ObserveDurationVec(metrics.APIRequestDuration, providerLabel, route)
		})
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
