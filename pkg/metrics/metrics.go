package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Provider state gauges
	ProviderReady = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refdata_provider_ready",
			Help: "Whether a provider has a live Store (1) or not (0)",
		},
		[]string{"provider"},
	)

	ProviderFetching = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refdata_provider_fetching",
			Help: "Whether a provider currently has a Fetch in flight",
		},
		[]string{"provider"},
	)

	ProviderBuilding = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refdata_provider_building",
			Help: "Whether a provider currently has a Build in flight",
		},
		[]string{"provider"},
	)

	RecordsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refdata_records_total",
			Help: "Row counts in the live Store by provider and kind (codes, names, substances)",
		},
		[]string{"provider", "kind"},
	)

	// Fetch / Build / Swap lifecycle
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refdata_fetch_duration_seconds",
			Help:    "Duration of a Fetch pipeline run",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 300, 900},
		},
		[]string{"provider", "result"},
	)

	BuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refdata_build_duration_seconds",
			Help:    "Duration of a Builder run from raw artifact to published Store",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800},
		},
		[]string{"provider", "result"},
	)

	SwapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refdata_swaps_total",
			Help: "Total number of successful hot-swaps of the live Store",
		},
		[]string{"provider"},
	)

	GCDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refdata_gc_deleted_files_total",
			Help: "Total number of superseded database files removed by GC",
		},
		[]string{"provider"},
	)

	GCSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refdata_gc_skipped_files_total",
			Help: "Total number of superseded database files GC could not remove (held open by a peer)",
		},
		[]string{"provider"},
	)

	// Lock contention
	LockAcquireTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refdata_lock_acquire_total",
			Help: "Total lock acquisition attempts by outcome",
		},
		[]string{"provider", "operation", "result"},
	)

	// Query surface
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refdata_api_requests_total",
			Help: "Total number of HTTP requests by provider, route, and status class",
		},
		[]string{"provider", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refdata_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "route"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refdata_search_duration_seconds",
			Help:    "Duration of a Store.Search/SearchSubstances call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(
		ProviderReady,
		ProviderFetching,
		ProviderBuilding,
		RecordsTotal,
		FetchDuration,
		BuildDuration,
		SwapsTotal,
		GCDeletedTotal,
		GCSkippedTotal,
		LockAcquireTotal,
		APIRequestsTotal,
		APIRequestDuration,
		SearchDuration,
	)
}

// Handler returns the Prometheus HTTP handler, mounted at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
