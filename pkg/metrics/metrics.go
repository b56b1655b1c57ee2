// Package metrics provides Prometheus instrumentation for the
// clustream engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for the engine.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	ActiveRequests     prometheus.Gauge
	PointsIngested      prometheus.Counter
	Bootstraps         prometheus.Counter
	Absorptions        prometheus.Counter
	Forgets            prometheus.Counter
	Merges             prometheus.Counter
	MicroClusters      prometheus.Gauge
	ReduceDuration     prometheus.Histogram
	DegenerateSamples  prometheus.Counter
	DummyCentres       prometheus.Counter
	NoCentreNearest    prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all engine metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clustream_requests_total",
				Help: "Total HTTP requests by endpoint and status code.",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clustream_request_duration_seconds",
				Help:    "HTTP request latency distribution.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"endpoint"},
		),
		ActiveRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clustream_active_requests",
				Help: "Number of requests currently being processed.",
			},
		),
		PointsIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clustream_points_ingested_total",
				Help: "Total points passed to offline_cluster.",
			},
		),
		Bootstraps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clustream_bootstraps_total",
				Help: "Total bootstrap transitions (pool below capacity).",
			},
		),
		Absorptions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clustream_absorptions_total",
				Help: "Total absorb transitions.",
			},
		),
		Forgets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clustream_forgets_total",
				Help: "Total forget transitions (stale micro-cluster replaced).",
			},
		),
		Merges: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clustream_merges_total",
				Help: "Total merge transitions.",
			},
		),
		MicroClusters: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clustream_microclusters",
				Help: "Current micro-cluster pool size.",
			},
		),
		ReduceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "clustream_reduce_duration_seconds",
				Help:    "Latency of Reducer.Reduce calls.",
				Buckets: prometheus.DefBuckets,
			},
		),
		DegenerateSamples: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clustream_degenerate_samples_total",
				Help: "Total chooseCentre calls that landed on a dummy point.",
			},
		),
		DummyCentres: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clustream_dummy_centres_total",
				Help: "Total dummy centres emitted because root cost reached zero early.",
			},
		),
		NoCentreNearest: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clustream_no_centre_nearest_total",
				Help: "Total points dropped during split due to a numeric distance anomaly.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.PointsIngested,
		m.Bootstraps,
		m.Absorptions,
		m.Forgets,
		m.Merges,
		m.MicroClusters,
		m.ReduceDuration,
		m.DegenerateSamples,
		m.DummyCentres,
		m.NoCentreNearest,
	)

	return m
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed request's metrics.
func (m *Metrics) RecordRequest(endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordReduce records a completed reduce call's latency and pool size.
func (m *Metrics) RecordReduce(duration time.Duration, poolSize int) {
	m.ReduceDuration.Observe(duration.Seconds())
	m.MicroClusters.Set(float64(poolSize))
}

// RecordIngest counts one point passed to OfflineCluster, regardless of
// which transition it ultimately takes. Satisfies clustream.TransitionRecorder.
func (m *Metrics) RecordIngest() {
	m.PointsIngested.Inc()
}

// RecordBootstrap counts one bootstrap transition.
func (m *Metrics) RecordBootstrap() {
	m.Bootstraps.Inc()
}

// RecordAbsorb counts one absorb transition.
func (m *Metrics) RecordAbsorb() {
	m.Absorptions.Inc()
}

// RecordForget counts one forget transition.
func (m *Metrics) RecordForget() {
	m.Forgets.Inc()
}

// RecordMerge counts one merge transition.
func (m *Metrics) RecordMerge() {
	m.Merges.Inc()
}

// Middleware returns an HTTP middleware that instruments requests.
func (m *Metrics) Middleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.ActiveRequests.Inc()
		defer m.ActiveRequests.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rw, r)

		m.RecordRequest(endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
