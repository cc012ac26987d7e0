package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Fetch metrics, one series per raw collection
	FetchDuration    *prometheus.HistogramVec
	FetchErrorsTotal *prometheus.CounterVec

	// Snapshot metrics
	SnapshotsTotal   *prometheus.CounterVec
	SnapshotDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBWaitCount        prometheus.Gauge

	// Business metrics
	TotalUsers         prometheus.Gauge
	ActiveUsers7d      prometheus.Gauge
	RetentionRate      prometheus.Gauge
	QuizCompletionRate prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nurture_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nurture_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nurture_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),

		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nurture_fetch_duration_seconds",
				Help:    "Raw collection fetch duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"collection"},
		),
		FetchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nurture_fetch_errors_total",
				Help: "Total number of failed raw collection fetches",
			},
			[]string{"collection"},
		),

		SnapshotsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nurture_snapshots_total",
				Help: "Total number of snapshot refreshes by outcome",
			},
			[]string{"window", "status"},
		),
		SnapshotDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nurture_snapshot_duration_seconds",
				Help:    "End to end snapshot refresh duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"window"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nurture_cache_hits_total",
				Help: "Total number of snapshot cache hits",
			},
			[]string{"layer"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nurture_cache_misses_total",
				Help: "Total number of snapshot cache misses",
			},
			[]string{"layer"},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nurture_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nurture_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DBWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nurture_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),

		TotalUsers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nurture_users_total",
				Help: "Total number of accounts in the last published snapshot",
			},
		),
		ActiveUsers7d: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nurture_active_users_7d",
				Help: "Distinct accounts with a script use or video watch in the last 7 days",
			},
		),
		RetentionRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nurture_retention_rate",
				Help: "Share of week-old accounts active in the last 7 days",
			},
		),
		QuizCompletionRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nurture_quiz_completion_rate",
				Help: "Share of accounts that completed the brain profile quiz",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.FetchDuration,
		m.FetchErrorsTotal,
		m.SnapshotsTotal,
		m.SnapshotDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBWaitCount,
		m.TotalUsers,
		m.ActiveUsers7d,
		m.RetentionRate,
		m.QuizCompletionRate,
	)

	return m
}

// ObserveFetch records the load time of one raw collection
func (m *Metrics) ObserveFetch(collection string, elapsed time.Duration, err error) {
	m.FetchDuration.WithLabelValues(collection).Observe(elapsed.Seconds())
	if err != nil {
		m.FetchErrorsTotal.WithLabelValues(collection).Inc()
	}
}

// ObserveSnapshot records the outcome of one refresh
func (m *Metrics) ObserveSnapshot(window, status string, elapsed time.Duration) {
	m.SnapshotsTotal.WithLabelValues(window, status).Inc()
	m.SnapshotDuration.WithLabelValues(window).Observe(elapsed.Seconds())
}

// ObserveCache records a snapshot lookup against a cache layer
func (m *Metrics) ObserveCache(layer string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(layer).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(layer).Inc()
}

// SetUserGauges publishes the headline figures of the last snapshot
func (m *Metrics) SetUserGauges(totalUsers, activeUsers7d int, retentionRate, quizCompletionRate float64) {
	m.TotalUsers.Set(float64(totalUsers))
	m.ActiveUsers7d.Set(float64(activeUsers7d))
	m.RetentionRate.Set(retentionRate)
	m.QuizCompletionRate.Set(quizCompletionRate)
}

// UpdateDBStats copies connection pool statistics into the database gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the mux route template so path parameters do not
// explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
