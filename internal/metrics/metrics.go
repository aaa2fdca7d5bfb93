// Package metrics exports Prometheus gauges for queue health (spec §4.5),
// grounded in the teacher's promauto-built Metrics structs
// (internal/nodemanager/metrics_prometheus.go, internal/apiserver/server/metrics.go).
package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agents-admin/pkg/logging"
)

// Metrics holds every gauge the queue collector ticks and the HTTP counters
// the middleware records into. DBQueryTotal, DBQueryDuration and StepsTotal
// are registered, but nothing in this repository records into them.
type Metrics struct {
	QueueDepth             *prometheus.GaugeVec
	QueueReadyDepth        prometheus.Gauge
	QueueFutureDepth       prometheus.Gauge
	QueueOldestReadySecs   prometheus.Gauge
	RunningWithExpiredLease prometheus.Gauge
	RunningWithActiveLease  prometheus.Gauge

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	DBQueryTotal    *prometheus.CounterVec
	DBQueryDuration *prometheus.HistogramVec

	StepsTotal *prometheus.CounterVec
}

// New registers every metric under namespace "xyn".
func New() *Metrics {
	const ns = "xyn"
	return &Metrics{
		QueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: ns, Name: "queue_depth", Help: "Runs by status"},
			[]string{"status"},
		),
		QueueReadyDepth: promauto.NewGauge(
			prometheus.GaugeOpts{Namespace: ns, Name: "queue_ready_depth", Help: "Queued runs with run_at <= now"},
		),
		QueueFutureDepth: promauto.NewGauge(
			prometheus.GaugeOpts{Namespace: ns, Name: "queue_future_depth", Help: "Queued runs with run_at > now"},
		),
		QueueOldestReadySecs: promauto.NewGauge(
			prometheus.GaugeOpts{Namespace: ns, Name: "queue_oldest_ready_seconds", Help: "Age of the oldest ready run, in seconds"},
		),
		RunningWithExpiredLease: promauto.NewGauge(
			prometheus.GaugeOpts{Namespace: ns, Name: "running_with_expired_lease", Help: "Running runs whose lease has already expired"},
		),
		RunningWithActiveLease: promauto.NewGauge(
			prometheus.GaugeOpts{Namespace: ns, Name: "running_with_active_lease", Help: "Running runs with an active lease"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total", Help: "Total HTTP requests"},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns, Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_in_flight", Help: "Current number of HTTP requests being processed"},
		),
		DBQueryTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: ns, Name: "db_queries_total", Help: "Total database queries"},
			[]string{"operation", "table"},
		),
		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns, Name: "db_query_duration_seconds", Help: "Database query duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"operation", "table"},
		),
		StepsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: ns, Name: "steps_total", Help: "Total steps executed by kind and status"},
			[]string{"kind", "status"},
		),
	}
}

// Handler serves the registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware wraps an http.Handler, recording request count and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// normalizePath collapses path segments that carry identifiers so the
// method/path/status label set stays low-cardinality, mirroring the
// teacher's server.normalizePath.
func normalizePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := range segments {
		if i > 0 && (segments[i-1] == "runs" || segments[i-1] == "events" || segments[i-1] == "packs") {
			segments[i] = "{id}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Collector periodically queries queue-depth aggregates straight out of
// Postgres, per spec §4.5 ("no separate metrics database; compute from the
// runs table"), and updates the gauges above.
type Collector struct {
	db  *sql.DB
	m   *Metrics
	log *logging.Logger
}

// NewCollector builds a Collector over the raw pool (bypassing the Store
// interface, since these are ad-hoc aggregate reads with no domain meaning
// of their own).
func NewCollector(db *sql.DB, m *Metrics) *Collector {
	return &Collector{db: db, m: m, log: logging.Default("metrics.collector")}
}

// Run ticks Tick every interval until ctx is cancelled.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				c.log.WithError(err).Warn("metrics: tick failed")
			}
		}
	}
}

// Tick runs a single collection pass.
func (c *Collector) Tick(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, `SELECT status, count(*) FROM runs GROUP BY status`)
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return err
		}
		c.m.QueueDepth.WithLabelValues(status).Set(float64(n))
		seen[status] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, status := range []string{"queued", "running", "completed", "failed", "cancelled"} {
		if !seen[status] {
			c.m.QueueDepth.WithLabelValues(status).Set(0)
		}
	}

	var ready, future int64
	if err := c.db.QueryRowContext(ctx,
		`SELECT count(*) FILTER (WHERE run_at <= now()), count(*) FILTER (WHERE run_at > now())
		 FROM runs WHERE status = 'queued'`).Scan(&ready, &future); err != nil {
		return err
	}
	c.m.QueueReadyDepth.Set(float64(ready))
	c.m.QueueFutureDepth.Set(float64(future))

	var oldestSecs sql.NullFloat64
	if err := c.db.QueryRowContext(ctx,
		`SELECT extract(epoch FROM now() - min(queued_at)) FROM runs WHERE status = 'queued' AND run_at <= now()`,
	).Scan(&oldestSecs); err != nil {
		return err
	}
	c.m.QueueOldestReadySecs.Set(oldestSecs.Float64)

	var expired, active int64
	if err := c.db.QueryRowContext(ctx,
		`SELECT
		   count(*) FILTER (WHERE lease_expires_at < now()),
		   count(*) FILTER (WHERE lease_expires_at >= now())
		 FROM runs WHERE status = 'running'`).Scan(&expired, &active); err != nil {
		return err
	}
	c.m.RunningWithExpiredLease.Set(float64(expired))
	c.m.RunningWithActiveLease.Set(float64(active))

	return nil
}
