package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quizgen"

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics holds Prometheus metrics for the service
type Metrics struct {
	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	CacheLookups     *prometheus.CounterVec
	GeneratorCalls   *prometheus.CounterVec

	registry prometheus.Gatherer
}

// New registers all metrics on reg. Passing a fresh registry keeps tests isolated.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quiz_cache_lookups_total",
				Help:      "Quiz cache lookups by result",
			},
			[]string{"result"},
		),
		GeneratorCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generator_calls_total",
				Help:      "Text generation calls by purpose and outcome",
			},
			[]string{"purpose", "outcome"},
		),
		registry: reg,
	}
}

// ObserveCacheLookup is safe on a nil receiver.
func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveGenerator is safe on a nil receiver.
func (m *Metrics) ObserveGenerator(purpose string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.GeneratorCalls.WithLabelValues(purpose, outcome).Inc()
}

// MailQueue is what the mail worker exposes for scraping.
type MailQueue interface {
	Depth() int
	Sent() uint64
	Failed() uint64
	Dropped() uint64
}

// RegisterMailQueue exports the worker's counters as scrape-time functions.
func RegisterMailQueue(reg prometheus.Registerer, q MailQueue) {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mail_queue_depth",
		Help:      "Emails waiting for delivery",
	}, func() float64 { return float64(q.Depth()) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_sent_total",
		Help:      "Emails delivered",
	}, func() float64 { return float64(q.Sent()) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_failed_total",
		Help:      "Emails that failed delivery",
	}, func() float64 { return float64(q.Failed()) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_dropped_total",
		Help:      "Emails dropped because the queue was full or closed",
	}, func() float64 { return float64(q.Dropped()) })
}

// RegisterDBStats exports database connection pool statistics.
func RegisterDBStats(reg prometheus.Registerer, db *sql.DB) {
	factory := promauto.With(reg)
	stat := func(name, help string, fn func(sql.DBStats) float64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(db.Stats()) })
	}
	stat("open_connections", "Open connections", func(s sql.DBStats) float64 { return float64(s.OpenConnections) })
	stat("in_use_connections", "Connections in use", func(s sql.DBStats) float64 { return float64(s.InUse) })
	stat("idle_connections", "Idle connections", func(s sql.DBStats) float64 { return float64(s.Idle) })
	stat("wait_count", "Connections waited for", func(s sql.DBStats) float64 { return float64(s.WaitCount) })
}

// Middleware records request count, duration and in-flight requests.
// Unmatched routes are labelled "unmatched" to keep cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		m.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		m.RequestCounter.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
