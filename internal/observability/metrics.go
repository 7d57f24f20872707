package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors for the HTTP surface and the
// notification pipeline.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	emailsSentTotal          prometheus.Counter
	emailsFailedTotal        prometheus.Counter
	actionJobsQueuedTotal    prometheus.Counter
	actionJobsDroppedTotal   prometheus.Counter
	broadcastsCreatedTotal   prometheus.Counter
	deliveryRowsCreatedTotal prometheus.Counter
	streamConnections        prometheus.Gauge
	streamEventsPushedTotal  prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notify_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		emailsSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify_engine",
			Name:      "emails_sent_total",
			Help:      "Total number of digest emails handed to the mail relay.",
		}),
		emailsFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify_engine",
			Name:      "emails_failed_total",
			Help:      "Total number of digest emails the relay rejected or dropped.",
		}),
		actionJobsQueuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify_engine",
			Name:      "action_jobs_queued_total",
			Help:      "Total number of admin-action jobs accepted by the queue.",
		}),
		actionJobsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify_engine",
			Name:      "action_jobs_dropped_total",
			Help:      "Total number of admin-action jobs dropped by a saturated queue.",
		}),
		broadcastsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify_engine",
			Name:      "broadcasts_created_total",
			Help:      "Total number of notifications persisted and fanned out.",
		}),
		deliveryRowsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify_engine",
			Name:      "delivery_rows_created_total",
			Help:      "Total number of per-user delivery rows created.",
		}),
		streamConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "notify_engine",
			Name:      "stream_connections",
			Help:      "Current number of open notification stream connections.",
		}),
		streamEventsPushedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "notify_engine",
			Name:      "stream_events_pushed_total",
			Help:      "Total number of live events queued for stream connections.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.emailsSentTotal,
		m.emailsFailedTotal,
		m.actionJobsQueuedTotal,
		m.actionJobsDroppedTotal,
		m.broadcastsCreatedTotal,
		m.deliveryRowsCreatedTotal,
		m.streamConnections,
		m.streamEventsPushedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncEmailSent() {
	if m == nil {
		return
	}
	m.emailsSentTotal.Inc()
}

func (m *Metrics) IncEmailFailed() {
	if m == nil {
		return
	}
	m.emailsFailedTotal.Inc()
}

func (m *Metrics) IncActionQueued() {
	if m == nil {
		return
	}
	m.actionJobsQueuedTotal.Inc()
}

func (m *Metrics) IncActionDropped() {
	if m == nil {
		return
	}
	m.actionJobsDroppedTotal.Inc()
}

func (m *Metrics) IncBroadcastCreated() {
	if m == nil {
		return
	}
	m.broadcastsCreatedTotal.Inc()
}

func (m *Metrics) AddDeliveriesCreated(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.deliveryRowsCreatedTotal.Add(float64(count))
}

func (m *Metrics) IncStreamConnections() {
	if m == nil {
		return
	}
	m.streamConnections.Inc()
}

func (m *Metrics) DecStreamConnections() {
	if m == nil {
		return
	}
	m.streamConnections.Dec()
}

func (m *Metrics) AddStreamEventsPushed(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.streamEventsPushedTotal.Add(float64(count))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}
