package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "passport_notifier"

const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeDropped = "dropped"
)

// Metrics agrupa los collectors del servicio. Un *Metrics nil es válido y no hace nada.
type Metrics struct {
	registry *prometheus.Registry

	eventsConsumed         *prometheus.CounterVec
	eventsPublished        *prometheus.CounterVec
	notificationsDelivered *prometheus.CounterVec
	deliveryDuration       *prometheus.HistogramVec
	httpRequests           *prometheus.CounterVec
}

// NewMetrics registra los collectors en un registry propio (tests aislados, sin estado global).
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Domain events received by the notification pipeline.",
		}, []string{"topic", "outcome"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published to the log.",
		}, []string{"topic", "outcome"}),
		notificationsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Delivery attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		deliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Duration of a single delivery attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.eventsConsumed,
		m.eventsPublished,
		m.notificationsDelivered,
		m.deliveryDuration,
		m.httpRequests,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) EventConsumed(topic, outcome string) {
	if m == nil {
		return
	}
	m.eventsConsumed.WithLabelValues(topic, outcome).Inc()
}

func (m *Metrics) EventPublished(topic, outcome string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(topic, outcome).Inc()
}

func (m *Metrics) DeliveryAttempt(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.notificationsDelivered.WithLabelValues(method, outcome).Inc()
	m.deliveryDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Handler expone el registry para el endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// GinMiddleware cuenta las peticiones por ruta registrada (no por path real, para acotar cardinalidad).
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
