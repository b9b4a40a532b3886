package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Requests          *prometheus.CounterVec
	LatencyMS         *prometheus.HistogramVec
	OrdersCreated     prometheus.Counter
	OrderFailures     *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
	StockConflicts    prometheus.Counter
}

func NewMetrics() *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cookiebarrel",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "method", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cookiebarrel",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cookiebarrel",
		Subsystem: "orders",
		Name:      "created_total",
		Help:      "Orders persisted.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cookiebarrel",
		Subsystem: "orders",
		Name:      "failures_total",
		Help:      "Rejected order operations by error kind.",
	}, []string{"operation", "kind"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cookiebarrel",
		Subsystem: "orders",
		Name:      "status_transitions_total",
		Help:      "Applied order status transitions.",
	}, []string{"from", "to"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cookiebarrel",
		Subsystem: "stock",
		Name:      "decrement_conflicts_total",
		Help:      "Conditional stock decrements that lost a race.",
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		requests, latency, created, failures, transitions, conflicts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:          registry,
		Requests:          requests,
		LatencyMS:         latency,
		OrdersCreated:     created,
		OrderFailures:     failures,
		StatusTransitions: transitions,
		StockConflicts:    conflicts,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(handler, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.OrdersCreated.Inc()
}

func (m *Metrics) OrderFailed(operation, kind string) {
	if m == nil {
		return
	}
	m.OrderFailures.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) StatusChanged(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) StockConflict() {
	if m == nil {
		return
	}
	m.StockConflicts.Inc()
}
