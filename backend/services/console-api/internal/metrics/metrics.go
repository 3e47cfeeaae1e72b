package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "evconsole_"

var (
	registerOnce sync.Once

	transitionsTotal *prometheus.CounterVec
	rejectedTotal    *prometheus.CounterVec
	overdueBookings  *prometheus.GaugeVec
	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
	wsClients        prometheus.Gauge
)

// Init registers console metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		transitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "booking_transitions_total",
				Help: "Booking status transitions by action and target status",
			},
			[]string{"action", "to"},
		)
		rejectedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "booking_operation_errors_total",
				Help: "Refused booking operations by action and error kind",
			},
			[]string{"action", "kind"},
		)
		overdueBookings = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "overdue_bookings",
				Help: "Bookings past their end time by status",
			},
			[]string{"status"},
		)
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
		wsClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "ws_clients",
				Help: "Connected booking feed clients",
			},
		)

		prometheus.MustRegister(
			transitionsTotal,
			rejectedTotal,
			overdueBookings,
			httpRequests,
			httpLatency,
			wsClients,
		)
	})
}

// ObserveTransition counts a committed booking transition.
func ObserveTransition(action, to string) {
	if transitionsTotal != nil {
		transitionsTotal.WithLabelValues(action, to).Inc()
	}
}

// IncOperationError counts a refused booking operation.
func IncOperationError(action, kind string) {
	if kind == "" {
		kind = "internal"
	}
	if rejectedTotal != nil {
		rejectedTotal.WithLabelValues(action, kind).Inc()
	}
}

// SetOverdue publishes the number of overdue bookings for status.
func SetOverdue(status string, count int) {
	if count < 0 {
		count = 0
	}
	if overdueBookings != nil {
		overdueBookings.WithLabelValues(status).Set(float64(count))
	}
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, code int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

// AddWSClients moves the connected client gauge by delta.
func AddWSClients(delta int) {
	if wsClients != nil {
		wsClients.Add(float64(delta))
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
