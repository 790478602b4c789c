// Package metrics registers devicehub's Prometheus series and exposes
// nil-safe helpers for recording them. Helpers are no-ops until Init runs.
package metrics

import (
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "devicehub_"

	unknown = "unknown"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultDropped = "dropped"
)

// Transport labels for ingest counters.
const (
	TransportAMQP = "amqp"
	TransportMQTT = "mqtt"
)

// ErrorLogger receives failures from DB-backed gauges.
type ErrorLogger interface {
	Error(msg string, args ...any)
}

var (
	registerOnce sync.Once

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	ingestMessages *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	wsClients prometheus.Gauge
)

// Init registers all series with the default registry. Only the first call
// has any effect. db may be nil, in which case no pool gauges are exported.
func Init(db *sql.DB, logger ErrorLogger) {
	registerOnce.Do(func() {
		operationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "operations_total",
				Help: "Service operations by name and result",
			},
			[]string{"operation", "result"},
		)
		operationDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "operation_duration_seconds",
				Help:    "Service operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)

		ingestMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_messages_total",
				Help: "Device data messages consumed by transport and result",
			},
			[]string{"transport", "result"},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by method, route pattern and status",
			},
			[]string{"method", "route", "status"},
		)
		httpDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "websocket_clients",
			Help: "Connected websocket clients",
		})

		prometheus.MustRegister(
			operationsTotal,
			operationDuration,
			ingestMessages,
			httpRequests,
			httpDuration,
			wsClients,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveOperation records one service operation.
func ObserveOperation(operation, result string, duration time.Duration) {
	if operation == "" {
		operation = unknown
	}
	if result == "" {
		result = ResultSuccess
	}
	if operationsTotal != nil {
		operationsTotal.WithLabelValues(operation, result).Inc()
	}
	if operationDuration != nil {
		operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// IncIngest counts one consumed message.
func IncIngest(transport, result string) {
	if transport == "" {
		transport = unknown
	}
	if result == "" {
		result = ResultSuccess
	}
	if ingestMessages != nil {
		ingestMessages.WithLabelValues(transport, result).Inc()
	}
}

// ObserveHTTP records one HTTP request. route is the chi route pattern,
// never the raw path, to keep label cardinality bounded.
func ObserveHTTP(method, route, status string, duration time.Duration) {
	if route == "" {
		route = unknown
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, status).Inc()
	}
	if httpDuration != nil {
		httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

// SetWebSocketClients sets the connected client gauge.
func SetWebSocketClients(n int) {
	if wsClients != nil {
		wsClients.Set(float64(n))
	}
}
