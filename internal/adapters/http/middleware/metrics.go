package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequestsTotal counts total HTTP requests
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixledger",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration measures request latency
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pixledger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// httpRequestsInFlight tracks concurrent requests
	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pixledger",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	// httpResponseSize measures response body size
	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pixledger",
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8), // 100B to 1GB
		},
		[]string{"method", "path"},
	)
)

// Business metrics
var (
	// PixTransfersTotal counts Pix transfers by terminal/non-terminal status.
	PixTransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixledger",
			Subsystem: "business",
			Name:      "pix_transfers_total",
			Help:      "Total number of Pix transfers by status",
		},
		[]string{"status"},
	)

	// PixTransferAmount tracks Pix transfer amounts in cents.
	PixTransferAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pixledger",
			Subsystem: "business",
			Name:      "pix_transfer_amount_cents",
			Help:      "Pix transfer amounts in cents",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 10), // 1 BRL to 1B BRL
		},
		[]string{"status"},
	)

	// IdempotencyHitsTotal counts idempotency replays vs first-processing
	// by scope ("transfer", "webhook").
	IdempotencyHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixledger",
			Subsystem: "business",
			Name:      "idempotency_hits_total",
			Help:      "Idempotency store lookups by scope and outcome (hit/miss)",
		},
		[]string{"scope", "outcome"},
	)

	// WalletsTotal counts total wallets by status.
	WalletsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pixledger",
			Subsystem: "business",
			Name:      "wallets_total",
			Help:      "Total number of wallets by status",
		},
		[]string{"status"},
	)
)

// Database metrics
var (
	// dbQueryDuration measures database query latency
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pixledger",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation", "table"},
	)

	// dbConnectionsTotal tracks database connections
	DBConnectionsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pixledger",
			Subsystem: "db",
			Name:      "connections",
			Help:      "Number of database connections",
		},
		[]string{"state"}, // idle, in_use, max
	)

	// dbErrorsTotal counts database errors
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixledger",
			Subsystem: "db",
			Name:      "errors_total",
			Help:      "Total number of database errors",
		},
		[]string{"operation", "error_type"},
	)
)

// Metrics returns Prometheus metrics middleware
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip metrics endpoint
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		method := c.Request.Method

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(c.Writer.Size()))
	}
}

// RecordPixTransfer records a Pix transfer's status and amount at the time of
// the call (the initiate handler calls it with the status Initiate returned).
func RecordPixTransfer(status string, amountCents int64) {
	PixTransfersTotal.WithLabelValues(status).Inc()
	PixTransferAmount.WithLabelValues(status).Observe(float64(amountCents))
}

// RecordIdempotencyLookup records whether an idempotency check replayed a
// prior response ("hit") or proceeded with first processing ("miss").
func RecordIdempotencyLookup(scope, outcome string) {
	IdempotencyHitsTotal.WithLabelValues(scope, outcome).Inc()
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDBError records a database error metric
func RecordDBError(operation, errorType string) {
	DBErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// UpdateDBConnections updates database connection metrics
func UpdateDBConnections(idle, inUse, max int32) {
	DBConnectionsTotal.WithLabelValues("idle").Set(float64(idle))
	DBConnectionsTotal.WithLabelValues("in_use").Set(float64(inUse))
	DBConnectionsTotal.WithLabelValues("max").Set(float64(max))
}
