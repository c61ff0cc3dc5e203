package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadlift_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadlift_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Enrichment job metrics
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadlift_jobs_total",
			Help: "Total number of enrichment jobs by outcome",
		},
		[]string{"status"}, // started, completed, failed
	)

	jobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadlift_jobs_active",
			Help: "Number of enrichment jobs currently running",
		},
	)

	rowsProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadlift_rows_processed_total",
			Help: "Total number of contact rows submitted for matching",
		},
	)

	jobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadlift_job_duration_seconds",
			Help:    "Enrichment job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800},
		},
	)

	// Provider API metrics
	providerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadlift_provider_requests_total",
			Help: "Total number of bulk match calls to the enrichment provider",
		},
		[]string{"outcome"}, // ok, validation_error, api_error, transport_error
	)

	providerRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadlift_provider_request_duration_seconds",
			Help:    "Bulk match call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadlift_websocket_connections",
			Help: "Number of active WebSocket log subscribers",
		},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadlift_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadlift_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Error metrics
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadlift_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"}, // upload, database, redis, provider
	)
)

// PrometheusMiddleware creates a Fiber middleware for Prometheus metrics
func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		method := c.Method()
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		statusCode := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// JobStarted tracks a job entering the running state
func JobStarted() {
	jobsTotal.WithLabelValues("started").Inc()
	jobsActive.Inc()
}

// JobFinished tracks a job leaving the running state
func JobFinished(status string, duration time.Duration) {
	jobsTotal.WithLabelValues(status).Inc()
	jobsActive.Dec()
	jobDuration.Observe(duration.Seconds())
}

// AddRowsProcessed adds to the processed rows counter
func AddRowsProcessed(n int) {
	rowsProcessedTotal.Add(float64(n))
}

// ObserveProviderRequest records one bulk match call
func ObserveProviderRequest(outcome string, duration time.Duration) {
	providerRequestsTotal.WithLabelValues(outcome).Inc()
	providerRequestDuration.Observe(duration.Seconds())
}

// UpdateWebSocketConnections updates WebSocket connections gauge
func UpdateWebSocketConnections(count int) {
	websocketConnections.Set(float64(count))
}

// UpdateDatabaseMetrics updates database connection metrics
func UpdateDatabaseMetrics(active, idle int) {
	dbConnectionsActive.Set(float64(active))
	dbConnectionsIdle.Set(float64(idle))
}

// IncrementError increments error counter
func IncrementError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
