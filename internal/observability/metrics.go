// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry metrics
	MutationsTotal   *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
	EventsPublished  *prometheus.CounterVec

	// Pricing metrics
	SpotQuotesTotal    *prometheus.CounterVec
	SpotQuoteLatency   prometheus.Histogram
	ConsensusTotal     *prometheus.CounterVec
	ConsensusAliveSize prometheus.Histogram

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	StreamClients       prometheus.Gauge

	// History metrics
	HistoryPointsWritten prometheus.Counter
	HistoryPointsDropped prometheus.Counter
	HistoryQueueSize     prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "price_registry"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Registry metrics
		MutationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "mutations_total",
			Help:      "Total number of registry mutations by operation and outcome",
		}, []string{"operation", "outcome"}),
		MutationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "mutation_duration_seconds",
			Help:      "Registry mutation duration including persistence",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "events_published_total",
			Help:      "Total number of committed events by type",
		}, []string{"type"}),

		// Pricing metrics
		SpotQuotesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spot",
			Name:      "quotes_total",
			Help:      "Total number of spot quotes by outcome",
		}, []string{"outcome"}),
		SpotQuoteLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "spot",
			Name:      "quote_latency_seconds",
			Help:      "Spot quote latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ConsensusTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "aggregations_total",
			Help:      "Total number of consensus aggregations by outcome",
		}, []string{"outcome"}),
		ConsensusAliveSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "alive_reports",
			Help:      "Number of alive reports per aggregation",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),

		// API metrics
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		StreamClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "stream_clients",
			Help:      "Number of connected event stream clients",
		}),

		// History metrics
		HistoryPointsWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "points_written_total",
			Help:      "Total number of price history points written",
		}),
		HistoryPointsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "points_dropped_total",
			Help:      "Total number of price history points dropped on a full queue or failed flush",
		}),
		HistoryQueueSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "queue_size",
			Help:      "Current number of points waiting to be flushed",
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordMutation records a registry mutation.
func RecordMutation(operation string, d time.Duration, err error) {
	DefaultMetrics.MutationsTotal.WithLabelValues(operation, outcome(err)).Inc()
	DefaultMetrics.MutationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordEvent increments the committed event counter.
func RecordEvent(eventType string) {
	DefaultMetrics.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordSpotQuote records a spot price lookup.
func RecordSpotQuote(d time.Duration, err error) {
	DefaultMetrics.SpotQuotesTotal.WithLabelValues(outcome(err)).Inc()
	DefaultMetrics.SpotQuoteLatency.Observe(d.Seconds())
}

// RecordConsensus records a consensus aggregation. unstable marks a
// rejection because of reporter disagreement.
func RecordConsensus(alive int, unstable bool) {
	label := "ok"
	switch {
	case unstable:
		label = "unstable"
	case alive == 0:
		label = "empty"
	}
	DefaultMetrics.ConsensusTotal.WithLabelValues(label).Inc()
	DefaultMetrics.ConsensusAliveSize.Observe(float64(alive))
}

// RecordHTTPRequest records an API request.
func RecordHTTPRequest(route, method, status string, d time.Duration) {
	DefaultMetrics.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// UpdateStreamClients sets the connected stream client gauge.
func UpdateStreamClients(n int) {
	DefaultMetrics.StreamClients.Set(float64(n))
}

// RecordHistoryWritten adds n to the written history point counter.
func RecordHistoryWritten(n int) {
	DefaultMetrics.HistoryPointsWritten.Add(float64(n))
}

// RecordHistoryDropped adds n to the dropped history point counter.
func RecordHistoryDropped(n int) {
	DefaultMetrics.HistoryPointsDropped.Add(float64(n))
}

// UpdateHistoryQueue sets the history queue gauge.
func UpdateHistoryQueue(n int) {
	DefaultMetrics.HistoryQueueSize.Set(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
