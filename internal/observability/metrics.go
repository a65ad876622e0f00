// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Execution metrics
	RouteAttempts  *prometheus.CounterVec
	RouteLatency   *prometheus.HistogramVec
	RouteExhausted *prometheus.CounterVec
	FillsTotal     *prometheus.CounterVec

	// Engine metrics
	ScansTotal         *prometheus.CounterVec
	ScanDuration       prometheus.Histogram
	CandidatesFiltered prometheus.Counter
	PositionsOpened    prometheus.Counter
	OpenPositions      prometheus.Gauge
	PositionsClosed    *prometheus.CounterVec

	// Feed metrics
	FeedRefreshes     *prometheus.CounterVec
	FeedCandidates    prometheus.Gauge
	PriceLookupErrors prometheus.Counter
	StreamMessages    prometheus.Counter

	// Solana metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_autotrader"
	}

	return &Metrics{
		// Execution metrics
		RouteAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "route_attempts_total",
			Help:      "Total number of adapter attempts by source, side and outcome",
		}, []string{"source", "side", "outcome"}),
		RouteLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "route_latency_seconds",
			Help:      "Adapter attempt latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source", "side"}),
		RouteExhausted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "route_exhausted_total",
			Help:      "Total number of orders where every source failed",
		}, []string{"side"}),
		FillsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "fills_total",
			Help:      "Total number of winning fills by source and side",
		}, []string{"source", "side"}),

		// Engine metrics
		ScansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "scans_total",
			Help:      "Total number of scan cycles by status",
		}, []string{"status"}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "scan_duration_seconds",
			Help:      "Scan cycle duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		CandidatesFiltered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "candidates_passed_total",
			Help:      "Total number of candidates passing a user's strategy",
		}),
		PositionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened",
		}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "open_positions",
			Help:      "Current number of monitored positions",
		}),
		PositionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "positions_closed_total",
			Help:      "Total number of positions reaching a terminal state",
		}, []string{"state"}),

		// Feed metrics
		FeedRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "refreshes_total",
			Help:      "Total number of candidate feed refreshes by status",
		}, []string{"status"}),
		FeedCandidates: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "candidates",
			Help:      "Number of candidates in the shared cache",
		}),
		PriceLookupErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "price_lookup_errors_total",
			Help:      "Total number of failed current-price lookups",
		}),
		StreamMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "stream_messages_total",
			Help:      "Total number of price stream messages received",
		}),

		// Solana metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulScan: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of last completed scan",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRouteAttempt records one adapter attempt.
func RecordRouteAttempt(source, side, outcome string, seconds float64) {
	DefaultMetrics.RouteAttempts.WithLabelValues(source, side, outcome).Inc()
	DefaultMetrics.RouteLatency.WithLabelValues(source, side).Observe(seconds)
}

// RecordRouteExhausted records an order where every source failed.
func RecordRouteExhausted(side string) {
	DefaultMetrics.RouteExhausted.WithLabelValues(side).Inc()
}

// RecordFill records a winning fill.
func RecordFill(source, side string) {
	DefaultMetrics.FillsTotal.WithLabelValues(source, side).Inc()
}

// RecordScan records a scan cycle.
func RecordScan(status string, seconds float64, finishedUnix int64) {
	DefaultMetrics.ScansTotal.WithLabelValues(status).Inc()
	DefaultMetrics.ScanDuration.Observe(seconds)
	if status == "ok" {
		DefaultMetrics.LastSuccessfulScan.Set(float64(finishedUnix))
	}
}

// RecordCandidatesPassed adds to the filtered candidates counter.
func RecordCandidatesPassed(n int) {
	DefaultMetrics.CandidatesFiltered.Add(float64(n))
}

// RecordPositionOpened increments the opened counter and open gauge.
func RecordPositionOpened() {
	DefaultMetrics.PositionsOpened.Inc()
	DefaultMetrics.OpenPositions.Inc()
}

// RecordPositionClosed decrements the open gauge and counts the terminal state.
func RecordPositionClosed(state string) {
	DefaultMetrics.OpenPositions.Dec()
	DefaultMetrics.PositionsClosed.WithLabelValues(state).Inc()
}

// RecordMonitorStopped decrements the open gauge for a monitor cancelled before terminal state.
func RecordMonitorStopped() {
	DefaultMetrics.OpenPositions.Dec()
}

// RecordFeedRefresh records a candidate feed refresh.
func RecordFeedRefresh(status string, candidates int) {
	DefaultMetrics.FeedRefreshes.WithLabelValues(status).Inc()
	if status == "ok" {
		DefaultMetrics.FeedCandidates.Set(float64(candidates))
	}
}

// RecordPriceLookupError increments the price lookup error counter.
func RecordPriceLookupError() {
	DefaultMetrics.PriceLookupErrors.Inc()
}

// RecordStreamMessage increments the price stream message counter.
func RecordStreamMessage() {
	DefaultMetrics.StreamMessages.Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
