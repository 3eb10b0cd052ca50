// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. Constructed
// once at process start and passed to the components that record into it.
type Metrics struct {
	// Stream metrics
	TxsReceived       prometheus.Counter
	ReconnectAttempts prometheus.Counter
	ConnectionState   prometheus.Gauge
	MessageLatency    prometheus.Histogram

	// Decode metrics
	SwapsDecoded *prometheus.CounterVec
	DecodeSkips  prometheus.Counter

	// Aggregation metrics
	CandlesOpened prometheus.Counter
	CandlesClosed *prometheus.CounterVec
	LateDrops     prometheus.Counter
	TrackedPairs  prometheus.Gauge

	// Sink metrics
	CandlesPersisted prometheus.Counter
	SinkErrors       *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec

	// API metrics
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dexcharts"
	}

	return &Metrics{
		// Stream metrics
		TxsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "txs_received_total",
			Help:      "Total number of transaction events received from the feed",
		}),
		ReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of reconnect attempts",
		}),
		ConnectionState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connection_state",
			Help:      "Connection state (0=disconnected 1=connecting 2=connected 3=backoff 4=failed)",
		}),
		MessageLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "message_latency_seconds",
			Help:      "Per-message decode-and-aggregate latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),

		// Decode metrics
		SwapsDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "swaps_decoded_total",
			Help:      "Total number of swaps decoded by protocol",
		}, []string{"dex"}),
		DecodeSkips: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "skips_total",
			Help:      "Total number of transactions skipped as not recognized swaps",
		}),

		// Aggregation metrics
		CandlesOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "opened_total",
			Help:      "Total number of candles opened",
		}),
		CandlesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "closed_total",
			Help:      "Total number of candles closed by timeframe",
		}, []string{"timeframe"}),
		LateDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "late_drops_total",
			Help:      "Total number of trades dropped for arriving behind the open bucket",
		}),
		TrackedPairs: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "tracked_pairs",
			Help:      "Number of distinct trading pairs observed",
		}),

		// Sink metrics
		CandlesPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "candles_persisted_total",
			Help:      "Total number of closed candles written to the store",
		}),
		SinkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "errors_total",
			Help:      "Total number of persistence errors by sink",
		}, []string{"sink"}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "events_total",
			Help:      "Total number of events published by channel kind",
		}, []string{"kind"}),

		// API metrics
		APIRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status",
		}, []string{"route", "status"}),
		APILatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
