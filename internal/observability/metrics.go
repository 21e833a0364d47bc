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
	// Replay metrics
	RunsStarted    *prometheus.CounterVec
	RunsCompleted  *prometheus.CounterVec
	RunsLiquidated prometheus.Counter
	StepsProcessed prometheus.Counter
	AddEntries     prometheus.Counter
	TakeProfits    prometheus.Counter
	RunDuration    *prometheus.HistogramVec

	// Ingestion metrics
	CandlesIngested prometheus.Counter
	SignalsIngested prometheus.Counter
	IngestionErrors *prometheus.CounterVec

	// Live feed metrics
	FeedReconnects  prometheus.Counter
	FeedCandlesSeen prometheus.Counter
	WSClients       prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastCompletedRun        prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "futures_replay_lab"
	}

	return &Metrics{
		// Replay metrics
		RunsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "runs_started_total",
			Help:      "Total number of replay runs started by mode",
		}, []string{"mode"}),
		RunsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "runs_completed_total",
			Help:      "Total number of replay runs completed by mode",
		}, []string{"mode"}),
		RunsLiquidated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "runs_liquidated_total",
			Help:      "Total number of replay runs halted by liquidation",
		}),
		StepsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "steps_processed_total",
			Help:      "Total number of candle steps processed",
		}),
		AddEntries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "add_entries_total",
			Help:      "Total number of average-down events",
		}),
		TakeProfits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "take_profits_total",
			Help:      "Total number of take-profit closures",
		}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of replay runs by mode",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),

		// Ingestion metrics
		CandlesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "candles_ingested_total",
			Help:      "Total number of candles stored to database",
		}),
		SignalsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "signals_ingested_total",
			Help:      "Total number of signals stored to database",
		}),
		IngestionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by source",
		}, []string{"source"}),

		// Live feed metrics
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of kline stream reconnects",
		}),
		FeedCandlesSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "candles_seen_total",
			Help:      "Total number of closed candles received from the stream",
		}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "ws_clients",
			Help:      "Current number of connected websocket clients",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration by database and operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors by database and operation",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion batch",
		}),
		LastCompletedRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_completed_run_timestamp",
			Help:      "Unix timestamp of last completed replay run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRunStarted increments the runs started counter for a mode.
func RecordRunStarted(mode string) {
	DefaultMetrics.RunsStarted.WithLabelValues(mode).Inc()
}

// RecordRunCompleted records a completed run and its duration.
func RecordRunCompleted(mode string, durationSeconds float64, liquidated bool) {
	DefaultMetrics.RunsCompleted.WithLabelValues(mode).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(mode).Observe(durationSeconds)
	if liquidated {
		DefaultMetrics.RunsLiquidated.Inc()
	}
}

// RecordStep increments the steps processed counter.
func RecordStep() {
	DefaultMetrics.StepsProcessed.Inc()
}

// RecordAddEntry increments the average-down event counter.
func RecordAddEntry() {
	DefaultMetrics.AddEntries.Inc()
}

// RecordTakeProfit increments the take-profit closure counter.
func RecordTakeProfit() {
	DefaultMetrics.TakeProfits.Inc()
}

// RecordCandlesIngested adds to the candles ingested counter.
func RecordCandlesIngested(n int) {
	DefaultMetrics.CandlesIngested.Add(float64(n))
}

// RecordSignalsIngested adds to the signals ingested counter.
func RecordSignalsIngested(n int) {
	DefaultMetrics.SignalsIngested.Add(float64(n))
}

// RecordIngestionError records an ingestion error by source.
func RecordIngestionError(source string) {
	DefaultMetrics.IngestionErrors.WithLabelValues(source).Inc()
}

// RecordFeedReconnect increments the stream reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordFeedCandle increments the closed-candle stream counter.
func RecordFeedCandle() {
	DefaultMetrics.FeedCandlesSeen.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
