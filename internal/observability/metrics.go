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
	TransactionsTotal  *prometheus.CounterVec
	TransactionLatency *prometheus.HistogramVec
	ReadOnlyCallsTotal *prometheus.CounterVec
	ContractsDeployed  *prometheus.CounterVec
	EventsEmitted      *prometheus.CounterVec

	// Token metrics
	TokensCreated   prometheus.Counter
	FeesCollected   prometheus.Counter
	FaucetDisbursed prometheus.Counter

	// Chain metrics
	ChainHeight prometheus.Gauge
	BlocksMined prometheus.Counter

	// Node surface metrics
	RPCRequestLatency *prometheus.HistogramVec
	FeedSubscribers   prometheus.Gauge
	FeedDropped       prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastCommittedBlock prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_forge"
	}

	return &Metrics{
		// Execution metrics
		TransactionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "transactions_total",
			Help:      "Total number of executed transactions by contract kind, function and outcome",
		}, []string{"kind", "function", "outcome"}),
		TransactionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "transaction_latency_seconds",
			Help:      "Transaction execution latency in seconds, including the storage commit",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		ReadOnlyCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "read_only_calls_total",
			Help:      "Total number of read-only calls by function and outcome",
		}, []string{"function", "outcome"}),
		ContractsDeployed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "contracts_deployed_total",
			Help:      "Total number of deployed contracts by kind",
		}, []string{"kind"}),
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "events_emitted_total",
			Help:      "Total number of events emitted by committed transactions",
		}, []string{"topic"}),

		// Token metrics
		TokensCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "factory",
			Name:      "tokens_created_total",
			Help:      "Total number of tokens registered through create-token",
		}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "factory",
			Name:      "fees_collected_micro_total",
			Help:      "Total creation fees collected in micro-units",
		}),
		FaucetDisbursed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "faucet_disbursed_micro_total",
			Help:      "Total native micro-units credited by the faucet",
		}),

		// Chain metrics
		ChainHeight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "height",
			Help:      "Height of the last mined block",
		}),
		BlocksMined: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "blocks_mined_total",
			Help:      "Total number of mined blocks",
		}),

		// Node surface metrics
		RPCRequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "request_latency_seconds",
			Help:      "JSON-RPC request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Current number of websocket receipt subscribers",
		}),
		FeedDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "dropped_total",
			Help:      "Total number of receipts dropped for slow subscribers",
		}),

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
		LastCommittedBlock: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_committed_block_timestamp",
			Help:      "Unix timestamp of the last mined block",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTransaction records one executed transaction.
// outcome is "ok", "err" (contract error code) or "native" (platform error).
func RecordTransaction(kind, function, outcome string, seconds float64) {
	DefaultMetrics.TransactionsTotal.WithLabelValues(kind, function, outcome).Inc()
	DefaultMetrics.TransactionLatency.WithLabelValues(kind).Observe(seconds)
}

// RecordReadOnlyCall records a read-only call.
func RecordReadOnlyCall(function, outcome string) {
	DefaultMetrics.ReadOnlyCallsTotal.WithLabelValues(function, outcome).Inc()
}

// RecordDeploy increments the deployed contracts counter.
func RecordDeploy(kind string) {
	DefaultMetrics.ContractsDeployed.WithLabelValues(kind).Inc()
}

// RecordEvent increments the emitted events counter.
func RecordEvent(topic string) {
	DefaultMetrics.EventsEmitted.WithLabelValues(topic).Inc()
}

// RecordTokenCreated increments the tokens created counter.
func RecordTokenCreated() {
	DefaultMetrics.TokensCreated.Inc()
}

// RecordFeeCollected adds a collected creation fee. Fees above 2^53 lose precision.
func RecordFeeCollected(micro float64) {
	DefaultMetrics.FeesCollected.Add(micro)
}

// RecordFaucet adds a faucet disbursement.
func RecordFaucet(micro float64) {
	DefaultMetrics.FaucetDisbursed.Add(micro)
}

// RecordBlock updates the chain gauges after a block is mined.
func RecordBlock(height uint64, unixSeconds int64) {
	DefaultMetrics.BlocksMined.Inc()
	DefaultMetrics.ChainHeight.Set(float64(height))
	DefaultMetrics.LastCommittedBlock.Set(float64(unixSeconds))
}

// RecordRPCLatency records JSON-RPC request latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCRequestLatency.WithLabelValues(method).Observe(seconds)
}

// UpdateFeedSubscribers sets the subscriber gauge.
func UpdateFeedSubscribers(n int) {
	DefaultMetrics.FeedSubscribers.Set(float64(n))
}

// RecordFeedDrop increments the dropped receipts counter.
func RecordFeedDrop() {
	DefaultMetrics.FeedDropped.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
