package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the narrow metrics contract the engine shell depends on;
// Metrics below is the prometheus-backed implementation, used when the
// engine is built WithMetrics (otherwise a no-op recorder is used),
// exposing Counter and Histogram collectors via client_golang (see
// DESIGN.md's ambient stack table).
type Recorder interface {
	BlockInserted(gasUsed uint64, txCount int)
	TxExecuted(success bool, gasUsed uint64)
	EngineBusyRejected()
}

// Metrics is the prometheus-backed Recorder, registering a small fixed set of
// prometheus collectors under the "ethrun_" namespace.
type Metrics struct {
	blocksInserted prometheus.Counter
	blockGasUsed   prometheus.Histogram
	blockTxCount   prometheus.Histogram

	txTotal    *prometheus.CounterVec
	txGasUsed  prometheus.Histogram

	busyRejections prometheus.Counter
}

// NewMetrics constructs a Metrics and registers its collectors with reg.
// Passing prometheus.NewRegistry() (rather than the global default
// registry) keeps multiple engine instances in one process from
// colliding on metric names; cmd/ethrun wires one registry per process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		blocksInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ethrun_blocks_inserted_total",
			Help: "Total number of blocks successfully inserted into the chain.",
		}),
		blockGasUsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ethrun_block_gas_used",
			Help:    "Gas used per inserted block.",
			Buckets: prometheus.ExponentialBuckets(21_000, 4, 10),
		}),
		blockTxCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ethrun_block_tx_count",
			Help:    "Number of transactions per inserted block.",
			Buckets: prometheus.LinearBuckets(0, 25, 12),
		}),
		txTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ethrun_transactions_total",
			Help: "Total number of transactions executed, by outcome.",
		}, []string{"outcome"}),
		txGasUsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ethrun_tx_gas_used",
			Help:    "Gas used per executed transaction.",
			Buckets: prometheus.ExponentialBuckets(21_000, 2, 12),
		}),
		busyRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ethrun_engine_busy_rejections_total",
			Help: "Number of requests rejected because the engine was already executing.",
		}),
	}
	reg.MustRegister(m.blocksInserted, m.blockGasUsed, m.blockTxCount, m.txTotal, m.txGasUsed, m.busyRejections)
	return m
}

var _ Recorder = (*Metrics)(nil)

func (m *Metrics) BlockInserted(gasUsed uint64, txCount int) {
	m.blocksInserted.Inc()
	m.blockGasUsed.Observe(float64(gasUsed))
	m.blockTxCount.Observe(float64(txCount))
}

func (m *Metrics) TxExecuted(success bool, gasUsed uint64) {
	outcome := "success"
	if !success {
		outcome = "failed"
	}
	m.txTotal.WithLabelValues(outcome).Inc()
	m.txGasUsed.Observe(float64(gasUsed))
}

func (m *Metrics) EngineBusyRejected() {
	m.busyRejections.Inc()
}

// noopRecorder is used when the engine is constructed without a metrics
// registry; it discards everything.
type noopRecorder struct{}

func (noopRecorder) BlockInserted(uint64, int)  {}
func (noopRecorder) TxExecuted(bool, uint64)    {}
func (noopRecorder) EngineBusyRejected()        {}

var _ Recorder = noopRecorder{}
