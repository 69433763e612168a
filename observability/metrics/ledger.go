package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics bundles the host ledger collectors.
type LedgerMetrics struct {
	transactions *prometheus.CounterVec
	txDuration   prometheus.Histogram
	invocations  *prometheus.CounterVec
	events       *prometheus.CounterVec
	sequence     prometheus.Gauge
	pruned       prometheus.Counter
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

// Ledger returns the lazily-initialised ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "signescrow",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Transactions executed by the ledger segmented by outcome.",
			}, []string{"outcome"}),
			txDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "signescrow",
				Subsystem: "ledger",
				Name:      "transaction_duration_seconds",
				Help:      "Wall time spent executing and committing a transaction.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
			}),
			invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "signescrow",
				Subsystem: "ledger",
				Name:      "invocations_total",
				Help:      "Contract invocations segmented by contract and function.",
			}, []string{"contract", "function"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "signescrow",
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Committed contract events segmented by topic.",
			}, []string{"type"}),
			sequence: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "signescrow",
				Subsystem: "ledger",
				Name:      "sequence",
				Help:      "Current open ledger sequence.",
			}),
			pruned: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "signescrow",
				Subsystem: "ledger",
				Name:      "expired_entries_pruned_total",
				Help:      "Temporary entries removed after their time-to-live elapsed.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.transactions,
			ledgerRegistry.txDuration,
			ledgerRegistry.invocations,
			ledgerRegistry.events,
			ledgerRegistry.sequence,
			ledgerRegistry.pruned,
		)
	})
	return ledgerRegistry
}

// ObserveTransaction records the outcome of a transaction.
func (m *LedgerMetrics) ObserveTransaction(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.transactions.WithLabelValues(outcome).Inc()
	m.txDuration.Observe(elapsed.Seconds())
}

func (m *LedgerMetrics) ObserveInvocation(contract, function string) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(contract, function).Inc()
}

func (m *LedgerMetrics) ObserveEvent(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *LedgerMetrics) SetSequence(seq uint32) {
	if m == nil {
		return
	}
	m.sequence.Set(float64(seq))
}

func (m *LedgerMetrics) AddPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pruned.Add(float64(n))
}
