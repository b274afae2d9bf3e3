// Package metrics declares the Prometheus collectors ledgerclose registers:
// one struct built by New, registered against a caller-supplied
// prometheus.Registerer rather than the global default (so tests can use a
// fresh registry per case).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is every counter/gauge/summary internal/closemgr updates over a
// node's lifetime.
type Metrics struct {
	// LatestLedgerMetric is the sequence number of the most recently
	// closed ledger.
	LatestLedgerMetric prometheus.Gauge

	// CloseDurationMetric measures CloseLedger wall-clock time.
	CloseDurationMetric prometheus.Summary

	// OperationResultsMetric counts applied operations by kind and result
	// code string, e.g. {op="path_payment",code="PATH_PAYMENT_TOO_FEW_OFFERS"}.
	OperationResultsMetric *prometheus.CounterVec

	// TxSetSizeMetric records how many transactions/operations survived
	// TrimInvalid + SurgePricingFilter for the most recent close.
	TxSetSizeMetric *prometheus.GaugeVec

	// StorageInvariantViolationsMetric counts
	// store.ErrStorageInvariantViolation aborts (spec §7 stratum 3) —
	// should stay at zero in a healthy node.
	StorageInvariantViolationsMetric prometheus.Counter
}

// New builds and registers a Metrics against registerer under namespace.
func New(registerer prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		LatestLedgerMetric: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "closemgr", Name: "latest_ledger",
			Help: "sequence number of the most recently closed ledger",
		}),
		CloseDurationMetric: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: namespace, Subsystem: "closemgr", Name: "close_duration_seconds",
			Help: "wall-clock duration of CloseLedger calls",
		}),
		OperationResultsMetric: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ops", Name: "results_total",
			Help: "count of applied operations by kind and result code",
		}, []string{"op", "code"}),
		TxSetSizeMetric: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "closemgr", Name: "tx_set_size",
			Help: "transactions and operations admitted into the most recent close",
		}, []string{"unit"}),
		StorageInvariantViolationsMetric: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "invariant_violations_total",
			Help: "count of ErrStorageInvariantViolation aborts",
		}),
	}
	registerer.MustRegister(
		m.LatestLedgerMetric,
		m.CloseDurationMetric,
		m.OperationResultsMetric,
		m.TxSetSizeMetric,
		m.StorageInvariantViolationsMetric,
	)
	return m
}
