package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerEntriesRecorded counts committed ledger entries by entry type
var LedgerEntriesRecorded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "custody_ledger_entries_recorded_total",
		Help: "Total number of ledger entries committed",
	},
	[]string{"entry_type"},
)

// EscrowOperations counts escrow and wallet balance operations by outcome
var EscrowOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "custody_escrow_operations_total",
		Help: "Total number of balance operations by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

// BalanceOpLatency records how long a balance transaction takes end to end
var BalanceOpLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "custody_balance_operation_latency_seconds",
		Help:    "Latency in seconds of balance mutating operations",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// RiskVerdicts counts risk gate decisions
var RiskVerdicts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "custody_risk_verdicts_total",
		Help: "Total number of order intents validated, by verdict and reason",
	},
	[]string{"verdict", "reason"},
)

// Reconciliation metrics
var (
	ReconciliationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "custody_reconciliation_runs_total",
			Help: "Total number of reconciliation runs by period and outcome",
		},
		[]string{"period", "outcome"},
	)

	ReconciliationMismatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "custody_reconciliation_mismatches_total",
			Help: "Total number of reconciliation mismatches raised",
		},
		[]string{"type", "severity"},
	)
)

// Register adds every collector to reg. The collectors work unregistered,
// so tests never need to call this.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		LedgerEntriesRecorded,
		EscrowOperations,
		BalanceOpLatency,
		RiskVerdicts,
		ReconciliationRuns,
		ReconciliationMismatches,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
