package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics counts wallet reconciliation outcomes.
type LedgerMetrics struct {
	checked    prometheus.Counter
	drift      *prometheus.CounterVec
	driftCents prometheus.Gauge
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	checked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_wallets_reconciled_total",
		Help: "Wallets compared against their ledger entries.",
	})
	drift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_wallet_drift_total",
		Help: "Wallets whose stored balance differs from the ledger sum.",
	}, []string{"owner_type"})
	driftCents := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_wallet_drift_cents",
		Help: "Absolute drift found by the last reconciliation run, in halalas.",
	})
	reg.MustRegister(checked, drift, driftCents)
	return &LedgerMetrics{checked: checked, drift: drift, driftCents: driftCents}
}

func (l *LedgerMetrics) IncReconciled() {
	if l == nil || l.checked == nil {
		return
	}
	l.checked.Inc()
}

func (l *LedgerMetrics) IncDrift(ownerType string) {
	if l == nil || l.drift == nil {
		return
	}
	l.drift.WithLabelValues(normalizeLabel(ownerType)).Inc()
}

// SetDriftCents records the run total; negative drifts count by magnitude.
func (l *LedgerMetrics) SetDriftCents(total int64) {
	if l == nil || l.driftCents == nil {
		return
	}
	l.driftCents.Set(float64(total))
}
