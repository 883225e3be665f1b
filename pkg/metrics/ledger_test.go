package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLedgerMetricsCountDrift(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)
	m.IncReconciled()
	m.IncReconciled()
	m.IncDrift("courier")
	m.SetDriftCents(150)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "ledger_wallet_drift_total", "owner_type", "courier"); err != nil {
		t.Fatalf("fetch drift: %v", err)
	} else if got != 1 {
		t.Fatalf("expected drift=1, got %f", got)
	}
	checked := findMetricFamily(mfs, "ledger_wallets_reconciled_total")
	if checked == nil || checked.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatalf("expected two reconciled wallets")
	}
	gauge := findMetricFamily(mfs, "ledger_wallet_drift_cents")
	if gauge == nil || gauge.GetMetric()[0].GetGauge().GetValue() != 150 {
		t.Fatalf("expected drift gauge of 150")
	}
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var m *LedgerMetrics
	m.IncReconciled()
	m.IncDrift("platform")
	NewLedgerMetrics(nil).SetDriftCents(1)
}
