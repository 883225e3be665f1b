package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/foodrun-backend/internal/wallets"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeReconciler struct {
	ids        []uuid.UUID
	drift      map[uuid.UUID]int64
	failing    map[uuid.UUID]error
	listCalls  int
	reconciled []uuid.UUID
}

func (f *fakeReconciler) ListWalletIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	f.listCalls++
	start := 0
	if after != uuid.Nil {
		for i, id := range f.ids {
			if id == after {
				start = i + 1
			}
		}
	}
	end := start + limit
	if end > len(f.ids) {
		end = len(f.ids)
	}
	return f.ids[start:end], nil
}

func (f *fakeReconciler) Reconcile(ctx context.Context, walletID uuid.UUID) (*wallets.Reconciliation, error) {
	f.reconciled = append(f.reconciled, walletID)
	if err, ok := f.failing[walletID]; ok {
		return nil, err
	}
	rec := &wallets.Reconciliation{WalletID: walletID, OwnerType: enums.WalletOwnerCourier}
	if d, ok := f.drift[walletID]; ok {
		rec.DriftCents = d
		return rec, pkgerrors.New(pkgerrors.CodeReconciliation, "wallet balance does not match ledger")
	}
	return rec, nil
}

func newWalletReconcileJob(t *testing.T, rec walletReconciler, m *metrics.LedgerMetrics) Job {
	t.Helper()
	job, err := NewWalletReconcileJob(WalletReconcileJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Wallets:   rec,
		Metrics:   m,
		BatchSize: 2,
	})
	if err != nil {
		t.Fatalf("NewWalletReconcileJob: %v", err)
	}
	return job
}

func TestWalletReconcileJobWalksAllPagesAndCountsDrift(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	rec := &fakeReconciler{ids: ids, drift: map[uuid.UUID]int64{ids[1]: -150, ids[4]: 50}}
	reg := prometheus.NewRegistry()
	job := newWalletReconcileJob(t, rec, metrics.NewLedgerMetrics(reg))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.reconciled) != len(ids) {
		t.Fatalf("expected %d wallets reconciled, got %d", len(ids), len(rec.reconciled))
	}
	if rec.listCalls != 3 {
		t.Fatalf("expected 3 pages, got %d", rec.listCalls)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		switch mf.GetName() {
		case "ledger_wallet_drift_total":
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 2 {
				t.Fatalf("expected 2 drifted wallets, got %f", got)
			}
		case "ledger_wallet_drift_cents":
			if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 200 {
				t.Fatalf("expected drift total 200, got %f", got)
			}
		}
	}
}

func TestWalletReconcileJobAggregatesFailures(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	rec := &fakeReconciler{ids: ids, failing: map[uuid.UUID]error{
		ids[0]: errors.New("db down"),
		ids[2]: errors.New("timeout"),
	}}
	job := newWalletReconcileJob(t, rec, nil)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(rec.reconciled) != 3 {
		t.Fatalf("expected every wallet to be attempted, got %d", len(rec.reconciled))
	}
}
