package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/foodrun-backend/internal/wallets"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const walletReconcileBatch = 100

type walletReconciler interface {
	ListWalletIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
	Reconcile(ctx context.Context, walletID uuid.UUID) (*wallets.Reconciliation, error)
}

type WalletReconcileJobParams struct {
	Logger    *logger.Logger
	Wallets   walletReconciler
	Metrics   *metrics.LedgerMetrics
	BatchSize int
}

// NewWalletReconcileJob compares every wallet with its ledger. Drift is
// reported, never corrected.
func NewWalletReconcileJob(params WalletReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = walletReconcileBatch
	}
	return &walletReconcileJob{
		logg:    params.Logger,
		wallets: params.Wallets,
		metrics: params.Metrics,
		batch:   batch,
	}, nil
}

type walletReconcileJob struct {
	logg    *logger.Logger
	wallets walletReconciler
	metrics *metrics.LedgerMetrics
	batch   int
}

func (j *walletReconcileJob) Name() string { return "wallet-reconcile" }

func (j *walletReconcileJob) Run(ctx context.Context) error {
	var (
		errs       error
		checked    int
		drifted    int
		driftTotal int64
		after      = uuid.Nil
	)
	for {
		ids, err := j.wallets.ListWalletIDs(ctx, after, j.batch)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list wallets: %w", err))
		}
		for _, id := range ids {
			rec, err := j.wallets.Reconcile(ctx, id)
			checked++
			j.metrics.IncReconciled()
			if err != nil {
				if !pkgerrors.Is(err, pkgerrors.CodeReconciliation) || rec == nil {
					errs = multierr.Append(errs, fmt.Errorf("reconcile wallet %s: %w", id, err))
					continue
				}
				drifted++
				driftTotal += abs(rec.DriftCents)
				j.metrics.IncDrift(string(rec.OwnerType))
				logCtx := j.logg.WithFields(j.logg.WithWalletID(ctx, id.String()), map[string]any{
					"owner_type":   string(rec.OwnerType),
					"stored_cents": rec.StoredCents,
					"ledger_cents": rec.LedgerCents,
					"drift_cents":  rec.DriftCents,
				})
				j.logg.Warn(logCtx, "wallet balance drift detected")
			}
		}
		if len(ids) < j.batch {
			break
		}
		after = ids[len(ids)-1]
	}
	j.metrics.SetDriftCents(driftTotal)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"wallets_checked": checked,
		"wallets_drifted": drifted,
		"drift_cents":     driftTotal,
	})
	j.logg.Info(logCtx, "wallet reconciliation complete")
	return errs
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
