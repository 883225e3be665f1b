package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
	run  func(ctx context.Context) error
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	if t.run != nil {
		return t.run(ctx)
	}
	return t.err
}

func newTestService(t *testing.T, lock Lock, m *metrics.CronMetrics, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  m,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestTickRunsEveryJobAndCombinesFailures(t *testing.T) {
	reconcile := &testJob{name: "wallet-reconcile", err: errors.New("list wallets")}
	retention := &testJob{name: "outbox-retention"}
	lock := &fakeLock{}
	svc := newTestService(t, lock, nil, reconcile, retention)

	err := svc.tick(context.Background())
	if err == nil || !strings.Contains(err.Error(), "wallet-reconcile") {
		t.Fatalf("expected reconcile failure in tick error, got %v", err)
	}
	if reconcile.runs != 1 || retention.runs != 1 {
		t.Fatalf("runs = %d/%d, want 1/1", reconcile.runs, retention.runs)
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("lock not released: held=%v releases=%d", lock.held, lock.releases)
	}
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCronMetrics(reg)
	job := &testJob{name: "wallet-reconcile"}
	svc := newTestService(t, &fakeLock{held: true}, m, job)

	if err := svc.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran %d times without the lock", job.runs)
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var skipped float64
	for _, mf := range mfs {
		if mf.GetName() == "cron_ticks_skipped_total" {
			skipped = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	if skipped != 1 {
		t.Fatalf("skipped ticks = %v, want 1", skipped)
	}
}

func TestRunJobByName(t *testing.T) {
	job := &testJob{name: "wallet-reconcile", err: errors.New("drift")}
	lock := &fakeLock{}
	svc := newTestService(t, lock, nil, job)

	if err := svc.RunJob(context.Background(), "wallet-reconcile"); err == nil {
		t.Fatal("expected job error to surface")
	}
	if job.runs != 1 || lock.held {
		t.Fatalf("runs=%d held=%v", job.runs, lock.held)
	}
	if err := svc.RunJob(context.Background(), "missing"); err == nil {
		t.Fatal("expected unknown job error")
	}
	lock.held = true
	if err := svc.RunJob(context.Background(), "wallet-reconcile"); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
}

func TestRunJobRecoversPanics(t *testing.T) {
	job := &testJob{name: "outbox-retention", run: func(context.Context) error { panic("nil repo") }}
	lock := &fakeLock{}
	svc := newTestService(t, lock, nil, job)

	err := svc.RunJob(context.Background(), "outbox-retention")
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("expected panic converted to error, got %v", err)
	}
	if lock.held {
		t.Fatal("lock must be released after a panic")
	}
}

func TestRunJobBoundedByTimeout(t *testing.T) {
	var deadline time.Time
	job := &testJob{name: "wallet-reconcile", run: func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}}
	svc := newTestService(t, &fakeLock{}, nil, job)
	svc.jobTimeout = time.Minute

	if err := svc.RunJob(context.Background(), "wallet-reconcile"); err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if deadline.IsZero() || time.Until(deadline) > time.Minute {
		t.Fatalf("expected a deadline within a minute, got %v", deadline)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "wallet-reconcile"}
	svc := newTestService(t, &fakeLock{}, nil, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected the immediate tick to run once, got %d", job.runs)
	}
}
