package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/metrics"
)

const defaultInterval = time.Hour

// ErrLockHeld is returned by RunJob when another replica is mid-tick.
var ErrLockHeld = errors.New("cron lock held by another instance")

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronMetrics
	Interval time.Duration
	// JobTimeout bounds each job. Set it to the lock TTL so no job keeps
	// running after the lock could have passed to another replica.
	JobTimeout time.Duration
}

// Service runs the registered jobs once per interval on whichever replica
// wins the lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run ticks immediately and then every interval until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.tick(ctx); err != nil {
			s.logg.Error(ctx, "cron tick finished with errors", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// tick runs every job even when an earlier one fails and returns the
// combined failures.
func (s *Service) tick(ctx context.Context) error {
	release, err := s.acquire(ctx)
	if errors.Is(err, ErrLockHeld) {
		s.metrics.IncSkipped()
		s.logg.Info(ctx, "cron lock held elsewhere, skipping tick")
		return nil
	}
	if err != nil {
		return err
	}
	defer release()

	ctx = s.logg.WithField(ctx, "tick_id", uuid.NewString())
	var errs error
	for _, job := range s.registry.Jobs() {
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	return errs
}

// RunJob runs one job right away under the lock. The worker's -once flag
// uses it to reconcile on demand.
func (s *Service) RunJob(ctx context.Context, name string) error {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown cron job %q (have %v)", name, s.registry.Names())
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.runJob(ctx, job)
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	ok, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire cron lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func() {
		// The tick context may already be canceled by shutdown.
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}, nil
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	ctx = s.logg.WithField(ctx, "job", job.Name())
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), p)
		}
		took := time.Since(start)
		s.metrics.ObserveRun(job.Name(), took, err)
		logCtx := s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
		if err != nil {
			err = fmt.Errorf("%s: %w", job.Name(), err)
			s.logg.Error(logCtx, "cron job failed", err)
			return
		}
		s.logg.Info(logCtx, "cron job done")
	}()

	return job.Run(ctx)
}
