package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/foodrun-backend/pkg/logger"
)

const (
	defaultOutboxRetention   = 720 * time.Hour
	defaultExhaustedAttempts = 10
	defaultRetentionBatch    = 1000
)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository expiredEvents
	Retention  time.Duration
	// ExhaustedAttempts matches the publisher's max attempts; rows at that
	// count already have a copy in outbox_dlq.
	ExhaustedAttempts int
	BatchSize         int
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type expiredEvents interface {
	DeleteExpired(ctx context.Context, tx *gorm.DB, cutoff time.Time, exhaustedAttempts, limit int) (int64, error)
}

// outboxRetentionJob prunes old delivered or dead-lettered outbox rows in
// short transactions so the publisher's row locks are never held up.
type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      expiredEvents
	retention time.Duration
	exhausted int
	batch     int
	now       func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	j := &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: params.Retention,
		exhausted: params.ExhaustedAttempts,
		batch:     params.BatchSize,
		now:       time.Now,
	}
	if j.retention <= 0 {
		j.retention = defaultOutboxRetention
	}
	if j.exhausted <= 0 {
		j.exhausted = defaultExhaustedAttempts
	}
	if j.batch <= 0 {
		j.batch = defaultRetentionBatch
	}
	return j, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	for batches := 0; ; batches++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("outbox retention stopped after %d rows: %w", total, err)
		}
		var deleted int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			deleted, err = j.repo.DeleteExpired(ctx, tx, cutoff, j.exhausted, j.batch)
			return err
		})
		if err != nil {
			return fmt.Errorf("outbox retention batch %d: %w", batches, err)
		}
		total += deleted
		if deleted < int64(j.batch) {
			break
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": total,
	}), "outbox retention complete")
	return nil
}
