package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	goretry "github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodrun-backend/pkg/config"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
	"github.com/angelmondragon/foodrun-backend/pkg/metrics"
	"github.com/angelmondragon/foodrun-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetters interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type broker interface {
	Ping(context.Context) error
}

// RelayParams wires the relay. Topics defaults to the Pub/Sub client when nil.
type RelayParams struct {
	Outbox   config.OutboxConfig
	Logger   *logger.Logger
	DB       txRunner
	Broker   broker
	Events   eventStore
	Registry resolver
	DLQ      deadLetters
	Topics   topicSource
	Metrics  *metrics.OutboxMetrics
}

// Relay moves committed outbox rows to their Pub/Sub topics. Rows of one
// aggregate leave in creation order: once a row fails, its later siblings
// wait for the next batch.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	broker      broker
	events      eventStore
	registry    resolver
	dlq         deadLetters
	topics      topicSource
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Broker == nil:
		return nil, errors.New("pubsub client is required")
	case params.Events == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case params.Topics == nil:
		return nil, errors.New("topic source is required")
	}

	r := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		broker:      params.Broker,
		events:      params.Events,
		registry:    params.Registry,
		dlq:         params.DLQ,
		topics:      params.Topics,
		metrics:     params.Metrics,
		batchSize:   params.Outbox.BatchSize,
		maxAttempts: params.Outbox.MaxAttempts,
		poll:        time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = defaultPoll
	}
	return r, nil
}

// Run polls until ctx is cancelled. Empty polls and failed batches back off
// exponentially up to maxIdleBackoff; a productive batch resets the pace.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": r.db.Ping, "pubsub": r.broker.Ping} {
		if err := ping(ctx); err != nil {
			r.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	backoff := r.newBackoff()
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		progressed, err := r.drain(ctx)
		if err != nil {
			r.logg.Error(ctx, "outbox relay batch failed", err)
		}
		if err == nil && progressed {
			backoff = r.newBackoff()
			continue
		}

		wait, _ := backoff.Next()
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *Relay) newBackoff() goretry.Backoff {
	return goretry.WithJitterPercent(20, goretry.WithCappedDuration(maxIdleBackoff, goretry.NewExponential(r.poll)))
}

// rowOutcome is what relaying one row did to it.
type rowOutcome int

const (
	// rowRetry: the publish failed and the row stays pending.
	rowRetry rowOutcome = iota
	rowPublished
	// rowDropped: dead-lettered as undeliverable; siblings may proceed.
	rowDropped
	// rowExhausted: dead-lettered after max attempts; siblings wait a batch.
	rowExhausted
)

// settled reports whether the row left the pending set.
func (o rowOutcome) settled() bool { return o != rowRetry }

// holdsAggregate reports whether later rows of the same aggregate must wait.
func (o rowOutcome) holdsAggregate() bool { return o == rowRetry || o == rowExhausted }

// drain handles one batch inside a single transaction and reports whether
// any row was published or dead-lettered. A batch where every publish failed
// makes no progress, so Run backs off instead of spinning on the same rows.
func (r *Relay) drain(ctx context.Context) (bool, error) {
	settled := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.events.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}

		held := map[string]bool{}
		for _, row := range rows {
			key := row.OrderingKey()
			if held[key] {
				r.metrics.IncDeferred()
				continue
			}
			outcome, err := r.relayRow(ctx, tx, row)
			if err != nil {
				return err
			}
			if outcome.settled() {
				settled++
			}
			if outcome.holdsAggregate() {
				held[key] = true
			}
		}
		return nil
	})
	return err == nil && settled > 0, err
}

// relayRow publishes one row and records the outcome.
func (r *Relay) relayRow(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (rowOutcome, error) {
	ctx = r.logg.WithFields(ctx, rowFields(row))

	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return rowDropped, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}
	ctx = r.logg.WithFields(ctx, map[string]any{
		"topic":    resolved.Descriptor.Topic,
		"event_id": resolved.Envelope.EventID,
	})

	err = r.publish(ctx, row, resolved)
	var permanent registry.NonRetryableError
	switch {
	case err == nil:
		if err := r.events.MarkPublishedTx(tx, row.ID); err != nil {
			return rowRetry, fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.metrics.IncPublished(string(row.EventType))
		r.logg.Info(ctx, "outbox event published")
		return rowPublished, nil
	case errors.As(err, &permanent):
		return rowDropped, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	case row.AttemptCount+1 >= r.maxAttempts:
		return rowExhausted, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err))
	}

	r.metrics.IncFailed(string(row.EventType))
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"attempt_count": row.AttemptCount + 1,
		"error":         err.Error(),
	}), "outbox publish failed, will retry")
	if err := r.events.MarkFailedTx(tx, row.ID, err); err != nil {
		return rowRetry, fmt.Errorf("mark failure %s: %w", row.ID, err)
	}
	return rowRetry, nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event dead-lettered")

	entry := row.DeadLetter(reason, cause, time.Now())
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	r.metrics.IncDeadLettered(string(reason))
	if err := r.events.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.topics.Topic(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	key := row.OrderingKey()
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"version":        strconv.Itoa(resolved.Envelope.Version),
		"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if actor := resolved.Envelope.Actor; actor != nil && actor.Role != "" {
		attrs["actor_role"] = string(actor.Role)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: key,
		Attributes:  attrs,
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		pub.ResumePublish(key)
		return err
	}
	return nil
}

func rowFields(row models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
