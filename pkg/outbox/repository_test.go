package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodrun-backend/pkg/db/dbtest"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
)

func seedEvent(t *testing.T, conn *gorm.DB, createdAt time.Time, mutate func(*models.OutboxEvent)) models.OutboxEvent {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		CreatedAt:     createdAt.UTC(),
	}
	if mutate != nil {
		mutate(&row)
	}
	require.NoError(t, NewRepository(conn).Insert(conn, row))
	return row
}

func TestFetchUnpublishedSkipsPublishedAndExhausted(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	second := seedEvent(t, conn, base.Add(time.Minute), nil)
	first := seedEvent(t, conn, base, nil)
	seedEvent(t, conn, base, func(e *models.OutboxEvent) {
		published := base
		e.PublishedAt = &published
	})
	seedEvent(t, conn, base, func(e *models.OutboxEvent) { e.AttemptCount = 10 })

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)
}

func TestMarkFailedThenTerminal(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	row := seedEvent(t, conn, time.Now(), nil)

	require.NoError(t, repo.MarkFailedTx(conn, row.ID, errors.New("unavailable")))
	require.NoError(t, repo.MarkFailedTx(conn, row.ID, errors.New("unavailable")))

	var stored models.OutboxEvent
	require.NoError(t, conn.First(&stored, "id = ?", row.ID).Error)
	assert.Equal(t, 2, stored.AttemptCount)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "unavailable", *stored.LastError)

	require.NoError(t, repo.MarkTerminalTx(conn, row.ID, errors.New("bad payload"), 10))
	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeleteExpiredKeepsPendingAndRecentRows(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	old := now.Add(-60 * 24 * time.Hour)
	published := old

	oldPublished := seedEvent(t, conn, old, func(e *models.OutboxEvent) { e.PublishedAt = &published })
	oldDead := seedEvent(t, conn, old.Add(time.Hour), func(e *models.OutboxEvent) { e.AttemptCount = 10 })
	oldPending := seedEvent(t, conn, old, func(e *models.OutboxEvent) { e.AttemptCount = 3 })
	recent := seedEvent(t, conn, now.Add(-time.Hour), func(e *models.OutboxEvent) { e.PublishedAt = &published })

	cutoff := now.Add(-30 * 24 * time.Hour)
	deleted, err := repo.DeleteExpired(context.Background(), conn, cutoff, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.False(t, exists(t, conn, oldPublished.ID), "oldest expired row goes first")
	assert.True(t, exists(t, conn, oldDead.ID))

	deleted, err = repo.DeleteExpired(context.Background(), conn, cutoff, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.False(t, exists(t, conn, oldDead.ID))
	assert.True(t, exists(t, conn, oldPending.ID), "rows still being retried stay")
	assert.True(t, exists(t, conn, recent.ID))
}

func TestDLQInsertClipsErrorOnRuneBoundary(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := NewDLQRepository(conn)
	msg := strings.Repeat("a", maxDLQErrorBytes-1) + "é"

	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       uuid.New(),
		EventType:     enums.EventPayoutCommitted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
	}))

	var stored models.OutboxDLQ
	require.NoError(t, conn.First(&stored).Error)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, strings.Repeat("a", maxDLQErrorBytes-1), *stored.ErrorMessage)
}

func TestEmitReusesRowIDAsEventID(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	occurred := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("AST", 3*3600))
	orderID := uuid.New()

	require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventOrderDelivered,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         &ActorRef{UserID: orderID, Role: enums.RoleCourier},
		Data:          map[string]any{"orderId": orderID},
		OccurredAt:    occurred,
	}))

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.Equal(t, row.ID.String(), envelope.EventID)
	assert.Equal(t, currentVersion, envelope.Version)
	assert.True(t, envelope.OccurredAt.Equal(occurred))
	assert.Equal(t, time.UTC, envelope.OccurredAt.Location())
	assert.JSONEq(t, `{"orderId":"`+orderID.String()+`"}`, string(envelope.Data))
}

func TestEmitRejectsIncompleteEvents(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()

	assert.Error(t, svc.Emit(ctx, nil, DomainEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New()}))
	assert.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: "order_teleported", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()}))
	assert.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder}))

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func exists(t *testing.T, conn *gorm.DB, id uuid.UUID) bool {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("id = ?", id).Count(&count).Error)
	return count == 1
}
