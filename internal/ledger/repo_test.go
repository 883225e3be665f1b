package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/foodrun-backend/pkg/db"
	"github.com/angelmondragon/foodrun-backend/pkg/db/dbtest"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func insertOrder(t *testing.T, conn *gorm.DB, status enums.OrderStatus) uuid.UUID {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		RestaurantID:  uuid.New(),
		DeliveryType:  enums.DeliveryTypePickup,
		Status:        status,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusUnpaid,
		SubtotalCents: 1000,
		TotalCents:    1000,
		ItemCount:     1,
	}
	require.NoError(t, conn.Create(order).Error)
	return order.ID
}

func entry(walletID uuid.UUID, orderID *uuid.UUID, typ enums.LedgerEntryType, amount int64, createdAt time.Time) *models.LedgerEntry {
	return &models.LedgerEntry{
		WalletID:       walletID,
		OrderID:        orderID,
		Type:           typ,
		Kind:           enums.LedgerKindRestaurantEarnings,
		AmountCents:    amount,
		Description:    "test entry",
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      createdAt,
	}
}

func TestRepository_SumsAndPending(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	walletID := uuid.New()

	open := insertOrder(t, conn, enums.OrderStatusPreparing)
	done := insertOrder(t, conn, enums.OrderStatusDelivered)
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, entry(walletID, &open, enums.LedgerEntryCredit, 700, now)))
	require.NoError(t, repo.Create(ctx, entry(walletID, &done, enums.LedgerEntryCredit, 1000, now)))
	require.NoError(t, repo.Create(ctx, entry(walletID, nil, enums.LedgerEntryDebit, 300, now)))
	require.NoError(t, repo.Create(ctx, entry(uuid.New(), &open, enums.LedgerEntryCredit, 9999, now)))

	total, err := repo.SumByWallet(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(1400), total)

	pending, err := repo.SumPendingByWallet(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), pending)

	empty, err := repo.SumByWallet(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty)
}

func TestRepository_IdempotencyKeyIsUnique(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	first := entry(uuid.New(), nil, enums.LedgerEntryCredit, 100, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, first))

	found, err := repo.FindByIdempotencyKey(ctx, first.IdempotencyKey)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	dup := entry(uuid.New(), nil, enums.LedgerEntryCredit, 100, time.Now().UTC())
	dup.IdempotencyKey = first.IdempotencyKey
	err = repo.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))

	missing, err := repo.FindByIdempotencyKey(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_EntryReversedAtMostOnce(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	original := entry(uuid.New(), nil, enums.LedgerEntryCredit, 100, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, original))

	first := ReversalOf(*original, "cancel")
	require.NoError(t, repo.Create(ctx, &models.LedgerEntry{
		WalletID: first.WalletID, Type: first.Type, Kind: first.Kind, AmountCents: first.AmountCents,
		Description: first.Description, IdempotencyKey: first.IdempotencyKey, ReversesEntryID: first.ReversesEntryID,
	}))

	err := repo.Create(ctx, &models.LedgerEntry{
		WalletID: first.WalletID, Type: first.Type, Kind: first.Kind, AmountCents: first.AmountCents,
		Description: first.Description, IdempotencyKey: "another-key", ReversesEntryID: first.ReversesEntryID,
	})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestRepository_ListByWalletPaginates(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	walletID := uuid.New()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, entry(walletID, nil, enums.LedgerEntryCredit, int64(100+i), base.Add(time.Duration(i)*time.Minute))))
	}

	page, next, err := repo.ListByWallet(ctx, walletID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(104), page[0].AmountCents)
	assert.Equal(t, int64(103), page[1].AmountCents)
	require.NotEmpty(t, next)

	page, next, err = repo.ListByWallet(ctx, walletID, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(102), page[0].AmountCents)
	assert.Equal(t, int64(101), page[1].AmountCents)

	page, next, err = repo.ListByWallet(ctx, walletID, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Empty(t, next)
}

func TestRepository_ListByOrderID(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	orderID := uuid.New()

	base := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, entry(uuid.New(), &orderID, enums.LedgerEntryCredit, 1, base)))
	require.NoError(t, repo.Create(ctx, entry(uuid.New(), &orderID, enums.LedgerEntryDebit, 2, base.Add(time.Second))))
	require.NoError(t, repo.Create(ctx, entry(uuid.New(), nil, enums.LedgerEntryDebit, 3, base)))

	entries, err := repo.ListByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].AmountCents)
	assert.Equal(t, int64(2), entries[1].AmountCents)
}
