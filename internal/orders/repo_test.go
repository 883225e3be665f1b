package orders

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/foodrun-backend/pkg/db/dbtest"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
	"github.com/angelmondragon/foodrun-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedOrder(t *testing.T, repo Repository, mutate func(o *models.Order)) *models.Order {
	t.Helper()
	restaurantID := uuid.New()
	order := &models.Order{
		CustomerID:    uuid.New(),
		RestaurantID:  restaurantID,
		DeliveryType:  enums.DeliveryTypeDelivery,
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodCash,
		PaymentStatus: enums.PaymentStatusUnpaid,
		SubtotalCents: 5000,
		TotalCents:    5000,
		ItemCount:     2,
		Items: []models.OrderItem{
			{ProductID: uuid.New(), OwnerID: restaurantID, Name: "Kabsa", Quantity: 2, UnitPriceCents: 2500, LineTotalCents: 5000},
		},
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestRepository_CreateAndFind(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	order := seedOrder(t, repo, nil)

	found, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, found.Status)
	require.Len(t, found.Items, 1)
	assert.Equal(t, order.ID, found.Items[0].OrderID)
	assert.Equal(t, "Kabsa", found.Items[0].Name)

	_, err = repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_TransitionStatusIsConditional(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	order := seedOrder(t, repo, nil)
	at := time.Now().UTC()

	ok, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusAccepted, map[string]any{"accepted_at": at})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAccepted, found.Status)
	assert.NotNil(t, found.AcceptedAt)
}

func TestRepository_SetDeliveryFeeOnce(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	order := seedOrder(t, repo, nil)
	setter := uuid.New()

	ok, err := repo.SetDeliveryFee(ctx, order.ID, 1000, setter, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetDeliveryFee(ctx, order.ID, 2000, setter, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), found.DeliveryFeeCents)
	assert.Equal(t, int64(6000), found.TotalCents)
	require.NotNil(t, found.DeliveryFeeSetBy)
	assert.Equal(t, setter, *found.DeliveryFeeSetBy)

	pickup := seedOrder(t, repo, func(o *models.Order) { o.DeliveryType = enums.DeliveryTypePickup })
	ok, err = repo.SetDeliveryFee(ctx, pickup.ID, 1000, setter, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_AssignCourierExclusive(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	order := seedOrder(t, repo, nil)

	ok, err := repo.AssignCourier(ctx, order.ID, uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AssignCourier(ctx, order.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	cancelled := seedOrder(t, repo, func(o *models.Order) { o.Status = enums.OrderStatusCancelled })
	ok, err = repo.AssignCourier(ctx, cancelled.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_MarkPayoutCommittedOnce(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	order := seedOrder(t, repo, func(o *models.Order) { o.Status = enums.OrderStatusDelivered })

	ok, err := repo.MarkPayoutCommitted(ctx, order.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkPayoutCommitted(ctx, order.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_MarkCapturedRequiresTotal(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	order := seedOrder(t, repo, nil)

	ok, err := repo.MarkCaptured(ctx, order.ID, "txn-1", 4999)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkCaptured(ctx, order.ID, "txn-1", 5000)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkCaptured(ctx, order.ID, "txn-2", 5000)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.MarkRefunded(ctx, order.ID))
	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, found.PaymentStatus)
	assert.Equal(t, int64(5000), found.CapturedCents)
}

func TestRepository_SetRatingOnce(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	order := seedOrder(t, repo, func(o *models.Order) { o.Status = enums.OrderStatusDelivered })

	ok, err := repo.SetRating(ctx, order.ID, uuid.New(), types.Ratings{"food": 5}, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok, "only the order's customer can rate")

	ok, err = repo.SetRating(ctx, order.ID, order.CustomerID, types.Ratings{"food": 5}, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetRating(ctx, order.ID, order.CustomerID, types.Ratings{"food": 1}, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, found.Ratings["food"])
}

func TestRepository_ListFiltersAndPaginates(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	customer := uuid.New()
	base := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		seedOrder(t, repo, func(o *models.Order) {
			o.CustomerID = customer
			o.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		})
	}
	seedOrder(t, repo, nil)

	page, next, err := repo.List(ctx, ListFilter{CustomerID: &customer}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))
	require.NotEmpty(t, next)

	page, next, err = repo.List(ctx, ListFilter{CustomerID: &customer}, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Empty(t, next)

	status := enums.OrderStatusDelivered
	page, _, err = repo.List(ctx, ListFilter{CustomerID: &customer, Status: &status}, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, page)
}
