package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
	"github.com/angelmondragon/foodrun-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// statuses in which a courier may still claim a delivery order
var assignableStatuses = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusAccepted,
	enums.OrderStatusPreparing,
	enums.OrderStatusReady,
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// TransitionStatus moves the order only if it is still in from.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	values := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for column, value := range updates {
		values[column] = value
	}
	return r.guardedUpdate(ctx, values, "id = ? AND status = ?", id, from)
}

// SetDeliveryFee writes the fee once, while the order is pending, and keeps
// the total consistent in the same statement.
func (r *repository) SetDeliveryFee(ctx context.Context, id uuid.UUID, feeCents int64, setBy uuid.UUID, at time.Time) (bool, error) {
	return r.guardedUpdate(ctx, map[string]any{
		"delivery_fee_cents":  feeCents,
		"total_cents":         gorm.Expr("subtotal_cents + ?", feeCents),
		"delivery_fee_set_by": setBy,
		"delivery_fee_set_at": at,
		"updated_at":          at,
	},
		"id = ? AND status = ? AND delivery_type = ? AND delivery_fee_set_by IS NULL",
		id, enums.OrderStatusPending, enums.DeliveryTypeDelivery,
	)
}

func (r *repository) AssignCourier(ctx context.Context, id, courierID uuid.UUID) (bool, error) {
	return r.guardedUpdate(ctx, map[string]any{
		"courier_id": courierID,
		"updated_at": time.Now().UTC(),
	},
		"id = ? AND courier_id IS NULL AND delivery_type = ? AND status IN ?",
		id, enums.DeliveryTypeDelivery, assignableStatuses,
	)
}

// MarkPayoutCommitted claims the one-time delivery payout.
func (r *repository) MarkPayoutCommitted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.guardedUpdate(ctx, map[string]any{
		"payout_committed_at": at,
		"updated_at":          at,
	}, "id = ? AND payout_committed_at IS NULL", id)
}

func (r *repository) MarkCaptured(ctx context.Context, id uuid.UUID, txnID string, amountCents int64) (bool, error) {
	return r.guardedUpdate(ctx, map[string]any{
		"payment_status": enums.PaymentStatusCaptured,
		"payment_txn_id": txnID,
		"captured_cents": amountCents,
		"updated_at":     time.Now().UTC(),
	},
		"id = ? AND payment_status = ? AND status <> ? AND total_cents = ?",
		id, enums.PaymentStatusUnpaid, enums.OrderStatusCancelled, amountCents,
	)
}

func (r *repository) MarkRefunded(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, enums.PaymentStatusCaptured).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusRefunded,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *repository) SetRating(ctx context.Context, id, customerID uuid.UUID, ratings types.Ratings, at time.Time) (bool, error) {
	return r.guardedUpdate(ctx, map[string]any{
		"ratings":    ratings,
		"rated_at":   at,
		"updated_at": at,
	},
		"id = ? AND customer_id = ? AND status = ? AND rated_at IS NULL",
		id, customerID, enums.OrderStatusDelivered,
	)
}

// List returns a page of orders, newest first.
func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, string, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.RestaurantID != nil {
		query = query.Where("restaurant_id = ?", *filter.RestaurantID)
	}
	if filter.CourierID != nil {
		query = query.Where("courier_id = ?", *filter.CourierID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return pagination.Newest(query, params, func(row models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
}

func (r *repository) guardedUpdate(ctx context.Context, values map[string]any, where string, args ...any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where(where, args...).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
