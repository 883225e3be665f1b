package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	"github.com/angelmondragon/foodrun-backend/pkg/types"
)

// Order is a customer order placed against a single restaurant.
type Order struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CustomerID   uuid.UUID `gorm:"column:customer_id;type:uuid;not null" json:"customer_id"`
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;not null" json:"restaurant_id"`
	// ReferrerAdminID snapshots the admin who registered the restaurant at
	// checkout time; it drives the per-item admin commission.
	ReferrerAdminID *uuid.UUID          `gorm:"column:referrer_admin_id;type:uuid" json:"referrer_admin_id,omitempty"`
	CourierID       *uuid.UUID          `gorm:"column:courier_id;type:uuid" json:"courier_id,omitempty"`
	DeliveryType    enums.DeliveryType  `gorm:"column:delivery_type;type:text;not null" json:"delivery_type"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null" json:"status"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:text;not null" json:"payment_method"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null" json:"payment_status"`
	PaymentTxnID    *string             `gorm:"column:payment_txn_id" json:"payment_txn_id,omitempty"`

	SubtotalCents    int64 `gorm:"column:subtotal_cents;not null" json:"subtotal_cents"`
	DeliveryFeeCents int64 `gorm:"column:delivery_fee_cents;not null" json:"delivery_fee_cents"`
	TotalCents       int64 `gorm:"column:total_cents;not null" json:"total_cents"`
	ItemCount        int   `gorm:"column:item_count;not null" json:"item_count"`
	CapturedCents    int64 `gorm:"column:captured_cents;not null" json:"captured_cents"`

	DeliveryFeeSetBy       *uuid.UUID `gorm:"column:delivery_fee_set_by;type:uuid" json:"delivery_fee_set_by,omitempty"`
	DeliveryFeeSetAt       *time.Time `gorm:"column:delivery_fee_set_at" json:"delivery_fee_set_at,omitempty"`
	DeliveryFeeCommittedAt *time.Time `gorm:"column:delivery_fee_committed_at" json:"delivery_fee_committed_at,omitempty"`
	PayoutCommittedAt      *time.Time `gorm:"column:payout_committed_at" json:"payout_committed_at,omitempty"`

	DeliveryAddress *string `gorm:"column:delivery_address" json:"delivery_address,omitempty"`
	Notes           *string `gorm:"column:notes" json:"notes,omitempty"`

	CancelledBy     *uuid.UUID    `gorm:"column:cancelled_by;type:uuid" json:"cancelled_by,omitempty"`
	CancelledByRole *enums.Role   `gorm:"column:cancelled_by_role;type:text" json:"cancelled_by_role,omitempty"`
	CancelReason    *string       `gorm:"column:cancel_reason" json:"cancel_reason,omitempty"`
	Ratings         types.Ratings `gorm:"column:ratings;type:jsonb" json:"ratings,omitempty"`
	RatedAt         *time.Time    `gorm:"column:rated_at" json:"rated_at,omitempty"`

	AcceptedAt  *time.Time `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	PreparingAt *time.Time `gorm:"column:preparing_at" json:"preparing_at,omitempty"`
	ReadyAt     *time.Time `gorm:"column:ready_at" json:"ready_at,omitempty"`
	PickedUpAt  *time.Time `gorm:"column:picked_up_at" json:"picked_up_at,omitempty"`
	DeliveredAt *time.Time `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	CancelledAt *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`

	Items     []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// IsDelivery reports whether a courier is involved.
func (o *Order) IsDelivery() bool {
	return o.DeliveryType == enums.DeliveryTypeDelivery
}

// HasReferral reports whether the restaurant was registered by an admin.
func (o *Order) HasReferral() bool {
	return o.ReferrerAdminID != nil && *o.ReferrerAdminID != uuid.Nil
}
