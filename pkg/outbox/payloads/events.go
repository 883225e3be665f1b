package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodrun-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once a customer places an order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID          `json:"orderId"`
	CustomerID    uuid.UUID          `json:"customerId"`
	RestaurantID  uuid.UUID          `json:"restaurantId"`
	DeliveryType  enums.DeliveryType `json:"deliveryType"`
	SubtotalCents int64              `json:"subtotalCents"`
	ItemCount     int                `json:"itemCount"`
}

// OrderStatusChangedEvent is emitted on every successful lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"orderId"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
	CourierID  *uuid.UUID        `json:"courierId,omitempty"`
	TotalCents int64             `json:"totalCents"`
	ChangedAt  time.Time         `json:"changedAt"`
}

// OrderCancelledEvent carries the refund outcome of a cancellation.
type OrderCancelledEvent struct {
	OrderID       uuid.UUID         `json:"orderId"`
	PreviousState enums.OrderStatus `json:"previousState"`
	CancelledBy   uuid.UUID         `json:"cancelledBy"`
	Role          enums.Role        `json:"role"`
	Reason        string            `json:"reason,omitempty"`
	RefundCents   int64             `json:"refundCents"`
}

// OrderDeliveredEvent is emitted once the payout for an order is committed.
type OrderDeliveredEvent struct {
	OrderID          uuid.UUID `json:"orderId"`
	RestaurantCents  int64     `json:"restaurantCents"`
	CourierCents     int64     `json:"courierCents"`
	PlatformFeeCents int64     `json:"platformFeeCents"`
	AdminCents       int64     `json:"adminCents"`
	DeliveredAt      time.Time `json:"deliveredAt"`
}

// PaymentCapturedEvent confirms collaborator funds were recorded in escrow.
type PaymentCapturedEvent struct {
	OrderID       uuid.UUID `json:"orderId"`
	TransactionID string    `json:"transactionId"`
	AmountCents   int64     `json:"amountCents"`
}

// PayoutCommittedEvent is emitted per wallet credited by a payout.
type PayoutCommittedEvent struct {
	OrderID     uuid.UUID             `json:"orderId"`
	WalletID    uuid.UUID             `json:"walletId"`
	OwnerType   enums.WalletOwnerType `json:"ownerType"`
	OwnerID     uuid.UUID             `json:"ownerId"`
	Kind        enums.LedgerEntryKind `json:"kind"`
	AmountCents int64                 `json:"amountCents"`
}

// RefundIssuedEvent tells the payment collaborator to return funds.
type RefundIssuedEvent struct {
	OrderID       uuid.UUID `json:"orderId"`
	CustomerID    uuid.UUID `json:"customerId"`
	TransactionID *string   `json:"transactionId,omitempty"`
	AmountCents   int64     `json:"amountCents"`
	Reversals     int       `json:"reversals"`
}

// PointsDeductedEvent records an applied penalty.
type PointsDeductedEvent struct {
	AccountID  uuid.UUID             `json:"accountId"`
	OwnerType  enums.PointsOwnerType `json:"ownerType"`
	OwnerID    uuid.UUID             `json:"ownerId"`
	Applied    int                   `json:"applied"`
	NewBalance int                   `json:"newBalance"`
	Reason     string                `json:"reason"`
	IsWarning  bool                  `json:"isWarning"`
}

// AccountSuspendedEvent fires exactly once when an account crosses the
// suspension threshold.
type AccountSuspendedEvent struct {
	AccountID   uuid.UUID             `json:"accountId"`
	OwnerType   enums.PointsOwnerType `json:"ownerType"`
	OwnerID     uuid.UUID             `json:"ownerId"`
	Points      int                   `json:"points"`
	SuspendedAt time.Time             `json:"suspendedAt"`
}

// NotificationRequestedEvent asks the external sender to notify a recipient.
type NotificationRequestedEvent struct {
	RecipientType string                 `json:"recipientType"`
	RecipientID   uuid.UUID              `json:"recipientId"`
	Kind          enums.NotificationKind `json:"kind"`
	OrderID       *uuid.UUID             `json:"orderId,omitempty"`
	Data          map[string]any         `json:"data,omitempty"`
}
