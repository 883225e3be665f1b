package orders

import (
	"strings"

	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/types"
	"github.com/google/uuid"
)

// Actor is the authenticated caller. Restaurants, couriers and admins act
// under the id of the account they own.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (a Actor) validate() error {
	if a.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !a.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown role")
	}
	return nil
}

// ItemInput is one cart line at checkout.
type ItemInput struct {
	ProductID  uuid.UUID `json:"product_id" validate:"required"`
	OwnerID    uuid.UUID `json:"owner_id" validate:"required"`
	Name       string    `json:"name" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,gt=0"`
	PriceCents int64     `json:"price_cents" validate:"gte=0"`
}

// CreateInput is the checkout request of a customer.
type CreateInput struct {
	CustomerID      uuid.UUID
	RestaurantID    uuid.UUID
	DeliveryType    enums.DeliveryType
	PaymentMethod   enums.PaymentMethod
	DeliveryAddress *string
	Notes           *string
	Items           []ItemInput
}

func (in CreateInput) validate() error {
	if in.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if in.RestaurantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	if !in.DeliveryType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery type")
	}
	if !in.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if in.DeliveryType == enums.DeliveryTypeDelivery && (in.DeliveryAddress == nil || strings.TrimSpace(*in.DeliveryAddress) == "") {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required for delivery orders")
	}
	if len(in.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	for i, item := range in.Items {
		if item.ProductID == uuid.Nil || strings.TrimSpace(item.Name) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "item product and name are required").
				WithDetails(map[string]any{"index": i})
		}
		if item.Quantity <= 0 || item.PriceCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive and price not negative").
				WithDetails(map[string]any{"index": i})
		}
		if item.OwnerID != in.RestaurantID {
			return pkgerrors.New(pkgerrors.CodeValidation, "all items must belong to the order's restaurant").
				WithDetails(map[string]any{"index": i})
		}
	}
	return nil
}

// CancelResult reports a cancellation. AlreadyCancelled is set when the order
// had been cancelled before and nothing was written.
type CancelResult struct {
	Order               *models.Order `json:"order"`
	AlreadyCancelled    bool          `json:"already_cancelled"`
	Reversals           int           `json:"reversals"`
	CustomerRefundCents int64         `json:"customer_refund_cents"`
}

// PayoutResult summarises the settlement of a delivered order.
type PayoutResult struct {
	RestaurantCents  int64 `json:"restaurant_cents"`
	CourierCents     int64 `json:"courier_cents"`
	PlatformFeeCents int64 `json:"platform_fee_cents"`
	AdminCents       int64 `json:"admin_cents"`
	AlreadyCommitted bool  `json:"already_committed"`
}

// RatingInput carries the customer's scores, each between 1 and 5.
type RatingInput struct {
	Ratings types.Ratings
}

// ListFilter scopes an order listing to the orders an actor may see.
type ListFilter struct {
	CustomerID   *uuid.UUID
	RestaurantID *uuid.UUID
	CourierID    *uuid.UUID
	Status       *enums.OrderStatus
}

// OrderList wraps paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
