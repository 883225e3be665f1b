package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is a priced line on an order, snapshotted at checkout.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null" json:"order_id"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	OwnerID        uuid.UUID `gorm:"column:owner_id;type:uuid;not null" json:"owner_id"`
	Name           string    `gorm:"column:name;not null" json:"name"`
	Quantity       int       `gorm:"column:quantity;not null" json:"quantity"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	LineTotalCents int64     `gorm:"column:line_total_cents;not null" json:"line_total_cents"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
