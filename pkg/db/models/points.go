package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodrun-backend/pkg/enums"
)

// PointsAccount holds the penalty points of a restaurant or courier.
type PointsAccount struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OwnerType   enums.PointsOwnerType `gorm:"column:owner_type;type:text;not null" json:"owner_type"`
	OwnerID     uuid.UUID             `gorm:"column:owner_id;type:uuid;not null" json:"owner_id"`
	Points      int                   `gorm:"column:points;not null" json:"points"`
	Standing    enums.PointsStanding  `gorm:"column:standing;type:text;not null" json:"standing"`
	SuspendedAt *time.Time            `gorm:"column:suspended_at" json:"suspended_at,omitempty"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// PointsDeduction is the audit row of one applied penalty.
type PointsDeduction struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AccountID      uuid.UUID  `gorm:"column:account_id;type:uuid;not null" json:"account_id"`
	Requested      int        `gorm:"column:requested;not null" json:"requested"`
	Applied        int        `gorm:"column:applied;not null" json:"applied"`
	BalanceAfter   int        `gorm:"column:balance_after;not null" json:"balance_after"`
	Reason         string     `gorm:"column:reason;not null" json:"reason"`
	TicketID       *uuid.UUID `gorm:"column:ticket_id;type:uuid" json:"ticket_id,omitempty"`
	OrderID        *uuid.UUID `gorm:"column:order_id;type:uuid" json:"order_id,omitempty"`
	AdminID        uuid.UUID  `gorm:"column:admin_id;type:uuid;not null" json:"admin_id"`
	IdempotencyKey string     `gorm:"column:idempotency_key;not null" json:"idempotency_key"`
	Suspended      bool       `gorm:"column:suspended;not null" json:"suspended"`
	Warning        bool       `gorm:"column:warning;not null" json:"warning"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
