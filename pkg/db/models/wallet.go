package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodrun-backend/pkg/enums"
)

// Wallet is the running balance of one owner. BalanceCents always equals the
// signed sum of the wallet's ledger entries.
type Wallet struct {
	ID                     uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OwnerType              enums.WalletOwnerType `gorm:"column:owner_type;type:text;not null" json:"owner_type"`
	OwnerID                uuid.UUID             `gorm:"column:owner_id;type:uuid;not null" json:"owner_id"`
	BalanceCents           int64                 `gorm:"column:balance_cents;not null" json:"balance_cents"`
	TotalEarningsCents     int64                 `gorm:"column:total_earnings_cents;not null" json:"total_earnings_cents"`
	TotalSalesCents        int64                 `gorm:"column:total_sales_cents;not null" json:"total_sales_cents"`
	TotalPlatformFeesCents int64                 `gorm:"column:total_platform_fees_cents;not null" json:"total_platform_fees_cents"`
	TotalWithdrawnCents    int64                 `gorm:"column:total_withdrawn_cents;not null" json:"total_withdrawn_cents"`
	AllowNegative          bool                  `gorm:"column:allow_negative;not null" json:"allow_negative"`
	CreatedAt              time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
