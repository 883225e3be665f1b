package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodrun-backend/pkg/enums"
)

// LedgerEntry records an immutable movement of money on one wallet.
type LedgerEntry struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	WalletID        uuid.UUID             `gorm:"column:wallet_id;type:uuid;not null" json:"wallet_id"`
	OrderID         *uuid.UUID            `gorm:"column:order_id;type:uuid" json:"order_id,omitempty"`
	Type            enums.LedgerEntryType `gorm:"column:type;type:text;not null" json:"type"`
	Kind            enums.LedgerEntryKind `gorm:"column:kind;type:text;not null" json:"kind"`
	AmountCents     int64                 `gorm:"column:amount_cents;not null" json:"amount_cents"`
	Description     string                `gorm:"column:description;not null" json:"description"`
	IdempotencyKey  string                `gorm:"column:idempotency_key;not null" json:"idempotency_key"`
	ReversesEntryID *uuid.UUID            `gorm:"column:reverses_entry_id;type:uuid" json:"reverses_entry_id,omitempty"`
	Metadata        json.RawMessage       `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// SignedAmount returns the entry's effect on the wallet balance.
func (e *LedgerEntry) SignedAmount() int64 {
	return e.Type.Sign() * e.AmountCents
}
