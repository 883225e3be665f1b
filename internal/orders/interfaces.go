package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/foodrun-backend/internal/refunds"
	"github.com/angelmondragon/foodrun-backend/internal/wallets"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
	"github.com/angelmondragon/foodrun-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders. Every state-changing
// method is a conditional UPDATE and reports whether its guard held.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	SetDeliveryFee(ctx context.Context, id uuid.UUID, feeCents int64, setBy uuid.UUID, at time.Time) (bool, error)
	AssignCourier(ctx context.Context, id, courierID uuid.UUID) (bool, error)
	MarkPayoutCommitted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkCaptured(ctx context.Context, id uuid.UUID, txnID string, amountCents int64) (bool, error)
	MarkRefunded(ctx context.Context, id uuid.UUID) error
	SetRating(ctx context.Context, id, customerID uuid.UUID, ratings types.Ratings, at time.Time) (bool, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, string, error)
}

// Refunder unwinds the money of a cancelled order inside the caller's
// transaction.
type Refunder interface {
	Refund(ctx context.Context, tx *gorm.DB, order *models.Order) (*refunds.Result, error)
}

// WalletMover is the slice of the wallet aggregate the lifecycle needs.
type WalletMover interface {
	Credit(ctx context.Context, tx *gorm.DB, input wallets.MovementInput) (*wallets.Movement, error)
	Debit(ctx context.Context, tx *gorm.DB, input wallets.MovementInput) (*wallets.Movement, error)
	RecordPlatformFee(ctx context.Context, tx *gorm.DB, amountCents int64) error
}
