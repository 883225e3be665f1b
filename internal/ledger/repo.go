package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for ledger entries. Entries are append-only,
// so there is no update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	FindByIdempotencyKey(ctx context.Context, key string) (*models.LedgerEntry, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error)
	SumByWallet(ctx context.Context, walletID uuid.UUID) (int64, error)
	SumPendingByWallet(ctx context.Context, walletID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

const signedAmountExpr = "COALESCE(SUM(CASE WHEN ledger_entries.type = 'credit' THEN ledger_entries.amount_cents ELSE -ledger_entries.amount_cents END), 0)"

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListByWallet returns a page of entries, newest first, plus the cursor of the
// next page when one exists.
func (r *repository) ListByWallet(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error) {
	query := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID)
	return pagination.Newest(query, params, func(row models.LedgerEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
}

func (r *repository) SumByWallet(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select(signedAmountExpr).
		Where("wallet_id = ?", walletID).
		Row().
		Scan(&total)
	return total, err
}

// SumPendingByWallet sums the entries tied to orders that have not reached a
// terminal status yet.
func (r *repository) SumPendingByWallet(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select(signedAmountExpr).
		Joins("JOIN orders ON orders.id = ledger_entries.order_id").
		Where("ledger_entries.wallet_id = ?", walletID).
		Where("orders.status NOT IN ?", []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCancelled}).
		Row().
		Scan(&total)
	return total, err
}
