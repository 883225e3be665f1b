package wallets

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists wallet rows. Balances only move through the guarded
// Apply* updates, never through a read-modify-write.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByOwner(ctx context.Context, owner Owner) (*models.Wallet, error)
	LockByOwner(ctx context.Context, owner Owner) (*models.Wallet, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	CreateIfMissing(ctx context.Context, wallet *models.Wallet) error
	ApplyDelta(ctx context.Context, walletID uuid.UUID, amountCents int64, rollups map[string]int64) error
	ApplyDebit(ctx context.Context, walletID uuid.UUID, amountCents int64, rollups map[string]int64) (bool, error)
	AddRollups(ctx context.Context, walletID uuid.UUID, rollups map[string]int64) error
	ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a wallets repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByOwner(ctx context.Context, owner Owner) (*models.Wallet, error) {
	return r.findByOwner(r.db.WithContext(ctx), owner)
}

// LockByOwner reads the wallet with a row lock on Postgres so concurrent
// withdrawals serialise on the same wallet.
func (r *repository) LockByOwner(ctx context.Context, owner Owner) (*models.Wallet, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector != nil && r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.findByOwner(query, owner)
}

func (r *repository) findByOwner(query *gorm.DB, owner Owner) (*models.Wallet, error) {
	var wallet models.Wallet
	err := query.
		Where("owner_type = ? AND owner_id = ?", owner.Type, owner.ID).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// CreateIfMissing inserts the wallet unless the owner already has one; a
// concurrent creator wins silently.
func (r *repository) CreateIfMissing(ctx context.Context, wallet *models.Wallet) error {
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_type"}, {Name: "owner_id"}},
			DoNothing: true,
		}).
		Create(wallet).Error
}

// ApplyDelta adds a signed amount with no balance guard. Credits and reversals
// use it; plain debits go through ApplyDebit.
func (r *repository) ApplyDelta(ctx context.Context, walletID uuid.UUID, amountCents int64, rollups map[string]int64) error {
	updates := balanceUpdates(amountCents, rollups)
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ApplyDebit subtracts amountCents unless the wallet would go negative. It
// reports false when the balance guard rejected the update.
func (r *repository) ApplyDebit(ctx context.Context, walletID uuid.UUID, amountCents int64, rollups map[string]int64) (bool, error) {
	updates := balanceUpdates(-amountCents, rollups)
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND (allow_negative OR balance_cents >= ?)", walletID, amountCents).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AddRollups(ctx context.Context, walletID uuid.UUID, rollups map[string]int64) error {
	if len(rollups) == 0 {
		return nil
	}
	updates := map[string]any{"updated_at": time.Now().UTC()}
	for column, delta := range rollups {
		updates[column] = gorm.Expr(column+" + ?", delta)
	}
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(updates).Error
}

// ListIDs pages through wallet ids in id order, starting after the given id.
func (r *repository) ListIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).Model(&models.Wallet{})
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	err := query.Order("id ASC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}

func balanceUpdates(delta int64, rollups map[string]int64) map[string]any {
	updates := map[string]any{
		"balance_cents": gorm.Expr("balance_cents + ?", delta),
		"updated_at":    time.Now().UTC(),
	}
	for column, value := range rollups {
		updates[column] = gorm.Expr(column+" + ?", value)
	}
	return updates
}
