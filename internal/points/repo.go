package points

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	"github.com/angelmondragon/foodrun-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists points accounts and their deduction audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateIfMissing(ctx context.Context, account *models.PointsAccount) error
	FindByOwner(ctx context.Context, ownerType enums.PointsOwnerType, ownerID uuid.UUID) (*models.PointsAccount, error)
	LockByOwner(ctx context.Context, ownerType enums.PointsOwnerType, ownerID uuid.UUID) (*models.PointsAccount, error)
	Deduct(ctx context.Context, accountID uuid.UUID, amount int) error
	MarkSuspended(ctx context.Context, accountID uuid.UUID, at time.Time) (bool, error)
	MarkWarned(ctx context.Context, accountID uuid.UUID) error
	ClaimDeduction(ctx context.Context, deduction *models.PointsDeduction) (bool, error)
	FindDeduction(ctx context.Context, accountID uuid.UUID, key string) (*models.PointsDeduction, error)
	SaveOutcome(ctx context.Context, deduction *models.PointsDeduction) error
	ListDeductions(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.PointsDeduction, string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a points repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateIfMissing(ctx context.Context, account *models.PointsAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_type"}, {Name: "owner_id"}},
			DoNothing: true,
		}).
		Create(account).Error
}

func (r *repository) FindByOwner(ctx context.Context, ownerType enums.PointsOwnerType, ownerID uuid.UUID) (*models.PointsAccount, error) {
	return r.findByOwner(r.db.WithContext(ctx), ownerType, ownerID)
}

// LockByOwner serialises deductions on the same account on Postgres.
func (r *repository) LockByOwner(ctx context.Context, ownerType enums.PointsOwnerType, ownerID uuid.UUID) (*models.PointsAccount, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector != nil && r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.findByOwner(query, ownerType, ownerID)
}

func (r *repository) findByOwner(query *gorm.DB, ownerType enums.PointsOwnerType, ownerID uuid.UUID) (*models.PointsAccount, error) {
	var account models.PointsAccount
	err := query.
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Deduct lowers the balance, clamping at zero in the same statement.
func (r *repository) Deduct(ctx context.Context, accountID uuid.UUID, amount int) error {
	res := r.db.WithContext(ctx).
		Model(&models.PointsAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"points":     gorm.Expr("CASE WHEN points > ? THEN points - ? ELSE 0 END", amount, amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkSuspended reports true only for the call that actually suspended the
// account.
func (r *repository) MarkSuspended(ctx context.Context, accountID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PointsAccount{}).
		Where("id = ? AND suspended_at IS NULL", accountID).
		Updates(map[string]any{
			"standing":     enums.PointsStandingSuspended,
			"suspended_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkWarned(ctx context.Context, accountID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PointsAccount{}).
		Where("id = ? AND suspended_at IS NULL", accountID).
		Updates(map[string]any{
			"standing":   enums.PointsStandingWarned,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ClaimDeduction inserts the audit row keyed by (account, idempotency key).
// It reports false when the key was already used.
func (r *repository) ClaimDeduction(ctx context.Context, deduction *models.PointsDeduction) (bool, error) {
	if deduction.ID == uuid.Nil {
		deduction.ID = uuid.New()
	}
	if deduction.CreatedAt.IsZero() {
		deduction.CreatedAt = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(deduction)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindDeduction(ctx context.Context, accountID uuid.UUID, key string) (*models.PointsDeduction, error) {
	var deduction models.PointsDeduction
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND idempotency_key = ?", accountID, key).
		First(&deduction).Error; err != nil {
		return nil, err
	}
	return &deduction, nil
}

func (r *repository) SaveOutcome(ctx context.Context, deduction *models.PointsDeduction) error {
	return r.db.WithContext(ctx).
		Model(&models.PointsDeduction{}).
		Where("id = ?", deduction.ID).
		Updates(map[string]any{
			"applied":       deduction.Applied,
			"balance_after": deduction.BalanceAfter,
			"suspended":     deduction.Suspended,
			"warning":       deduction.Warning,
		}).Error
}

// ListDeductions returns a page of deductions, newest first.
func (r *repository) ListDeductions(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.PointsDeduction, string, error) {
	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	return pagination.Newest(query, params, func(row models.PointsDeduction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
}
