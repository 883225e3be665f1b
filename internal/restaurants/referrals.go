package restaurants

import (
	"context"
	"errors"
	"fmt"

	dbpkg "github.com/angelmondragon/foodrun-backend/pkg/db"
	"github.com/angelmondragon/foodrun-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferralRepository records which admin registered a restaurant. The
// referrer earns the per-item admin commission on the restaurant's orders.
type ReferralRepository interface {
	WithTx(tx *gorm.DB) ReferralRepository
	Register(ctx context.Context, restaurantID, adminID uuid.UUID) (*models.RestaurantReferral, error)
	ReferrerFor(ctx context.Context, restaurantID uuid.UUID) (*uuid.UUID, error)
}

type referralRepository struct {
	db *gorm.DB
}

// NewReferralRepository builds a referral repository bound to the provided DB.
func NewReferralRepository(db *gorm.DB) ReferralRepository {
	return &referralRepository{db: db}
}

func (r *referralRepository) WithTx(tx *gorm.DB) ReferralRepository {
	if tx == nil {
		return r
	}
	return &referralRepository{db: tx}
}

// Register links a restaurant to the admin who onboarded it. A restaurant has
// at most one referrer; registering it again is a conflict.
func (r *referralRepository) Register(ctx context.Context, restaurantID, adminID uuid.UUID) (*models.RestaurantReferral, error) {
	if restaurantID == uuid.Nil || adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id and admin id are required")
	}
	referral := &models.RestaurantReferral{RestaurantID: restaurantID, AdminID: adminID}
	if err := r.db.WithContext(ctx).Create(referral).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "restaurant already has a referrer")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create referral")
	}
	return referral, nil
}

func (r *referralRepository) ReferrerFor(ctx context.Context, restaurantID uuid.UUID) (*uuid.UUID, error) {
	var referral models.RestaurantReferral
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load referral: %w", err)
	}
	admin := referral.AdminID
	return &admin, nil
}
