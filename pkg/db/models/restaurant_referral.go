package models

import (
	"time"

	"github.com/google/uuid"
)

// RestaurantReferral records the admin who registered a restaurant.
type RestaurantReferral struct {
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;primaryKey" json:"restaurant_id"`
	AdminID      uuid.UUID `gorm:"column:admin_id;type:uuid;not null" json:"admin_id"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
