package models

import (
	"time"

	"github.com/google/uuid"
)

// CartRecord is the authoritative cart for an account. Guests have no record
// here; their cart lives in the guest snapshot tier until they authenticate.
type CartRecord struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AccountID uuid.UUID  `gorm:"column:account_id;type:uuid;not null;uniqueIndex" json:"account_id"`
	Items     []CartItem `gorm:"foreignKey:CartID" json:"items"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
