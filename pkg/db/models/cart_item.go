package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/madebyloom/loomline-backend/pkg/enums"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

// CartItem is one persisted cart slot. Customized slots never merge; plain
// slots are unique per product and merge by quantity.
type CartItem struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CartID         uuid.UUID            `gorm:"column:cart_id;type:uuid;not null;index" json:"cart_id"`
	ProductID      uuid.UUID            `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Quantity       int                  `gorm:"column:quantity;not null" json:"quantity"`
	UnitPriceCents int64                `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	// IsCustomCreation marks items whose product is made to order; those are
	// never purged by availability cleanup.
	IsCustomCreation bool `gorm:"column:is_custom_creation;not null;default:false" json:"is_custom_creation"`
	Customization  *types.Customization `gorm:"column:customization;type:jsonb;serializer:json" json:"customization,omitempty"`
	ReviewStatus   enums.ReviewStatus   `gorm:"column:review_status;not null;default:'approved'" json:"review_status"`
	Product        *Product             `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// Customized reports whether this slot carries a customization payload.
func (c CartItem) Customized() bool {
	return c.Customization != nil
}
