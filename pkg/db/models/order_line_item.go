package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/madebyloom/loomline-backend/pkg/enums"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

// OrderLineItem snapshots a purchased slot at order-creation time.
type OrderLineItem struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductID      uuid.UUID            `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Name           string               `gorm:"column:name;not null" json:"name"`
	Quantity       int                  `gorm:"column:quantity;not null" json:"quantity"`
	UnitPriceCents int64                `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	WeightOz       float64              `gorm:"column:weight_oz;not null;default:0" json:"weight_oz"`
	TotalCents     int64                `gorm:"column:total_cents;not null" json:"total_cents"`
	Customization  *types.Customization `gorm:"column:customization;type:jsonb;serializer:json" json:"customization,omitempty"`
	ReviewStatus   enums.ReviewStatus   `gorm:"column:review_status;not null;default:'approved'" json:"review_status"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
