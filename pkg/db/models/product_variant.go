package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductVariant holds the per-variant stock count for a catalog product.
type ProductVariant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	SKU       string    `gorm:"column:sku" json:"sku"`
	StockQty  int       `gorm:"column:stock_qty;not null;default:0" json:"stock_qty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
