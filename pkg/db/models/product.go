package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry. Made-to-order creations are flagged with
// IsCustomCreation and carry no standing stock.
type Product struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title            string           `gorm:"column:title;not null" json:"title"`
	Description      string           `gorm:"column:description" json:"description"`
	BasePriceCents   int64            `gorm:"column:base_price_cents;not null" json:"base_price_cents"`
	WeightOz         float64          `gorm:"column:weight_oz;not null;default:0" json:"weight_oz"`
	IsActive         bool             `gorm:"column:is_active;not null;default:true" json:"is_active"`
	IsCustomCreation bool             `gorm:"column:is_custom_creation;not null;default:false" json:"is_custom_creation"`
	Variants         []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// AvailableStock sums the per-variant stock.
func (p Product) AvailableStock() int {
	total := 0
	for _, v := range p.Variants {
		total += v.StockQty
	}
	return total
}
