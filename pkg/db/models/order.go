package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/madebyloom/loomline-backend/pkg/enums"
	"github.com/madebyloom/loomline-backend/pkg/types"
)

// Order is the order context a checkout runs against. It is created from a
// cart before the wizard opens and finalized by a successful payment outcome.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AccountID        *uuid.UUID          `gorm:"column:account_id;type:uuid;index" json:"account_id,omitempty"`
	BrowsingContext  string              `gorm:"column:browsing_context;not null;index" json:"browsing_context"`
	Status           enums.OrderStatus   `gorm:"column:status;not null;default:'draft'" json:"status"`
	SubtotalCents    int64               `gorm:"column:subtotal_cents;not null" json:"subtotal_cents"`
	TaxCents         int64               `gorm:"column:tax_cents;not null" json:"tax_cents"`
	ShippingCents    int64               `gorm:"column:shipping_cents;not null" json:"shipping_cents"`
	TotalCents       int64               `gorm:"column:total_cents;not null" json:"total_cents"`
	CustomerInfo     *types.CustomerInfo `gorm:"column:customer_info;type:jsonb;serializer:json" json:"customer_info,omitempty"`
	ShippingAddress  *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json" json:"shipping_address,omitempty"`
	SelectedRate     *types.ShippingRate `gorm:"column:selected_rate;type:jsonb;serializer:json" json:"selected_rate,omitempty"`
	ResultPaymentID  *string             `gorm:"column:result_payment_id" json:"result_payment_id,omitempty"`
	PaymentProvider  *string             `gorm:"column:payment_provider" json:"payment_provider,omitempty"`
	Items            []OrderLineItem     `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
