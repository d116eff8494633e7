package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/madebyloom/loomline-backend/pkg/enums"
)

// PaymentAttempt records one provider hand-off for an order. At most one
// unresolved attempt exists per order; starting a new attempt supersedes it.
type PaymentAttempt struct {
	ID              uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID         uuid.UUID                  `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	Provider        enums.PaymentProvider      `gorm:"column:provider;not null" json:"provider"`
	ExternalID      string                     `gorm:"column:external_id;not null;index" json:"external_id"`
	Status          enums.PaymentAttemptStatus `gorm:"column:status;not null;default:'created'" json:"status"`
	ResultPaymentID *string                    `gorm:"column:result_payment_id" json:"result_payment_id,omitempty"`
	FailureReason   *string                    `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time                  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
