package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madebyloom/loomline-backend/pkg/db/models"
)

// AttemptRepository persists payment attempts.
type AttemptRepository interface {
	WithTx(tx *gorm.DB) AttemptRepository
	Create(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error)
	Update(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error)
	FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentAttempt, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.PaymentAttempt, error)
}

type attemptRepository struct {
	conn *gorm.DB
}

// NewAttemptRepository builds a gorm-backed attempt repository.
func NewAttemptRepository(conn *gorm.DB) (AttemptRepository, error) {
	if conn == nil {
		return nil, fmt.Errorf("db connection required")
	}
	return &attemptRepository{conn: conn}, nil
}

func (r *attemptRepository) WithTx(tx *gorm.DB) AttemptRepository {
	if tx == nil {
		return r
	}
	return &attemptRepository{conn: tx}
}

func (r *attemptRepository) Create(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error) {
	if err := r.conn.WithContext(ctx).Create(attempt).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

func (r *attemptRepository) Update(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error) {
	if err := r.conn.WithContext(ctx).Save(attempt).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

func (r *attemptRepository) FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.conn.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindByExternalID(ctx context.Context, externalID string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.conn.WithContext(ctx).
		Where("external_id = ?", externalID).
		Order("created_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}
