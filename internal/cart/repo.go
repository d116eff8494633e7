package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madebyloom/loomline-backend/pkg/db/models"
)

// Repository persists the authoritative cart tier.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByAccount(ctx context.Context, accountID uuid.UUID) (*models.CartRecord, error)
	FindOrCreateByAccount(ctx context.Context, accountID uuid.UUID) (*models.CartRecord, error)
	FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	UpdateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

type repository struct {
	conn *gorm.DB
}

// NewRepository builds a gorm-backed cart repository.
func NewRepository(conn *gorm.DB) (Repository, error) {
	if conn == nil {
		return nil, fmt.Errorf("db connection required")
	}
	return &repository{conn: conn}, nil
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{conn: tx}
}

func (r *repository) FindByAccount(ctx context.Context, accountID uuid.UUID) (*models.CartRecord, error) {
	var record models.CartRecord
	err := r.conn.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("Items.Product.Variants").
		First(&record, "account_id = ?", accountID).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindOrCreateByAccount(ctx context.Context, accountID uuid.UUID) (*models.CartRecord, error) {
	record, err := r.FindByAccount(ctx, accountID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &models.CartRecord{AccountID: accountID}
	if err := r.conn.WithContext(ctx).Create(created).Error; err != nil {
		return nil, err
	}
	return r.FindByAccount(ctx, accountID)
}

func (r *repository) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.conn.WithContext(ctx).
		Preload("Product").
		Preload("Product.Variants").
		First(&item, "id = ? AND cart_id = ?", itemID, cartID).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	if err := r.conn.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (r *repository) UpdateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	if err := r.conn.WithContext(ctx).Save(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (r *repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	return r.conn.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{}).Error
}

func (r *repository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return r.conn.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}
