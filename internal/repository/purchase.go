package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *Repository) CreatePurchase(ctx context.Context, tx *gorm.DB, purchase *models.Purchase) error {
	if err := r.conn(ctx, tx).Create(purchase).Error; err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

// GetPurchase only finds purchases owned by userID.
func (r *Repository) GetPurchase(ctx context.Context, userID models.UserID, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&purchase).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	return &purchase, nil
}

func (r *Repository) ListPurchases(ctx context.Context, userID models.UserID, limit, offset int) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&purchases).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return purchases, nil
}

// CompletePurchase records the first code. Returns false if the purchase
// already left waiting_sms or already has a code.
func (r *Repository) CompletePurchase(ctx context.Context, id uuid.UUID, code string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status = ? AND sms_code IS NULL", id, models.PurchaseWaitingSMS).
		Updates(map[string]interface{}{
			"sms_code":     code,
			"status":       models.PurchaseCompleted,
			"can_cancel":   false,
			"completed_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to complete purchase %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CancelPurchase flips a cancellable purchase to cancelled.
func (r *Repository) CancelPurchase(ctx context.Context, tx *gorm.DB, userID models.UserID, id uuid.UUID, at time.Time) (bool, error) {
	res := r.conn(ctx, tx).
		Model(&models.Purchase{}).
		Where("id = ? AND user_id = ? AND status = ? AND can_cancel", id, userID, models.PurchaseWaitingSMS).
		Updates(map[string]interface{}{
			"status":       models.PurchaseCancelled,
			"can_cancel":   false,
			"cancelled_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to cancel purchase %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}
