package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func (r *Repository) CreateHold(ctx context.Context, tx *gorm.DB, hold *models.Hold) error {
	if hold.ID == uuid.Nil {
		hold.ID = uuid.New()
	}
	if err := r.conn(ctx, tx).Create(hold).Error; err != nil {
		return fmt.Errorf("failed to create hold: %w", err)
	}
	return nil
}

func (r *Repository) GetHold(ctx context.Context, id uuid.UUID, tx *gorm.DB) (*models.Hold, error) {
	var hold models.Hold
	err := r.conn(ctx, tx).First(&hold, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}
	return &hold, nil
}

// TransitionHold moves a hold between states only if it is still in from.
func (r *Repository) TransitionHold(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to string) (bool, error) {
	res := r.conn(ctx, tx).
		Model(&models.Hold{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update hold %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SumOpenHolds totals the holds still in state held for a user.
func (r *Repository) SumOpenHolds(ctx context.Context, tx *gorm.DB, userID models.UserID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := r.conn(ctx, tx).
		Model(&models.Hold{}).
		Where("user_id = ? AND status = ?", userID, models.HoldHeld).
		Select("COALESCE(SUM(amount), 0) AS total").
		Scan(&row).
		Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum holds: %w", err)
	}
	return row.Total, nil
}
