package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type balanceRow struct {
	Balance decimal.Decimal
	Held    decimal.Decimal
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id models.UserID, tx *gorm.DB) (*models.User, error) {
	var user models.User
	err := r.conn(ctx, tx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *Repository) SetUserActive(ctx context.Context, id models.UserID, active bool) error {
	tx := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("active", active)
	if tx.Error != nil {
		return fmt.Errorf("failed to update user %s: %w", id, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementBalance adds amount to the balance and returns the new balance.
// ok is false when the user does not exist.
func (r *Repository) IncrementBalance(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	var row balanceRow
	res := r.conn(ctx, tx).Raw(
		`UPDATE users SET balance = balance + ?, updated_at = NOW() WHERE id = ? RETURNING balance, held`,
		amount, id,
	).Scan(&row)
	if res.Error != nil {
		return decimal.Zero, false, fmt.Errorf("failed to increment balance: %w", res.Error)
	}
	return row.Balance, res.RowsAffected > 0, nil
}

// DecrementBalance subtracts amount only if the available balance covers it.
// ok is false when the user is missing or the funds are insufficient.
func (r *Repository) DecrementBalance(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	var row balanceRow
	res := r.conn(ctx, tx).Raw(
		`UPDATE users SET balance = balance - ?, updated_at = NOW() WHERE id = ? AND balance - held >= ? RETURNING balance, held`,
		amount, id, amount,
	).Scan(&row)
	if res.Error != nil {
		return decimal.Zero, false, fmt.Errorf("failed to decrement balance: %w", res.Error)
	}
	return row.Balance, res.RowsAffected > 0, nil
}

// AddHeld reserves amount out of the available balance.
func (r *Repository) AddHeld(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (bool, error) {
	var row balanceRow
	res := r.conn(ctx, tx).Raw(
		`UPDATE users SET held = held + ?, updated_at = NOW() WHERE id = ? AND balance - held >= ? RETURNING balance, held`,
		amount, id, amount,
	).Scan(&row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to reserve balance: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CaptureHeld turns a reservation into a real deduction and returns the new balance.
func (r *Repository) CaptureHeld(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	var row balanceRow
	res := r.conn(ctx, tx).Raw(
		`UPDATE users SET balance = balance - ?, held = held - ?, updated_at = NOW() WHERE id = ? AND held >= ? RETURNING balance, held`,
		amount, amount, id, amount,
	).Scan(&row)
	if res.Error != nil {
		return decimal.Zero, false, fmt.Errorf("failed to capture reserved balance: %w", res.Error)
	}
	return row.Balance, res.RowsAffected > 0, nil
}

func (r *Repository) ReleaseHeld(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (bool, error) {
	res := r.conn(ctx, tx).Exec(
		`UPDATE users SET held = held - ?, updated_at = NOW() WHERE id = ? AND held >= ?`,
		amount, id, amount,
	)
	if res.Error != nil {
		return false, fmt.Errorf("failed to release reserved balance: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
