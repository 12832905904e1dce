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

// CreateTransaction appends a ledger entry. There is deliberately no update
// or delete counterpart. A duplicate order id surfaces as gorm.ErrDuplicatedKey.
func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if err := r.conn(ctx, tx).Create(txn).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetTransactionByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&txn).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &txn, nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID models.UserID, limit, offset int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txns).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// SumLedger totals a user's credits and debits.
func (r *Repository) SumLedger(ctx context.Context, tx *gorm.DB, userID models.UserID) (credits, debits decimal.Decimal, err error) {
	var row struct {
		Credits decimal.Decimal
		Debits  decimal.Decimal
	}
	err = r.conn(ctx, tx).Raw(
		`SELECT COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS credits, `+
			`COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS debits `+
			`FROM transactions WHERE user_id = ?`,
		models.TxTypeCredit, models.TxTypeDebit, userID,
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return row.Credits, row.Debits, nil
}
