package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/otp_store/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *Repository) GetPayment(ctx context.Context, orderID string, tx *gorm.DB) (*models.Payment, error) {
	var payment models.Payment
	err := r.conn(ctx, tx).First(&payment, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %s: %w", orderID, err)
	}
	return &payment, nil
}

// SavePayment inserts the record, or moves an existing pending record to
// the new state. Terminal records are left alone and false is returned.
func (r *Repository) SavePayment(ctx context.Context, tx *gorm.DB, payment *models.Payment) (bool, error) {
	res := r.conn(ctx, tx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "source", "gateway_status", "transaction_id", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: `"payments"."status" = ?`, Vars: []interface{}{models.PaymentPending}},
		}},
	}).Create(payment)
	if res.Error != nil {
		return false, fmt.Errorf("failed to save payment %s: %w", payment.OrderID, res.Error)
	}
	return res.RowsAffected > 0, nil
}
