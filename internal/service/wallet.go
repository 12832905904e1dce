package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/otp_store/internal/metrics"
	"github.com/Fi44er/otp_store/internal/models"
	"github.com/Fi44er/otp_store/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WalletResult struct {
	NewBalance    decimal.Decimal `json:"new_balance"`
	TransactionID uuid.UUID       `json:"transaction_id"`
}

type ReconcileReport struct {
	UserID     models.UserID   `json:"user_id"`
	Balance    decimal.Decimal `json:"balance"`
	Held       decimal.Decimal `json:"held"`
	Credits    decimal.Decimal `json:"credits"`
	Debits     decimal.Decimal `json:"debits"`
	OpenHolds  decimal.Decimal `json:"open_holds"`
	Consistent bool            `json:"consistent"`
}

// ledgerEntry describes one balance mutation and the Transaction it leaves behind.
type ledgerEntry struct {
	userID     models.UserID
	amount     decimal.Decimal
	reason     string
	orderID    *string
	purchaseID *uuid.UUID
}

func (s *Service) Credit(ctx context.Context, userID models.UserID, amount decimal.Decimal, reason string) (*WalletResult, error) {
	var result *WalletResult
	err := s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.credit(ctx, tx, ledgerEntry{userID: userID, amount: amount, reason: reason})
		return err
	})
	metrics.RecordWalletOperation("credit", err)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Credited %s to user %s (%s), balance %s", utils.RoundMoney(amount), userID, reason, result.NewBalance)
	return result, nil
}

func (s *Service) Debit(ctx context.Context, userID models.UserID, amount decimal.Decimal, reason string) (*WalletResult, error) {
	var result *WalletResult
	err := s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.debit(ctx, tx, ledgerEntry{userID: userID, amount: amount, reason: reason})
		return err
	})
	metrics.RecordWalletOperation("debit", err)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Debited %s from user %s (%s), balance %s", utils.RoundMoney(amount), userID, reason, result.NewBalance)
	return result, nil
}

func (s *Service) credit(ctx context.Context, tx *gorm.DB, e ledgerEntry) (*WalletResult, error) {
	amount := utils.RoundMoney(e.amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	newBalance, ok, err := s.repo.IncrementBalance(ctx, tx, e.userID, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	return s.appendLedger(ctx, tx, e, models.TxTypeCredit, amount, newBalance.Sub(amount), newBalance)
}

func (s *Service) debit(ctx context.Context, tx *gorm.DB, e ledgerEntry) (*WalletResult, error) {
	amount := utils.RoundMoney(e.amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	newBalance, ok, err := s.repo.DecrementBalance(ctx, tx, e.userID, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.explainRefusal(ctx, tx, e.userID)
	}

	return s.appendLedger(ctx, tx, e, models.TxTypeDebit, amount, newBalance.Add(amount), newBalance)
}

// explainRefusal tells a missing user apart from a short balance after a guarded update matched nothing.
func (s *Service) explainRefusal(ctx context.Context, tx *gorm.DB, userID models.UserID) error {
	user, err := s.repo.GetUser(ctx, userID, tx)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return ErrInsufficientBalance
}

func (s *Service) appendLedger(ctx context.Context, tx *gorm.DB, e ledgerEntry, txType string, amount, prev, next decimal.Decimal) (*WalletResult, error) {
	txn := &models.Transaction{
		ID:              uuid.New(),
		UserID:          e.userID,
		Type:            txType,
		Amount:          amount,
		Reason:          e.reason,
		Status:          models.TxStatusCompleted,
		OrderID:         e.orderID,
		PurchaseID:      e.purchaseID,
		PreviousBalance: prev,
		NewBalance:      next,
		CreatedAt:       s.now(),
	}
	if err := s.repo.CreateTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}
	return &WalletResult{NewBalance: next, TransactionID: txn.ID}, nil
}

// Hold reserves amount from the available balance of an active user.
func (s *Service) Hold(ctx context.Context, userID models.UserID, amount decimal.Decimal, reason string) (*models.Hold, error) {
	amount = utils.RoundMoney(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	user, err := s.repo.GetUser(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	hold := &models.Hold{
		ID:     uuid.New(),
		UserID: userID,
		Amount: amount,
		Reason: reason,
		Status: models.HoldHeld,
	}
	err = s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.AddHeld(ctx, tx, userID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInsufficientBalance
		}
		return s.repo.CreateHold(ctx, tx, hold)
	})
	metrics.RecordWalletOperation("hold", err)
	if err != nil {
		return nil, err
	}

	s.logger.Debugf("Reserved %s for user %s (hold %s)", amount, userID, hold.ID)
	return hold, nil
}

// CaptureHold converts a hold into a permanent debit. It must run inside tx
// so the caller can pair it with its own writes.
func (s *Service) CaptureHold(ctx context.Context, tx *gorm.DB, holdID uuid.UUID, reason string, purchaseID *uuid.UUID) (*WalletResult, error) {
	hold, err := s.repo.GetHold(ctx, holdID, tx)
	if err != nil {
		return nil, err
	}
	if hold == nil || hold.Status != models.HoldHeld {
		return nil, ErrHoldNotActive
	}

	ok, err := s.repo.TransitionHold(ctx, tx, holdID, models.HoldHeld, models.HoldCaptured)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHoldNotActive
	}

	newBalance, ok, err := s.repo.CaptureHeld(ctx, tx, hold.UserID, hold.Amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("reserved balance of user %s is below hold %s", hold.UserID, holdID)
	}

	e := ledgerEntry{userID: hold.UserID, amount: hold.Amount, reason: reason, purchaseID: purchaseID}
	return s.appendLedger(ctx, tx, e, models.TxTypeDebit, hold.Amount, newBalance.Add(hold.Amount), newBalance)
}

// ReleaseHold drops a hold without moving money. Releasing a hold that is
// no longer held is a no-op.
func (s *Service) ReleaseHold(ctx context.Context, holdID uuid.UUID) error {
	err := s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		hold, err := s.repo.GetHold(ctx, holdID, tx)
		if err != nil {
			return err
		}
		if hold == nil {
			return ErrHoldNotActive
		}

		ok, err := s.repo.TransitionHold(ctx, tx, holdID, models.HoldHeld, models.HoldReleased)
		if err != nil || !ok {
			return err
		}

		released, err := s.repo.ReleaseHeld(ctx, tx, hold.UserID, hold.Amount)
		if err != nil {
			return err
		}
		if !released {
			return fmt.Errorf("reserved balance of user %s is below hold %s", hold.UserID, holdID)
		}
		return nil
	})
	metrics.RecordWalletOperation("release", err)
	return err
}

// Reconcile recomputes a user's balance from the ledger. All reads share one
// snapshot so concurrent writes cannot show up as a mismatch.
func (s *Service) Reconcile(ctx context.Context, userID models.UserID) (*ReconcileReport, error) {
	report := &ReconcileReport{UserID: userID}
	err := s.repo.InSnapshot(ctx, func(tx *gorm.DB) error {
		user, err := s.repo.GetUser(ctx, userID, tx)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		report.Balance, report.Held = user.Balance, user.Held

		if report.Credits, report.Debits, err = s.repo.SumLedger(ctx, tx, userID); err != nil {
			return err
		}
		report.OpenHolds, err = s.repo.SumOpenHolds(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	report.Consistent = report.Credits.Sub(report.Debits).Equal(report.Balance) && report.OpenHolds.Equal(report.Held)
	if !report.Consistent {
		s.logger.Errorf("Ledger mismatch for user %s: balance=%s credits=%s debits=%s held=%s open_holds=%s",
			userID, report.Balance, report.Credits, report.Debits, report.Held, report.OpenHolds)
	}
	return report, nil
}

func (s *Service) Transactions(ctx context.Context, userID models.UserID, limit, offset int) ([]models.Transaction, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
