package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Fi44er/otp_store/internal/metrics"
	"github.com/Fi44er/otp_store/internal/models"
	"github.com/Fi44er/otp_store/internal/pay0"
	"github.com/Fi44er/otp_store/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	OutcomeConfirmed = "confirmed"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomePending   = "pending"
	OutcomeIgnored   = "ignored"

	topUpRemark = "WalletTopup"
)

var errPaymentSettled = errors.New("payment already settled")

type TopUp struct {
	OrderID    string          `json:"order_id"`
	PaymentURL string          `json:"payment_url"`
	Amount     decimal.Decimal `json:"amount"`
}

// Outcome is what happened to one payment notification or status check.
type Outcome struct {
	OrderID       string           `json:"order_id"`
	Status        string           `json:"status"`
	Amount        decimal.Decimal  `json:"amount"`
	NewBalance    *decimal.Decimal `json:"new_balance,omitempty"`
	TransactionID *uuid.UUID       `json:"transaction_id,omitempty"`
}

func (s *Service) InitiateTopUp(ctx context.Context, userID models.UserID, amount decimal.Decimal) (*TopUp, error) {
	amount = utils.RoundMoney(amount)
	minTopUp, maxTopUp := utils.Money(s.config.MinTopUp), utils.Money(s.config.MaxTopUp)
	if amount.LessThan(minTopUp) || amount.GreaterThan(maxTopUp) {
		return nil, fmt.Errorf("%w: amount must be between %s and %s", ErrInvalidAmount, minTopUp, maxTopUp)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	orderID := s.newOrderID(userID)
	payment := &models.Payment{
		OrderID: orderID,
		UserID:  userID,
		Amount:  amount,
		Status:  models.PaymentPending,
		Source:  models.PaymentSourceInitiate,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, pay0.OrderRequest{
		OrderID:        orderID,
		Amount:         amount,
		CustomerMobile: user.Mobile,
		CustomerName:   user.Name,
		RedirectURL:    returnURL(s.config.ReturnURL, orderID),
		Remark1:        userID.String(),
		Remark2:        topUpRemark,
	})
	if err != nil {
		s.logger.Errorf("Failed to create pay0 order %s: %v", orderID, err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	s.logger.Infof("Top-up order %s created for user %s: %s", orderID, userID, amount)
	return &TopUp{OrderID: orderID, PaymentURL: order.PaymentURL, Amount: amount}, nil
}

func (s *Service) newOrderID(userID models.UserID) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("BRANDOTP_%s_%d_%s", userID.String()[:4], s.now().Unix(), suffix)
}

func returnURL(base, orderID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "orderid=" + url.QueryEscape(orderID)
}

// HandleNotification is the push trigger: a webhook delivery from the gateway.
// The delivery itself is unauthenticated, so it only points at an order we
// created; what happens to that order is decided by asking the gateway.
func (s *Service) HandleNotification(ctx context.Context, n pay0.Notification) (*Outcome, error) {
	s.logger.Infof("Pay0 webhook: order=%s status=%s amount=%s remark1=%s", n.OrderID, n.Status, n.Amount, n.UserRef)

	if n.OrderID == "" || n.Status == "" {
		return s.malformed(models.PaymentSourceWebhook, "missing order id or status")
	}

	var userID models.UserID
	if n.UserRef != "" || n.Status == pay0.StatusSuccess {
		id, err := models.ParseUserID(n.UserRef)
		if err != nil {
			return s.malformed(models.PaymentSourceWebhook, err.Error())
		}
		userID = id
	}

	switch n.Status {
	case pay0.StatusSuccess:
		amount, err := decimal.NewFromString(n.Amount)
		if err != nil || !amount.IsPositive() {
			return s.malformed(models.PaymentSourceWebhook, fmt.Sprintf("bad amount %q", n.Amount))
		}
	case pay0.StatusFailed, pay0.StatusCancelled:
	default:
		s.logger.Infof("Pay0 webhook for order %s has unhandled status %s", n.OrderID, n.Status)
		metrics.RecordPaymentNotification(models.PaymentSourceWebhook, OutcomeIgnored)
		return &Outcome{OrderID: n.OrderID, Status: OutcomeIgnored}, nil
	}

	payment, err := s.repo.GetPayment(ctx, n.OrderID, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case payment == nil && n.Status == pay0.StatusSuccess:
		return s.malformed(models.PaymentSourceWebhook, fmt.Sprintf("unknown order %s", n.OrderID))
	case payment == nil:
		s.logger.Warnf("Order %s %s for unknown payment", n.OrderID, n.Status)
		metrics.RecordPaymentNotification(models.PaymentSourceWebhook, OutcomeIgnored)
		return &Outcome{OrderID: n.OrderID, Status: OutcomeIgnored}, nil
	case !userID.IsZero() && payment.UserID != userID:
		return s.malformed(models.PaymentSourceWebhook, fmt.Sprintf("order %s belongs to another user", n.OrderID))
	case payment.Status != models.PaymentPending:
		return s.settledOutcome(ctx, models.PaymentSourceWebhook, n.OrderID)
	}

	return s.settle(ctx, models.PaymentSourceWebhook, payment)
}

// CheckPayment is the poll trigger: the owner asks us to look the order up.
func (s *Service) CheckPayment(ctx context.Context, userID models.UserID, orderID string) (*Outcome, error) {
	if txn, err := s.repo.GetTransactionByOrderID(ctx, orderID); err != nil {
		return nil, err
	} else if txn != nil {
		if txn.UserID != userID {
			return nil, ErrPaymentNotFound
		}
		return &Outcome{OrderID: orderID, Status: OutcomeDuplicate, Amount: txn.Amount, NewBalance: &txn.NewBalance, TransactionID: &txn.ID}, nil
	}

	payment, err := s.repo.GetPayment(ctx, orderID, nil)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	if payment.Status == models.PaymentRejected {
		return &Outcome{OrderID: orderID, Status: OutcomeRejected, Amount: payment.Amount}, nil
	}

	return s.settle(ctx, models.PaymentSourcePoll, payment)
}

// settle asks the gateway for the state of a recorded order and applies it.
// Push and poll both end up here.
func (s *Service) settle(ctx context.Context, source string, payment *models.Payment) (*Outcome, error) {
	st, err := s.gateway.CheckOrderStatus(ctx, payment.OrderID)
	if err != nil {
		s.logger.Errorf("Failed to check pay0 order %s: %v", payment.OrderID, err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	switch st.Status {
	case pay0.StatusSuccess:
		if st.Amount.IsPositive() && !utils.RoundMoney(st.Amount).Equal(payment.Amount) {
			s.logger.Errorf("Order %s was created for %s but gateway reports %s, leaving it pending",
				payment.OrderID, payment.Amount, st.Amount)
			metrics.RecordPaymentNotification(source, "amount_mismatch")
			return &Outcome{OrderID: payment.OrderID, Status: OutcomePending, Amount: payment.Amount}, nil
		}
		return s.confirm(ctx, source, payment, st.Status)
	case pay0.StatusFailed, pay0.StatusCancelled:
		return s.reject(ctx, source, payment, st.Status)
	default:
		metrics.RecordPaymentNotification(source, OutcomePending)
		return &Outcome{OrderID: payment.OrderID, Status: OutcomePending, Amount: payment.Amount}, nil
	}
}

// confirm credits the recorded amount of a gateway-confirmed order exactly once.
func (s *Service) confirm(ctx context.Context, source string, payment *models.Payment, gatewayStatus string) (*Outcome, error) {
	orderID, userID, amount := payment.OrderID, payment.UserID, payment.Amount

	existing, err := s.repo.GetTransactionByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Infof("Order %s already credited (transaction %s)", orderID, existing.ID)
		metrics.RecordPaymentNotification(source, OutcomeDuplicate)
		return &Outcome{OrderID: orderID, Status: OutcomeDuplicate, Amount: existing.Amount, TransactionID: &existing.ID}, nil
	}

	user, err := s.repo.GetUser(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return s.malformed(source, fmt.Sprintf("unknown user %s", userID))
	}

	var result *WalletResult
	err = s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.credit(ctx, tx, ledgerEntry{
			userID:  userID,
			amount:  amount,
			reason:  fmt.Sprintf("Add Money - Pay0 (Order: %s)", orderID),
			orderID: &orderID,
		})
		if err != nil {
			return err
		}

		confirmed := *payment
		confirmed.Status = models.PaymentConfirmed
		confirmed.Source = source
		confirmed.GatewayStatus = gatewayStatus
		confirmed.TransactionID = &result.TransactionID
		confirmed.UpdatedAt = s.now()
		saved, err := s.repo.SavePayment(ctx, tx, &confirmed)
		if err != nil {
			return err
		}
		if !saved {
			return errPaymentSettled
		}
		return nil
	})
	if errors.Is(err, errPaymentSettled) {
		s.logger.Warnf("Order %s was settled concurrently, credit rolled back", orderID)
		return s.settledOutcome(ctx, source, orderID)
	}
	if isDuplicate(err) {
		s.logger.Infof("Order %s was credited by a concurrent delivery", orderID)
		metrics.RecordPaymentNotification(source, OutcomeDuplicate)
		return &Outcome{OrderID: orderID, Status: OutcomeDuplicate, Amount: amount}, nil
	}
	metrics.RecordWalletOperation("credit", err)
	if err != nil {
		s.logger.Errorf("Failed to credit order %s: %v", orderID, err)
		return nil, err
	}

	metrics.RecordPaymentNotification(source, OutcomeConfirmed)
	s.logger.Infof("✅ Order %s confirmed via %s: +%s for user %s, balance %s", orderID, source, amount, userID, result.NewBalance)
	if s.notifier != nil {
		s.notifier.TopUpConfirmed(user, orderID, amount, result.NewBalance)
	}

	return &Outcome{
		OrderID:       orderID,
		Status:        OutcomeConfirmed,
		Amount:        amount,
		NewBalance:    &result.NewBalance,
		TransactionID: &result.TransactionID,
	}, nil
}

// reject records a failed or cancelled order. No money moves.
func (s *Service) reject(ctx context.Context, source string, payment *models.Payment, gatewayStatus string) (*Outcome, error) {
	rejected := *payment
	rejected.Status = models.PaymentRejected
	rejected.Source = source
	rejected.GatewayStatus = gatewayStatus
	rejected.UpdatedAt = s.now()
	saved, err := s.repo.SavePayment(ctx, nil, &rejected)
	if err != nil {
		return nil, err
	}
	if !saved {
		return s.settledOutcome(ctx, source, payment.OrderID)
	}

	s.logger.Infof("❌ Order %s rejected via %s: %s", payment.OrderID, source, gatewayStatus)
	metrics.RecordPaymentNotification(source, OutcomeRejected)
	return &Outcome{OrderID: payment.OrderID, Status: OutcomeRejected, Amount: payment.Amount}, nil
}

// settledOutcome reports an order another delivery already finished.
func (s *Service) settledOutcome(ctx context.Context, source, orderID string) (*Outcome, error) {
	payment, err := s.repo.GetPayment(ctx, orderID, nil)
	if err != nil {
		return nil, err
	}
	status := OutcomeDuplicate
	if payment != nil && payment.Status == models.PaymentRejected {
		status = OutcomeRejected
	}
	metrics.RecordPaymentNotification(source, status)
	out := &Outcome{OrderID: orderID, Status: status}
	if payment != nil {
		out.Amount = payment.Amount
		out.TransactionID = payment.TransactionID
	}
	return out, nil
}

func (s *Service) malformed(source, reason string) (*Outcome, error) {
	s.logger.Warnf("Malformed payment notification (%s): %s", source, reason)
	metrics.RecordPaymentNotification(source, "malformed")
	return nil, fmt.Errorf("%w: %s", ErrMalformedNotification, reason)
}
