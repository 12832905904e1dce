package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/otp_store/internal/metrics"
	"github.com/Fi44er/otp_store/internal/models"
	"github.com/Fi44er/otp_store/internal/smsman"
	"github.com/Fi44er/otp_store/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Quote is a storefront price for one service in one country.
type Quote struct {
	ServiceID     int             `json:"id"`
	CountryID     int             `json:"country_id"`
	Name          string          `json:"name"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Price         decimal.Decimal `json:"price"`
	Profit        decimal.Decimal `json:"profit"`
	Available     int             `json:"available"`
}

type SMSResult struct {
	Received bool    `json:"received"`
	Code     *string `json:"sms_code,omitempty"`
	Status   string  `json:"status"`
}

type CancelResult struct {
	PurchaseID   uuid.UUID       `json:"purchase_id"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	NewBalance   decimal.Decimal `json:"new_balance"`
}

func (s *Service) Countries(ctx context.Context) ([]smsman.Country, error) {
	countries, err := s.aggregator.Countries(ctx)
	if err != nil {
		s.logger.Errorf("Failed to load countries: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}
	return countries, nil
}

// Catalog lists services of a country with the marked-up customer price.
func (s *Service) Catalog(ctx context.Context, countryID int) ([]Quote, error) {
	services, err := s.aggregator.Services(ctx, countryID)
	if err != nil {
		s.logger.Errorf("Failed to load services for country %d: %v", countryID, err)
		return nil, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}

	quotes := make([]Quote, 0, len(services))
	for _, svc := range services {
		quotes = append(quotes, s.quoteFor(svc))
	}
	return quotes, nil
}

func (s *Service) quoteFor(svc smsman.Service) Quote {
	original := utils.RoundMoney(svc.Cost)
	price := utils.ApplyMarkup(svc.Cost, s.config.MarkupMultiplier)
	return Quote{
		ServiceID:     svc.ID,
		CountryID:     svc.CountryID,
		Name:          svc.Name,
		OriginalPrice: original,
		Price:         price,
		Profit:        price.Sub(original),
		Available:     svc.Count,
	}
}

// Purchase reserves the price, rents a number and only then turns the
// reservation into a debit. A failed rental leaves the balance untouched.
func (s *Service) Purchase(ctx context.Context, userID models.UserID, serviceID, countryID int) (*models.Purchase, error) {
	s.logger.Infof("SERVICE: Purchase of service %d (country %d) by user %s", serviceID, countryID, userID)

	svc, err := s.aggregator.Price(ctx, serviceID, countryID)
	if err != nil {
		metrics.RecordPurchase("pricing_unavailable")
		s.logger.Warnf("No live price for service %d in country %d: %v", serviceID, countryID, err)
		return nil, fmt.Errorf("%w: %v", ErrPricingUnavailable, err)
	}
	quote := s.quoteFor(*svc)
	if !quote.Price.IsPositive() {
		metrics.RecordPurchase("pricing_unavailable")
		return nil, ErrPricingUnavailable
	}

	reason := fmt.Sprintf("OTP purchase: service %d, country %d", serviceID, countryID)
	hold, err := s.Hold(ctx, userID, quote.Price, reason)
	if err != nil {
		metrics.RecordPurchase("rejected")
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, s.config.AcquireTimeout)
	number, err := s.aggregator.Acquire(acquireCtx, serviceID, countryID)
	cancel()
	if err != nil {
		s.logger.Errorf("Failed to acquire number for user %s: %v", userID, err)
		s.releaseHold(ctx, hold.ID)
		metrics.RecordPurchase("acquisition_failed")
		return nil, fmt.Errorf("%w: %v", ErrAcquisitionFailed, err)
	}

	now := s.now()
	purchase := &models.Purchase{
		ID:            uuid.New(),
		UserID:        userID,
		RequestID:     number.RequestID,
		Phone:         smsman.FormatPhone(countryID, number.Phone),
		CountryID:     countryID,
		ServiceID:     serviceID,
		ServiceName:   quote.Name,
		ChargedPrice:  quote.Price,
		OriginalPrice: quote.OriginalPrice,
		Profit:        quote.Profit,
		Status:        models.PurchaseWaitingSMS,
		CanCancel:     true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// The number is rented now; a client that went away must not undo that.
	commitCtx := context.WithoutCancel(ctx)
	err = s.repo.InTransaction(commitCtx, func(tx *gorm.DB) error {
		if err := s.repo.CreatePurchase(commitCtx, tx, purchase); err != nil {
			return err
		}
		_, err := s.CaptureHold(commitCtx, tx, hold.ID, reason, &purchase.ID)
		return err
	})
	if err != nil {
		s.logger.Errorf("CRITICAL: number %s (request %s) acquired for user %s but capture failed: %v",
			number.Phone, number.RequestID, userID, err)
		s.releaseHold(commitCtx, hold.ID)
		metrics.RecordPurchase("capture_failed")
		return nil, err
	}

	metrics.RecordPurchase("completed")
	s.logger.Infof("User %s bought %s for %s (request %s)", userID, purchase.Phone, purchase.ChargedPrice, purchase.RequestID)
	s.notifyUser(commitCtx, userID, func(user *models.User) { s.notifier.NumberPurchased(user, purchase) })

	return purchase, nil
}

// releaseHold runs even if the caller's context is already cancelled.
func (s *Service) releaseHold(ctx context.Context, holdID uuid.UUID) {
	if err := s.ReleaseHold(context.WithoutCancel(ctx), holdID); err != nil {
		s.logger.Errorf("Failed to release hold %s: %v", holdID, err)
	}
}

// PollSMS asks the aggregator for the code unless the purchase is already settled.
func (s *Service) PollSMS(ctx context.Context, userID models.UserID, purchaseID uuid.UUID) (*SMSResult, error) {
	purchase, err := s.getPurchase(ctx, userID, purchaseID)
	if err != nil {
		return nil, err
	}

	if purchase.SMSCode != nil {
		return &SMSResult{Received: true, Code: purchase.SMSCode, Status: purchase.Status}, nil
	}
	if purchase.Status != models.PurchaseWaitingSMS {
		return &SMSResult{Received: false, Status: purchase.Status}, nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, s.config.PollTimeout)
	code, err := s.aggregator.PollCode(pollCtx, purchase.RequestID)
	cancel()
	if err != nil {
		s.logger.Warnf("Failed to poll SMS for request %s: %v", purchase.RequestID, err)
		return &SMSResult{Received: false, Status: purchase.Status}, nil
	}
	if code == "" {
		return &SMSResult{Received: false, Status: purchase.Status}, nil
	}

	completed, err := s.repo.CompletePurchase(ctx, purchase.ID, code, s.now())
	if err != nil {
		return nil, err
	}
	if !completed {
		// Lost a race with a cancel or another poll; report what is stored.
		current, err := s.getPurchase(ctx, userID, purchaseID)
		if err != nil {
			return nil, err
		}
		return &SMSResult{Received: current.SMSCode != nil, Code: current.SMSCode, Status: current.Status}, nil
	}

	s.logger.Infof("SMS received for purchase %s", purchase.ID)
	return &SMSResult{Received: true, Code: &code, Status: models.PurchaseCompleted}, nil
}

// Cancel refunds exactly the charged price of a purchase that has not received a code.
func (s *Service) Cancel(ctx context.Context, userID models.UserID, purchaseID uuid.UUID) (*CancelResult, error) {
	purchase, err := s.getPurchase(ctx, userID, purchaseID)
	if err != nil {
		return nil, err
	}

	var refund *WalletResult
	err = s.repo.InTransaction(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.CancelPurchase(ctx, tx, userID, purchaseID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotCancellable
		}

		refund, err = s.credit(ctx, tx, ledgerEntry{
			userID:     userID,
			amount:     purchase.ChargedPrice,
			reason:     fmt.Sprintf("Refund: cancelled %s", purchase.Phone),
			purchaseID: &purchase.ID,
		})
		return err
	})
	metrics.RecordWalletOperation("refund", err)
	if err != nil {
		if !errors.Is(err, ErrNotCancellable) {
			s.logger.Errorf("Failed to cancel purchase %s: %v", purchaseID, err)
		}
		return nil, err
	}

	s.logger.Infof("Purchase %s cancelled, refunded %s to user %s", purchaseID, purchase.ChargedPrice, userID)
	purchase.Status = models.PurchaseCancelled
	purchase.CanCancel = false
	s.notifyUser(ctx, userID, func(user *models.User) { s.notifier.PurchaseRefunded(user, purchase, refund.NewBalance) })

	return &CancelResult{PurchaseID: purchaseID, RefundAmount: purchase.ChargedPrice, NewBalance: refund.NewBalance}, nil
}

func (s *Service) ListPurchases(ctx context.Context, userID models.UserID, limit, offset int) ([]models.Purchase, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListPurchases(ctx, userID, limit, offset)
}

func (s *Service) getPurchase(ctx context.Context, userID models.UserID, id uuid.UUID) (*models.Purchase, error) {
	purchase, err := s.repo.GetPurchase(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, ErrPurchaseNotFound
	}
	return purchase, nil
}
