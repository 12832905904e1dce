package service

import (
	"context"
	"errors"
	"time"

	"github.com/Fi44er/otp_store/config"
	"github.com/Fi44er/otp_store/internal/models"
	"github.com/Fi44er/otp_store/internal/pay0"
	"github.com/Fi44er/otp_store/internal/smsman"
	"github.com/Fi44er/otp_store/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrUserNotFound          = errors.New("user not found")
	ErrUserInactive          = errors.New("user is inactive")
	ErrUserExists            = errors.New("user already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrPricingUnavailable    = errors.New("pricing unavailable")
	ErrAcquisitionFailed     = errors.New("number acquisition failed")
	ErrNotCancellable        = errors.New("purchase cannot be cancelled")
	ErrPurchaseNotFound      = errors.New("purchase not found")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
	ErrMalformedNotification = errors.New("malformed payment notification")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrHoldNotActive         = errors.New("hold is not active")
)

type Repository interface {
	InTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	InSnapshot(ctx context.Context, fn func(tx *gorm.DB) error) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id models.UserID, tx *gorm.DB) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetUserActive(ctx context.Context, id models.UserID, active bool) error

	IncrementBalance(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (decimal.Decimal, bool, error)
	DecrementBalance(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (decimal.Decimal, bool, error)
	AddHeld(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (bool, error)
	CaptureHeld(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (decimal.Decimal, bool, error)
	ReleaseHeld(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (bool, error)

	CreateTransaction(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error
	GetTransactionByOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID models.UserID, limit, offset int) ([]models.Transaction, error)
	SumLedger(ctx context.Context, tx *gorm.DB, userID models.UserID) (credits, debits decimal.Decimal, err error)

	CreateHold(ctx context.Context, tx *gorm.DB, hold *models.Hold) error
	GetHold(ctx context.Context, id uuid.UUID, tx *gorm.DB) (*models.Hold, error)
	TransitionHold(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to string) (bool, error)
	SumOpenHolds(ctx context.Context, tx *gorm.DB, userID models.UserID) (decimal.Decimal, error)

	CreatePurchase(ctx context.Context, tx *gorm.DB, purchase *models.Purchase) error
	GetPurchase(ctx context.Context, userID models.UserID, id uuid.UUID) (*models.Purchase, error)
	ListPurchases(ctx context.Context, userID models.UserID, limit, offset int) ([]models.Purchase, error)
	CompletePurchase(ctx context.Context, id uuid.UUID, code string, at time.Time) (bool, error)
	CancelPurchase(ctx context.Context, tx *gorm.DB, userID models.UserID, id uuid.UUID, at time.Time) (bool, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, orderID string, tx *gorm.DB) (*models.Payment, error)
	SavePayment(ctx context.Context, tx *gorm.DB, payment *models.Payment) (bool, error)
}

// Aggregator is the virtual number provider.
type Aggregator interface {
	Countries(ctx context.Context) ([]smsman.Country, error)
	Services(ctx context.Context, countryID int) ([]smsman.Service, error)
	Price(ctx context.Context, serviceID, countryID int) (*smsman.Service, error)
	Acquire(ctx context.Context, serviceID, countryID int) (*smsman.Number, error)
	PollCode(ctx context.Context, requestID string) (string, error)
}

// Gateway is the payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, req pay0.OrderRequest) (*pay0.Order, error)
	CheckOrderStatus(ctx context.Context, orderID string) (*pay0.OrderStatus, error)
}

// Notifier receives business events. Failures are the notifier's problem.
type Notifier interface {
	TopUpConfirmed(user *models.User, orderID string, amount, newBalance decimal.Decimal)
	NumberPurchased(user *models.User, purchase *models.Purchase)
	PurchaseRefunded(user *models.User, purchase *models.Purchase, newBalance decimal.Decimal)
}

type Service struct {
	repo       Repository
	aggregator Aggregator
	gateway    Gateway
	notifier   Notifier
	logger     *utils.Logger
	config     *config.Config
	now        func() time.Time
}

func NewService(repo Repository, aggregator Aggregator, gateway Gateway, cfg *config.Config, logger *utils.Logger) *Service {
	return &Service{
		repo:       repo,
		aggregator: aggregator,
		gateway:    gateway,
		logger:     logger,
		config:     cfg,
		now:        time.Now,
	}
}

// SetNotifier attaches the admin notifier. nil disables notifications.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// notifyUser loads the user for a notification, skipping silently when that fails.
func (s *Service) notifyUser(ctx context.Context, id models.UserID, fn func(user *models.User)) {
	if s.notifier == nil {
		return
	}
	user, err := s.repo.GetUser(ctx, id, nil)
	if err != nil || user == nil {
		s.logger.Warnf("Skipping notification for user %s: %v", id, err)
		return
	}
	fn(user)
}
