package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Fi44er/otp_store/config"
	"github.com/Fi44er/otp_store/internal/models"
	"github.com/Fi44er/otp_store/internal/pay0"
	"github.com/Fi44er/otp_store/internal/smsman"
	"github.com/Fi44er/otp_store/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockAggregator struct{ mock.Mock }

func (m *MockAggregator) Countries(ctx context.Context) ([]smsman.Country, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]smsman.Country), args.Error(1)
}

func (m *MockAggregator) Services(ctx context.Context, countryID int) ([]smsman.Service, error) {
	args := m.Called(ctx, countryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]smsman.Service), args.Error(1)
}

func (m *MockAggregator) Price(ctx context.Context, serviceID, countryID int) (*smsman.Service, error) {
	args := m.Called(ctx, serviceID, countryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*smsman.Service), args.Error(1)
}

func (m *MockAggregator) Acquire(ctx context.Context, serviceID, countryID int) (*smsman.Number, error) {
	args := m.Called(ctx, serviceID, countryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*smsman.Number), args.Error(1)
}

func (m *MockAggregator) PollCode(ctx context.Context, requestID string) (string, error) {
	args := m.Called(ctx, requestID)
	return args.String(0), args.Error(1)
}

type MockGateway struct{ mock.Mock }

func (m *MockGateway) CreateOrder(ctx context.Context, req pay0.OrderRequest) (*pay0.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pay0.Order), args.Error(1)
}

func (m *MockGateway) CheckOrderStatus(ctx context.Context, orderID string) (*pay0.OrderStatus, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pay0.OrderStatus), args.Error(1)
}

type recordingNotifier struct {
	mu        sync.Mutex
	topUps    []string
	purchases []string
	refunds   []string
}

func (n *recordingNotifier) TopUpConfirmed(user *models.User, orderID string, amount, newBalance decimal.Decimal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topUps = append(n.topUps, orderID)
}

func (n *recordingNotifier) NumberPurchased(user *models.User, purchase *models.Purchase) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.purchases = append(n.purchases, purchase.Phone)
}

func (n *recordingNotifier) PurchaseRefunded(user *models.User, purchase *models.Purchase, newBalance decimal.Decimal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refunds = append(n.refunds, purchase.Phone)
}

type testEnv struct {
	svc      *Service
	repo     *fakeRepo
	agg      *MockAggregator
	gw       *MockGateway
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		MarkupMultiplier: 1.70,
		MinTopUp:         50,
		MaxTopUp:         5000,
		AcquireTimeout:   time.Second,
		PollTimeout:      time.Second,
		ReturnURL:        "https://brandotp.example/payment-status.html",
	}
	env := &testEnv{
		repo:     newFakeRepo(),
		agg:      &MockAggregator{},
		gw:       &MockGateway{},
		notifier: &recordingNotifier{},
	}
	env.svc = NewService(env.repo, env.agg, env.gw, cfg, utils.NewNopLogger())
	env.svc.SetNotifier(env.notifier)
	return env
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
