package handler

import (
	"context"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/Fi44er/otp_store/internal/pay0"
	"github.com/Fi44er/otp_store/internal/service"
	"github.com/Fi44er/otp_store/internal/smsman"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockStore struct{ mock.Mock }

func (m *MockStore) Signup(ctx context.Context, in service.SignupInput) (*models.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) Login(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) Transactions(ctx context.Context, userID models.UserID, limit, offset int) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func (m *MockStore) InitiateTopUp(ctx context.Context, userID models.UserID, amount decimal.Decimal) (*service.TopUp, error) {
	args := m.Called(ctx, userID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TopUp), args.Error(1)
}

func (m *MockStore) CheckPayment(ctx context.Context, userID models.UserID, orderID string) (*service.Outcome, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Outcome), args.Error(1)
}

func (m *MockStore) HandleNotification(ctx context.Context, n pay0.Notification) (*service.Outcome, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Outcome), args.Error(1)
}

func (m *MockStore) Countries(ctx context.Context) ([]smsman.Country, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]smsman.Country), args.Error(1)
}

func (m *MockStore) Catalog(ctx context.Context, countryID int) ([]service.Quote, error) {
	args := m.Called(ctx, countryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.Quote), args.Error(1)
}

func (m *MockStore) Purchase(ctx context.Context, userID models.UserID, serviceID, countryID int) (*models.Purchase, error) {
	args := m.Called(ctx, userID, serviceID, countryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Purchase), args.Error(1)
}

func (m *MockStore) PollSMS(ctx context.Context, userID models.UserID, purchaseID uuid.UUID) (*service.SMSResult, error) {
	args := m.Called(ctx, userID, purchaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SMSResult), args.Error(1)
}

func (m *MockStore) Cancel(ctx context.Context, userID models.UserID, purchaseID uuid.UUID) (*service.CancelResult, error) {
	args := m.Called(ctx, userID, purchaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CancelResult), args.Error(1)
}

func (m *MockStore) ListPurchases(ctx context.Context, userID models.UserID, limit, offset int) ([]models.Purchase, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Purchase), args.Error(1)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }
