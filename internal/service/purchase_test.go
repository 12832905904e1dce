package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/Fi44er/otp_store/internal/smsman"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testService = 5
	testCountry = 91
)

func (env *testEnv) priceAt(cost string) {
	env.agg.On("Price", mock.Anything, testService, testCountry).
		Return(&smsman.Service{ID: testService, Name: "WhatsApp", CountryID: testCountry, Cost: dec(cost)}, nil)
}

func (env *testEnv) buy(t *testing.T, userID models.UserID, requestID string) *models.Purchase {
	t.Helper()
	env.agg.On("Acquire", mock.Anything, testService, testCountry).
		Return(&smsman.Number{RequestID: requestID, Phone: "9876543210"}, nil).Once()
	p, err := env.svc.Purchase(context.Background(), userID, testService, testCountry)
	require.NoError(t, err)
	return p
}

func TestPurchaseThenCancelRefundsExactly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.repo.addUser(100)
	env.priceAt("35.30")

	p := env.buy(t, userID, "req-1")
	assert.Equal(t, "60.01", p.ChargedPrice.String())
	assert.Equal(t, "35.3", p.OriginalPrice.String())
	assert.Equal(t, "24.71", p.Profit.String())
	assert.Equal(t, models.PurchaseWaitingSMS, p.Status)
	assert.True(t, p.CanCancel)
	assert.Equal(t, "+919876543210", p.Phone)

	u := env.repo.user(userID)
	assert.Equal(t, "39.99", u.Balance.String())
	assert.True(t, u.Held.IsZero())

	ledger := env.repo.ledgerFor(userID)
	require.Len(t, ledger, 2)
	require.NotNil(t, ledger[1].PurchaseID)
	assert.Equal(t, p.ID, *ledger[1].PurchaseID)

	res, err := env.svc.Cancel(ctx, userID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "60.01", res.RefundAmount.String())
	assert.Equal(t, "100", res.NewBalance.String())

	stored, err := env.repo.GetPurchase(ctx, userID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseCancelled, stored.Status)
	assert.False(t, stored.CanCancel)

	_, err = env.svc.Cancel(ctx, userID, p.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, "100", env.repo.user(userID).Balance.String())

	assert.Equal(t, []string{"+919876543210"}, env.notifier.purchases)
	assert.Equal(t, []string{"+919876543210"}, env.notifier.refunds)
	assertReconciled(t, env, userID)
}

func TestPurchaseSurvivesClientGoingAway(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	userID := env.repo.addUser(100)
	env.priceAt("35.30")
	env.agg.On("Acquire", mock.Anything, testService, testCountry).
		Run(func(mock.Arguments) { cancel() }).
		Return(&smsman.Number{RequestID: "req-gone", Phone: "9876543210"}, nil).Once()

	p, err := env.svc.Purchase(ctx, userID, testService, testCountry)
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.Equal(t, "req-gone", p.RequestID)
	assert.Equal(t, "WhatsApp", p.ServiceName)

	stored, err := env.repo.GetPurchase(context.Background(), userID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.PurchaseWaitingSMS, stored.Status)

	u := env.repo.user(userID)
	assert.Equal(t, "39.99", u.Balance.String())
	assert.True(t, u.Held.IsZero())

	ledger := env.repo.ledgerFor(userID)
	require.Len(t, ledger, 2)
	assert.Equal(t, models.TxTypeDebit, ledger[1].Type)
	assert.Equal(t, "60.01", ledger[1].Amount.String())
	assert.Equal(t, []string{"+919876543210"}, env.notifier.purchases)
	assertReconciled(t, env, userID)
}

func TestPurchaseScenarioBalance100Price60(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.repo.addUser(100)
	env.svc.config.MarkupMultiplier = 1
	env.priceAt("60")

	p := env.buy(t, userID, "req-60")
	assert.Equal(t, "40", env.repo.user(userID).Balance.String())

	_, err := env.svc.Cancel(ctx, userID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", env.repo.user(userID).Balance.String())
}

func TestPurchaseInsufficientBalanceSkipsAggregator(t *testing.T) {
	env := newTestEnv(t)
	userID := env.repo.addUser(10)
	env.priceAt("35.30")

	_, err := env.svc.Purchase(context.Background(), userID, testService, testCountry)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	env.agg.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)

	u := env.repo.user(userID)
	assert.Equal(t, "10", u.Balance.String())
	assert.True(t, u.Held.IsZero())
	assert.Len(t, env.repo.ledgerFor(userID), 1)
}

func TestPurchasePricingUnavailable(t *testing.T) {
	env := newTestEnv(t)
	userID := env.repo.addUser(100)
	env.agg.On("Price", mock.Anything, testService, testCountry).Return(nil, smsman.ErrNoPrice)

	_, err := env.svc.Purchase(context.Background(), userID, testService, testCountry)
	assert.ErrorIs(t, err, ErrPricingUnavailable)
	assert.Equal(t, "100", env.repo.user(userID).Balance.String())
}

func TestPurchaseAcquisitionFailureMovesNoMoney(t *testing.T) {
	env := newTestEnv(t)
	userID := env.repo.addUser(100)
	env.priceAt("10")
	env.agg.On("Acquire", mock.Anything, testService, testCountry).
		Return(nil, &smsman.APIError{Code: "no_numbers", Message: "no free numbers"})

	_, err := env.svc.Purchase(context.Background(), userID, testService, testCountry)
	assert.ErrorIs(t, err, ErrAcquisitionFailed)

	u := env.repo.user(userID)
	assert.Equal(t, "100", u.Balance.String())
	assert.True(t, u.Held.IsZero())
	assert.Len(t, env.repo.ledgerFor(userID), 1)
	assertReconciled(t, env, userID)
}

func TestPurchaseCaptureFailureReleasesHold(t *testing.T) {
	env := newTestEnv(t)
	userID := env.repo.addUser(100)
	env.priceAt("10")
	env.repo.failCreatePurchase = errors.New("disk full")
	env.agg.On("Acquire", mock.Anything, testService, testCountry).
		Return(&smsman.Number{RequestID: "leaked", Phone: "+15550001111"}, nil)

	_, err := env.svc.Purchase(context.Background(), userID, testService, testCountry)
	require.Error(t, err)

	u := env.repo.user(userID)
	assert.Equal(t, "100", u.Balance.String())
	assert.True(t, u.Held.IsZero())
	assertReconciled(t, env, userID)
}

func TestPollSMSRecordsFirstCodeOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.repo.addUser(100)
	env.priceAt("10")
	p := env.buy(t, userID, "req-sms")

	env.agg.On("PollCode", mock.Anything, "req-sms").Return("", nil).Once()
	res, err := env.svc.PollSMS(ctx, userID, p.ID)
	require.NoError(t, err)
	assert.False(t, res.Received)

	env.agg.On("PollCode", mock.Anything, "req-sms").Return("482913", nil).Once()
	res, err = env.svc.PollSMS(ctx, userID, p.ID)
	require.NoError(t, err)
	require.True(t, res.Received)
	assert.Equal(t, "482913", *res.Code)
	assert.Equal(t, models.PurchaseCompleted, res.Status)

	// Cached: no further aggregator calls are mocked, so a call would panic.
	res, err = env.svc.PollSMS(ctx, userID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "482913", *res.Code)
	env.agg.AssertNumberOfCalls(t, "PollCode", 2)

	_, err = env.svc.Cancel(ctx, userID, p.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, "83", env.repo.user(userID).Balance.String())
	assertReconciled(t, env, userID)
}

func TestPollSMSAfterCancelSkipsAggregator(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.repo.addUser(100)
	env.priceAt("10")
	p := env.buy(t, userID, "req-c")

	_, err := env.svc.Cancel(ctx, userID, p.ID)
	require.NoError(t, err)

	res, err := env.svc.PollSMS(ctx, userID, p.ID)
	require.NoError(t, err)
	assert.False(t, res.Received)
	assert.Equal(t, models.PurchaseCancelled, res.Status)
	env.agg.AssertNotCalled(t, "PollCode", mock.Anything, mock.Anything)
}

func TestPurchaseOfAnotherUserIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.repo.addUser(100)
	other := env.repo.addUser(100)
	env.priceAt("10")
	p := env.buy(t, owner, "req-o")

	_, err := env.svc.Cancel(ctx, other, p.ID)
	assert.ErrorIs(t, err, ErrPurchaseNotFound)
	_, err = env.svc.PollSMS(ctx, other, uuid.New())
	assert.ErrorIs(t, err, ErrPurchaseNotFound)
}

func TestCatalogAppliesMarkup(t *testing.T) {
	env := newTestEnv(t)
	env.agg.On("Services", mock.Anything, testCountry).Return([]smsman.Service{
		{ID: 1, Name: "Telegram", CountryID: testCountry, Cost: dec("10"), Count: 4},
	}, nil)

	quotes, err := env.svc.Catalog(context.Background(), testCountry)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "17", quotes[0].Price.String())
	assert.Equal(t, "7", quotes[0].Profit.String())
	assert.Equal(t, 4, quotes[0].Available)
}
