package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeRepo is an in-memory Repository. InTransaction serializes callers,
// refuses a cancelled context like BeginTx does and restores a snapshot when
// fn fails, so it behaves like a real transaction for code that only writes
// through InTransaction.
type fakeRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users    map[models.UserID]models.User
	txns     []models.Transaction
	holds    map[uuid.UUID]models.Hold
	purchase map[uuid.UUID]models.Purchase
	payments map[string]models.Payment

	failCreatePurchase error
}

type fakeSnapshot struct {
	users    map[models.UserID]models.User
	txns     []models.Transaction
	holds    map[uuid.UUID]models.Hold
	purchase map[uuid.UUID]models.Purchase
	payments map[string]models.Payment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:    make(map[models.UserID]models.User),
		holds:    make(map[uuid.UUID]models.Hold),
		purchase: make(map[uuid.UUID]models.Purchase),
		payments: make(map[string]models.Payment),
	}
}

func (f *fakeRepo) addUser(balance int64) models.UserID {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := models.NewUserID()
	bal := decimal.NewFromInt(balance)
	f.users[id] = models.User{ID: id, Email: id.String()[:8] + "@example.com", Balance: bal, Active: true}
	if balance > 0 {
		f.txns = append(f.txns, models.Transaction{
			ID: uuid.New(), UserID: id, Type: models.TxTypeCredit, Amount: bal,
			Status: models.TxStatusCompleted, NewBalance: bal, CreatedAt: time.Now(),
		})
	}
	return id
}

func (f *fakeRepo) user(id models.UserID) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

func (f *fakeRepo) ledgerFor(id models.UserID) []models.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transaction
	for _, t := range f.txns {
		if t.UserID == id {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeRepo) snapshot() fakeSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := fakeSnapshot{
		users:    make(map[models.UserID]models.User, len(f.users)),
		txns:     append([]models.Transaction(nil), f.txns...),
		holds:    make(map[uuid.UUID]models.Hold, len(f.holds)),
		purchase: make(map[uuid.UUID]models.Purchase, len(f.purchase)),
		payments: make(map[string]models.Payment, len(f.payments)),
	}
	for k, v := range f.users {
		s.users[k] = v
	}
	for k, v := range f.holds {
		s.holds[k] = v
	}
	for k, v := range f.purchase {
		s.purchase[k] = v
	}
	for k, v := range f.payments {
		s.payments[k] = v
	}
	return s
}

func (f *fakeRepo) restore(s fakeSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users, f.txns, f.holds, f.purchase, f.payments = s.users, s.txns, s.holds, s.purchase, s.payments
}

func (f *fakeRepo) InTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.txMu.Lock()
	defer f.txMu.Unlock()

	snap := f.snapshot()
	if err := fn(nil); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

// InSnapshot holds txMu so no write lands between the reads of fn.
func (f *fakeRepo) InSnapshot(ctx context.Context, fn func(tx *gorm.DB) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	return fn(nil)
}

func (f *fakeRepo) CreateUser(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	f.users[user.ID] = *user
	return nil
}

func (f *fakeRepo) GetUser(ctx context.Context, id models.UserID, tx *gorm.DB) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) SetUserActive(ctx context.Context, id models.UserID, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Active = active
	f.users[id] = u
	return nil
}

func (f *fakeRepo) IncrementBalance(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return decimal.Zero, false, nil
	}
	u.Balance = u.Balance.Add(amount)
	f.users[id] = u
	return u.Balance, true, nil
}

func (f *fakeRepo) DecrementBalance(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.Available().LessThan(amount) {
		return decimal.Zero, false, nil
	}
	u.Balance = u.Balance.Sub(amount)
	f.users[id] = u
	return u.Balance, true, nil
}

func (f *fakeRepo) AddHeld(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.Available().LessThan(amount) {
		return false, nil
	}
	u.Held = u.Held.Add(amount)
	f.users[id] = u
	return true, nil
}

func (f *fakeRepo) CaptureHeld(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.Held.LessThan(amount) {
		return decimal.Zero, false, nil
	}
	u.Balance = u.Balance.Sub(amount)
	u.Held = u.Held.Sub(amount)
	f.users[id] = u
	return u.Balance, true, nil
}

func (f *fakeRepo) ReleaseHeld(ctx context.Context, tx *gorm.DB, id models.UserID, amount decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.Held.LessThan(amount) {
		return false, nil
	}
	u.Held = u.Held.Sub(amount)
	f.users[id] = u
	return true, nil
}

func (f *fakeRepo) CreateTransaction(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if txn.OrderID != nil {
		for _, t := range f.txns {
			if t.OrderID != nil && *t.OrderID == *txn.OrderID {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	f.txns = append(f.txns, *txn)
	return nil
}

func (f *fakeRepo) GetTransactionByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.txns {
		if t.OrderID != nil && *t.OrderID == orderID {
			return &t, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ListTransactions(ctx context.Context, userID models.UserID, limit, offset int) ([]models.Transaction, error) {
	out := f.ledgerFor(userID)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) SumLedger(ctx context.Context, tx *gorm.DB, userID models.UserID) (decimal.Decimal, decimal.Decimal, error) {
	credits, debits := decimal.Zero, decimal.Zero
	for _, t := range f.ledgerFor(userID) {
		if t.Type == models.TxTypeCredit {
			credits = credits.Add(t.Amount)
		} else {
			debits = debits.Add(t.Amount)
		}
	}
	return credits, debits, nil
}

func (f *fakeRepo) CreateHold(ctx context.Context, tx *gorm.DB, hold *models.Hold) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holds[hold.ID] = *hold
	return nil
}

func (f *fakeRepo) GetHold(ctx context.Context, id uuid.UUID, tx *gorm.DB) (*models.Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (f *fakeRepo) TransitionHold(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok || h.Status != from {
		return false, nil
	}
	h.Status = to
	f.holds[id] = h
	return true, nil
}

func (f *fakeRepo) SumOpenHolds(ctx context.Context, tx *gorm.DB, userID models.UserID) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, h := range f.holds {
		if h.UserID == userID && h.Status == models.HoldHeld {
			sum = sum.Add(h.Amount)
		}
	}
	return sum, nil
}

func (f *fakeRepo) CreatePurchase(ctx context.Context, tx *gorm.DB, p *models.Purchase) error {
	if f.failCreatePurchase != nil {
		return f.failCreatePurchase
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purchase[p.ID] = *p
	return nil
}

func (f *fakeRepo) GetPurchase(ctx context.Context, userID models.UserID, id uuid.UUID) (*models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.purchase[id]
	if !ok || p.UserID != userID {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeRepo) ListPurchases(ctx context.Context, userID models.UserID, limit, offset int) ([]models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Purchase
	for _, p := range f.purchase {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) CompletePurchase(ctx context.Context, id uuid.UUID, code string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.purchase[id]
	if !ok || p.Status != models.PurchaseWaitingSMS || p.SMSCode != nil {
		return false, nil
	}
	p.SMSCode = &code
	p.Status = models.PurchaseCompleted
	p.CanCancel = false
	p.CompletedAt = &at
	f.purchase[id] = p
	return true, nil
}

func (f *fakeRepo) CancelPurchase(ctx context.Context, tx *gorm.DB, userID models.UserID, id uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.purchase[id]
	if !ok || p.UserID != userID || p.Status != models.PurchaseWaitingSMS || !p.CanCancel {
		return false, nil
	}
	p.Status = models.PurchaseCancelled
	p.CanCancel = false
	p.CancelledAt = &at
	f.purchase[id] = p
	return true, nil
}

func (f *fakeRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.payments[payment.OrderID]; ok {
		return gorm.ErrDuplicatedKey
	}
	f.payments[payment.OrderID] = *payment
	return nil
}

func (f *fakeRepo) GetPayment(ctx context.Context, orderID string, tx *gorm.DB) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[orderID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeRepo) SavePayment(ctx context.Context, tx *gorm.DB, payment *models.Payment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.payments[payment.OrderID]; ok && existing.Status != models.PaymentPending {
		return false, nil
	}
	f.payments[payment.OrderID] = *payment
	return true, nil
}
