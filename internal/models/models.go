package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TxTypeCredit = "credit"
	TxTypeDebit  = "debit"

	TxStatusCompleted = "completed"
)

const (
	PurchaseWaitingSMS = "waiting_sms"
	PurchaseCompleted  = "completed"
	PurchaseCancelled  = "cancelled"
)

const (
	HoldHeld     = "held"
	HoldCaptured = "captured"
	HoldReleased = "released"
)

const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentRejected  = "rejected"

	PaymentSourceInitiate = "initiate"
	PaymentSourceWebhook  = "webhook"
	PaymentSourcePoll     = "poll"
)

type User struct {
	ID           UserID          `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string          `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string          `gorm:"not null" json:"-"`
	Name         string          `json:"name"`
	Mobile       string          `json:"mobile"`
	Balance      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0;check:balance >= 0" json:"balance"`
	Held         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0;check:held >= 0 AND held <= balance" json:"held"`
	Active       bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Available is the part of the balance not reserved by open holds.
func (u *User) Available() decimal.Decimal {
	return u.Balance.Sub(u.Held)
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          UserID          `gorm:"type:uuid;not null;index" json:"user_id"`
	Type            string          `gorm:"size:16;not null" json:"type"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Reason          string          `json:"reason"`
	Status          string          `gorm:"size:16;not null;default:completed" json:"status"`
	OrderID         *string         `gorm:"uniqueIndex" json:"order_id,omitempty"`
	PurchaseID      *uuid.UUID      `gorm:"type:uuid;index" json:"purchase_id,omitempty"`
	PreviousBalance decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"previous_balance"`
	NewBalance      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"new_balance"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
}

type Purchase struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        UserID          `gorm:"type:uuid;not null;index" json:"user_id"`
	RequestID     string          `gorm:"not null;index" json:"request_id"`
	Phone         string          `gorm:"not null" json:"phone_number"`
	CountryID     int             `json:"country_id"`
	ServiceID     int             `json:"service_id"`
	ServiceName   string          `json:"service_name"`
	ChargedPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"charged_price"`
	OriginalPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"original_price"`
	Profit        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"profit"`
	Status        string          `gorm:"size:16;not null;index" json:"status"`
	SMSCode       *string         `json:"sms_code,omitempty"`
	CanCancel     bool            `gorm:"not null" json:"can_cancel"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
}

// Hold reserves part of a user's balance while a number is being acquired.
type Hold struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    UserID          `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Reason    string          `json:"reason"`
	Status    string          `gorm:"size:16;not null;index" json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Payment tracks a gateway order from initiation to its terminal state.
type Payment struct {
	OrderID       string          `gorm:"primaryKey" json:"order_id"`
	UserID        UserID          `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status        string          `gorm:"size:16;not null" json:"status"`
	Source        string          `gorm:"size:16" json:"source"`
	GatewayStatus string          `json:"gateway_status"`
	TransactionID *uuid.UUID      `gorm:"type:uuid" json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
