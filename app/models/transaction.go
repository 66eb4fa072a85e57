package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	TransactionStatusPending = "PENDING"
	TransactionStatusSuccess = "SUCCESS"
	TransactionStatusFailed  = "FAILED"
)

// Transaction records one payment attempt against a billing. A billing has
// at most one PENDING transaction at any time; SUCCESS and FAILED are
// terminal and the row is immutable once it reaches either.
type Transaction struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	BillingID             uint      `gorm:"not null;index" json:"billing_id" validate:"required"`
	Reference             string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"reference" validate:"required,uuid4"`
	Amount                int64     `gorm:"not null" json:"amount" validate:"gt=0"`
	Status                string    `gorm:"type:varchar(16);not null;default:'PENDING';index:idx_transactions_billing_status" json:"status" validate:"oneof=PENDING SUCCESS FAILED"`
	Provider              string    `gorm:"type:varchar(50);not null" json:"provider"`
	ProviderTransactionID string    `gorm:"type:varchar(191);default:null;index" json:"provider_transaction_id"`
	ProviderMessage       string    `gorm:"type:text" json:"provider_message"`
	RawWebhookPayload     string    `gorm:"type:longtext" json:"-"`
	CreatedAt             time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Transaction) Validate() error {
	v := validator.New()

	return v.Struct(t)
}
