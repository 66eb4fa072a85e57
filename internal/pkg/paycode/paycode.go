package paycode

import (
	"context"
	"errors"
	"time"
)

// CodeLength is the fixed decimal length of a payment code. The gateway
// matches incoming transfers by finding this many consecutive digits in the
// free-text transfer description.
const CodeLength = 10

var (
	// ErrCodeNotFound is returned when a code is absent from the store:
	// cancelled, evicted by TTL, or never issued.
	ErrCodeNotFound = errors.New("payment code not found")
	// ErrCodeTooLong is returned when an appointment id has too many
	// decimal digits to leave room for any random suffix.
	ErrCodeTooLong = errors.New("appointment id too long for payment code")
	// ErrGenerationExhausted is returned when the collision-retry budget
	// runs out without finding a free code.
	ErrGenerationExhausted = errors.New("payment code generation exhausted")
)

// PaymentCode is the ephemeral cache record behind one charge session.
// It never touches the durable ledger; the code string itself is the key.
type PaymentCode struct {
	BillingID     uint      `json:"billing_id"`
	AppointmentID uint      `json:"appointment_id"`
	Amount        int64     `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	IsUsed        bool      `json:"is_used"`
}

// Store is the ephemeral code cache. It is owned by a foreign service
// (Redis in production); the core only depends on this interface so it can
// run against the in-memory implementation in tests and local dev.
//
// MarkUsed is the serialization point between a webhook and a concurrent
// cancel or re-delivered event: exactly one caller wins the claim.
type Store interface {
	Get(ctx context.Context, code string) (*PaymentCode, error)
	// GetByAppointment resolves the active code for an appointment, if any.
	// At most one code is active per appointment at any time.
	GetByAppointment(ctx context.Context, appointmentID uint) (string, *PaymentCode, error)
	Set(ctx context.Context, code string, pc PaymentCode, ttl time.Duration) error
	Delete(ctx context.Context, code string) error
	Exists(ctx context.Context, code string) (bool, error)
	// MarkUsed atomically claims the code for ledger application. It
	// returns false when another caller already holds the claim, and
	// ErrCodeNotFound when the code has been removed or evicted.
	MarkUsed(ctx context.Context, code string) (bool, error)
	// ReleaseUse undoes a MarkUsed claim after a failed ledger write so a
	// redelivered webhook can retry.
	ReleaseUse(ctx context.Context, code string) error
}
