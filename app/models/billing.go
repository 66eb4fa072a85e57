package models

import "time"

const (
	PaymentMethodOnline = "online"
	PaymentMethodCash   = "cash"
)

// Billing is the charge owed for one appointment. Amounts are integers in
// the currency's minor unit. Created at booking time by the appointment
// service; mutated only by this core or manual staff action; never deleted.
type Billing struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AppointmentID uint      `gorm:"not null;uniqueIndex" json:"appointment_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Status        string    `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	PaymentMethod string    `gorm:"type:varchar(16);default:null" json:"payment_method"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPaid reports whether the billing reached its terminal paid state.
func (b *Billing) IsPaid() bool {
	return b.Status == PaymentStatusPaid
}
