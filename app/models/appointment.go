package models

import "time"

const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusPaid     = "PAID"
	PaymentStatusRefunded = "REFUNDED"
)

// Appointment is the booking record this core hangs payment state off.
// Scheduling, rescheduling and the rest of its lifecycle belong to the
// appointment service; this core only ever touches PaymentStatus.
type Appointment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PatientID     uint      `gorm:"not null;index" json:"patient_id"`
	ScheduledAt   time.Time `gorm:"type:timestamp;not null" json:"scheduled_at"`
	PaymentStatus string    `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"payment_status"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
