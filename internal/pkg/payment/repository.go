package payment

import (
	"gorm.io/gorm"

	"github.com/clinicdesk/paycore/app/models"
)

// Repository provides the ledger operations used by the payment service.
type Repository interface {
	GetAppointment(id uint) (*models.Appointment, error)
	GetBilling(id uint) (*models.Billing, error)
	GetBillingByAppointmentID(appointmentID uint) (*models.Billing, error)
	UpdateBillingForCharge(billingID uint, amount int64, paymentMethod string) error
	CreateTransaction(txn *models.Transaction) error
	GetPendingTransactionByBillingID(billingID uint) (*models.Transaction, error)
	FailPendingTransactions(billingID uint, providerMessage string) error
	ApplyPayment(in ApplyPaymentInput) error
}

// ApplyPaymentInput carries the three-record mutation of a matched
// transfer. It must be applied inside one durable transaction boundary.
type ApplyPaymentInput struct {
	TransactionID         uint
	BillingID             uint
	AppointmentID         uint
	Provider              string
	ProviderTransactionID string
	ProviderMessage       string
	RawWebhookPayload     string
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetAppointment(id uint) (*models.Appointment, error) {
	var a models.Appointment
	if err := r.db.First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *gormRepository) GetBilling(id uint) (*models.Billing, error) {
	var b models.Billing
	if err := r.db.First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *gormRepository) GetBillingByAppointmentID(appointmentID uint) (*models.Billing, error) {
	var b models.Billing
	if err := r.db.Where("appointment_id = ?", appointmentID).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *gormRepository) UpdateBillingForCharge(billingID uint, amount int64, paymentMethod string) error {
	return r.db.Model(&models.Billing{}).Where("id = ?", billingID).Updates(map[string]interface{}{
		"amount":         amount,
		"payment_method": paymentMethod,
	}).Error
}

func (r *gormRepository) CreateTransaction(txn *models.Transaction) error {
	return r.db.Create(txn).Error
}

func (r *gormRepository) GetPendingTransactionByBillingID(billingID uint) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.
		Where("billing_id = ? AND status = ?", billingID, models.TransactionStatusPending).
		Order("created_at DESC").
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *gormRepository) FailPendingTransactions(billingID uint, providerMessage string) error {
	return r.db.Model(&models.Transaction{}).
		Where("billing_id = ? AND status = ?", billingID, models.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":           models.TransactionStatusFailed,
			"provider_message": providerMessage,
		}).Error
}

// ApplyPayment flips Transaction, Billing and Appointment to their paid
// states in one DB transaction. Partial application would leave the ledger
// claiming money it never matched, so all three writes commit or none do.
func (r *gormRepository) ApplyPayment(in ApplyPaymentInput) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Transaction{}).
			Where("id = ? AND status = ?", in.TransactionID, models.TransactionStatusPending).
			Updates(map[string]interface{}{
				"status":                  models.TransactionStatusSuccess,
				"provider":                in.Provider,
				"provider_transaction_id": in.ProviderTransactionID,
				"provider_message":        in.ProviderMessage,
				"raw_webhook_payload":     in.RawWebhookPayload,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Model(&models.Billing{}).
			Where("id = ?", in.BillingID).
			Update("status", models.PaymentStatusPaid).Error; err != nil {
			return err
		}

		return tx.Model(&models.Appointment{}).
			Where("id = ?", in.AppointmentID).
			Update("payment_status", models.PaymentStatusPaid).Error
	})
}
