package payment

import "time"

// ChargeSession is what a successful CreateCharge hands back to the caller:
// everything the client needs to render the QR and poll for completion.
type ChargeSession struct {
	AppointmentID uint      `json:"appointment_id"`
	TransactionID uint      `json:"transaction_id"`
	Reference     string    `json:"reference"`
	Amount        int64     `json:"amount"`
	PaymentCode   string    `json:"payment_code"`
	QRCodeURL     string    `json:"qr_code_url"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// WebhookEvent is the normalized gateway notification for one incoming
// bank transfer. Content is free text; the payment code is buried in it.
type WebhookEvent struct {
	ID              int64     `json:"id"`
	Gateway         string    `json:"gateway"`
	TransactionDate string    `json:"transactionDate"`
	AccountNumber   string    `json:"accountNumber"`
	SubAccount      string    `json:"subAccount,omitempty"`
	TransferType    string    `json:"transferType"`
	TransferAmount  int64     `json:"transferAmount"`
	Accumulated     int64     `json:"accumulated"`
	Code            string    `json:"code,omitempty"`
	Content         string    `json:"content"`
	Description     string    `json:"description"`
	ReferenceCode   string    `json:"referenceCode,omitempty"`
	ReceivedAt      time.Time `json:"-"`
}

// WebhookResult acknowledges an applied payment back to the gateway.
type WebhookResult struct {
	Success       bool `json:"success"`
	TransactionID uint `json:"transactionId"`
}

// Status is the trivial read model over Billing.
type Status struct {
	IsPaid        bool   `json:"isPaid"`
	PaymentStatus string `json:"paymentStatus"`
}
