package payment

import "errors"

// One sentinel per failure class. Callers branch with errors.Is; the HTTP
// layer owns the status-code mapping. This core never retries on its own:
// the gateway owns webhook redelivery and the patient owns re-initiating a
// charge.
var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrBillingNotFound     = errors.New("billing not found")
	ErrTransactionNotFound = errors.New("pending transaction not found")
	ErrAlreadyPaid         = errors.New("billing already paid")
	ErrForbidden           = errors.New("actor does not own this appointment")
	ErrAmountMismatch      = errors.New("transfer amount does not match transaction amount")
	ErrCodeAlreadyUsed     = errors.New("payment code already used")
	ErrCodeMissing         = errors.New("no payment code in transfer content")
)
