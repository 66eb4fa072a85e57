package payment

import (
	"net/url"
	"strconv"

	"github.com/clinicdesk/paycore/internal/pkg/env"
)

// GatewayConfig identifies the clinic's receiving account at the transfer
// gateway. The QR image URL format is the gateway's contract; we only fill
// in account, bank, amount and the code as transfer description.
type GatewayConfig struct {
	Provider      string
	QRBaseURL     string
	AccountNumber string
	BankCode      string
}

// NewGatewayConfigFromEnv reads the gateway identifiers from the environment.
func NewGatewayConfigFromEnv() GatewayConfig {
	return GatewayConfig{
		Provider:      env.GetEnv("PAY_GATEWAY_PROVIDER", "sepay"),
		QRBaseURL:     env.GetEnv("PAY_GATEWAY_QR_URL", "https://qr.sepay.vn/img"),
		AccountNumber: env.GetEnv("PAY_GATEWAY_ACCOUNT", ""),
		BankCode:      env.GetEnv("PAY_GATEWAY_BANK", ""),
	}
}

// QRCodeURL builds the gateway QR reference for one charge session. The
// payment code rides in the transfer description; it is the only thing
// linking the anonymous incoming transfer back to the charge.
func (c GatewayConfig) QRCodeURL(amount int64, code string) string {
	q := url.Values{}
	q.Set("acc", c.AccountNumber)
	q.Set("bank", c.BankCode)
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("des", code)
	return c.QRBaseURL + "?" + q.Encode()
}
