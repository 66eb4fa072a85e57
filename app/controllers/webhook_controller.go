package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/clinicdesk/paycore/internal/pkg/payment"
)

type webhookRequest struct {
	ID              int64  `json:"id" validate:"required"`
	Gateway         string `json:"gateway" validate:"required"`
	TransactionDate string `json:"transactionDate"`
	AccountNumber   string `json:"accountNumber"`
	SubAccount      string `json:"subAccount"`
	TransferType    string `json:"transferType"`
	TransferAmount  int64  `json:"transferAmount" validate:"required,gt=0"`
	Accumulated     int64  `json:"accumulated"`
	Code            string `json:"code"`
	Content         string `json:"content" validate:"required"`
	Description     string `json:"description"`
	ReferenceCode   string `json:"referenceCode"`
}

// HandlePaymentWebhook reconciles one incoming bank-transfer notification.
// The gateway retries on non-2xx, so every taxonomy failure must come back
// with a definitive status: a redelivered event gets 400 (already used),
// never a retryable 5xx.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	var req webhookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Cannot parse webhook payload"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing required webhook fields"})
	}

	event := payment.WebhookEvent{
		ID:              req.ID,
		Gateway:         req.Gateway,
		TransactionDate: req.TransactionDate,
		AccountNumber:   req.AccountNumber,
		SubAccount:      req.SubAccount,
		TransferType:    req.TransferType,
		TransferAmount:  req.TransferAmount,
		Accumulated:     req.Accumulated,
		Code:            req.Code,
		Content:         req.Content,
		Description:     req.Description,
		ReferenceCode:   req.ReferenceCode,
		ReceivedAt:      time.Now(),
	}

	result, err := getPaymentService().HandleWebhook(c.Context(), event)
	if err != nil {
		log.Warnf("webhook rejected: gateway_id=%d err=%v", req.ID, err)
		return respondPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"success": result.Success, "transactionId": result.TransactionID})
}
