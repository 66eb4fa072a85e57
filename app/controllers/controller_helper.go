package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/clinicdesk/paycore/internal/pkg/paycode"
	"github.com/clinicdesk/paycore/internal/pkg/payment"
)

var validate = validator.New()

// respondPaymentError maps the payment error taxonomy onto HTTP. Anything
// outside the taxonomy is an internal error and gets logged, not leaked.
func respondPaymentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, payment.ErrAppointmentNotFound),
		errors.Is(err, payment.ErrBillingNotFound),
		errors.Is(err, payment.ErrTransactionNotFound),
		errors.Is(err, paycode.ErrCodeNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": err.Error()})
	case errors.Is(err, payment.ErrAlreadyPaid):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": err.Error()})
	case errors.Is(err, payment.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": err.Error()})
	case errors.Is(err, payment.ErrAmountMismatch),
		errors.Is(err, payment.ErrCodeAlreadyUsed),
		errors.Is(err, payment.ErrCodeMissing),
		errors.Is(err, paycode.ErrCodeTooLong):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	case errors.Is(err, paycode.ErrGenerationExhausted):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "exhausted", "message": err.Error()})
	default:
		log.Errorf("payment request failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Unexpected error"})
	}
}
