package controllers

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/clinicdesk/paycore/internal/pkg/cache"
	"github.com/clinicdesk/paycore/internal/pkg/database"
	"github.com/clinicdesk/paycore/internal/pkg/middleware"
	"github.com/clinicdesk/paycore/internal/pkg/paycode"
	"github.com/clinicdesk/paycore/internal/pkg/payment"
)

var (
	paymentService   *payment.Service
	paymentServiceMu sync.Mutex
)

// SetPaymentService injects the service, used by tests and bootstrap.
func SetPaymentService(s *payment.Service) {
	paymentServiceMu.Lock()
	defer paymentServiceMu.Unlock()
	paymentService = s
}

func getPaymentService() *payment.Service {
	paymentServiceMu.Lock()
	defer paymentServiceMu.Unlock()
	if paymentService == nil {
		paymentService = payment.NewServiceFromDB(
			database.GetDB(),
			paycode.NewRedisStore(cache.GetClient()),
			payment.NewGatewayConfigFromEnv(),
		)
	}
	return paymentService
}

type createChargeRequest struct {
	AppointmentID uint  `json:"appointmentId" validate:"required,gt=0"`
	Amount        int64 `json:"amount" validate:"required,gt=0"`
}

// HandleCreateCharge opens a charge session and returns the QR reference.
func HandleCreateCharge(c *fiber.Ctx) error {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing actor identity"})
	}

	var req createChargeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Cannot parse request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "appointmentId and amount must be positive"})
	}

	session, err := getPaymentService().CreateCharge(c.Context(), req.AppointmentID, req.Amount, actorID)
	if err != nil {
		return respondPaymentError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"qrCodeUrl":     session.QRCodeURL,
		"transactionId": session.TransactionID,
		"amount":        session.Amount,
		"appointmentId": session.AppointmentID,
		"paymentCode":   session.PaymentCode,
		"expiresAt":     session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// HandleCancelCharge drops the active payment code for an appointment.
func HandleCancelCharge(c *fiber.Ctx) error {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing actor identity"})
	}

	appointmentID, err := parseAppointmentID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid appointment id"})
	}

	if err := getPaymentService().CancelCharge(c.Context(), appointmentID, actorID); err != nil {
		return respondPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Payment cancelled"})
}

// HandleCheckStatus reads payment state for polling clients.
func HandleCheckStatus(c *fiber.Ctx) error {
	appointmentID, err := parseAppointmentID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid appointment id"})
	}

	status, err := getPaymentService().CheckStatus(c.Context(), appointmentID)
	if err != nil {
		return respondPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"isPaid": status.IsPaid, "paymentStatus": status.PaymentStatus})
}

func parseAppointmentID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("appointmentID"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid appointment id")
	}
	return uint(id), nil
}
