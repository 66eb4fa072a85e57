package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to the controllers to keep response shapes in one place
	"github.com/clinicdesk/paycore/app/controllers"
	"github.com/clinicdesk/paycore/internal/pkg/middleware"
)

// APIServer implements the v1 payment surface.
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// PostCharge opens a charge session for an appointment.
func (s *APIServer) PostCharge(c *fiber.Ctx) error {
	return controllers.HandleCreateCharge(c)
}

// DeleteCharge cancels the active charge session.
func (s *APIServer) DeleteCharge(c *fiber.Ctx) error {
	return controllers.HandleCancelCharge(c)
}

// GetChargeStatus returns the billing payment state for polling clients.
func (s *APIServer) GetChargeStatus(c *fiber.Ctx) error {
	return controllers.HandleCheckStatus(c)
}

// PostPaymentWebhook receives gateway transfer notifications. Security is
// enforced via the gateway key middleware attached here, not upstream:
// webhooks bypass the user-facing gateway entirely.
func (s *APIServer) PostPaymentWebhook(c *fiber.Ctx) error {
	return controllers.HandlePaymentWebhook(c)
}

// RegisterHandlers attaches the v1 routes to the given router group.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	payments := router.Group("/payments", middleware.ActorContext())
	payments.Post("/", s.PostCharge)
	payments.Delete("/:appointmentID", s.DeleteCharge)
	payments.Get("/:appointmentID/status", s.GetChargeStatus)

	webhooks := router.Group("/webhooks", middleware.GatewayKeyAuth())
	webhooks.Post("/payment", s.PostPaymentWebhook)
}
