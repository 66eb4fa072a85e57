package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/clinicdesk/paycore/internal/pkg/env"
)

// GatewayKeyAuth authenticates webhook calls with the gateway-issued API
// key. This is a machine-to-machine trust boundary, separate from the
// end-user authentication the upstream gateway performs.
func GatewayKeyAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected := env.GetEnv("WEBHOOK_API_KEY", "")
		if expected == "" {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Webhook API key not configured"})
		}

		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
		}

		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	lower := strings.ToLower(auth)
	// SePay-style gateways send "Authorization: Apikey <key>".
	if strings.HasPrefix(lower, "apikey ") {
		return strings.TrimSpace(auth[7:])
	}
	if strings.HasPrefix(lower, "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
