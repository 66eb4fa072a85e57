package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const actorIDLocal = "ACTOR_ID"

// ActorContext surfaces the authenticated actor injected by the upstream
// API gateway. Authentication itself lives outside this core; we only
// trust the forwarded identity for ownership checks.
func ActorContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get("X-Actor-ID")
		if raw != "" {
			if id, err := strconv.ParseUint(raw, 10, 64); err == nil && id > 0 {
				c.Locals(actorIDLocal, uint(id))
			}
		}
		return c.Next()
	}
}

// ActorID returns the actor bound to the request, if any.
func ActorID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(actorIDLocal).(uint)
	return id, ok
}
