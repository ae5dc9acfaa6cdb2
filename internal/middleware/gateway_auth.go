package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/clipdeck/api/internal/auth"
	"github.com/clipdeck/api/pkg/response"
)

// GatewayAuthMiddleware trusts the identity headers the gateway copies from
// its forward-auth call to /auth/verify.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		id := auth.Identity{
			UserID: userID,
			Email:  c.Get("X-User-Email"),
			Name:   c.Get("X-User-Name"),
		}
		if roles := c.Get("X-User-Roles"); roles != "" {
			for _, r := range strings.Split(roles, ",") {
				if r = strings.TrimSpace(r); r != "" {
					id.Roles = append(id.Roles, r)
				}
			}
		}
		c.Locals(identityKey, id)
		return c.Next()
	}
}
