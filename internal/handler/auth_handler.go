package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/clipdeck/api/internal/auth"
)

// Identity headers returned to the gateway on a successful forward-auth
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
	HeaderUserRoles = "X-User-Roles"
)

// AuthHandler answers forward-auth checks from the API gateway
type AuthHandler struct {
	authenticator auth.Authenticator
}

func NewAuthHandler(verifier auth.TokenVerifier, jwtSecret string) *AuthHandler {
	return &AuthHandler{authenticator: auth.Authenticator{Verifier: verifier, Secret: jwtSecret}}
}

// Verify handles GET /auth/verify
// 200 with the caller's identity headers, 401 otherwise.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	token, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	id, err := h.authenticator.Authenticate(token)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	c.Set(HeaderUserID, id.UserID)
	c.Set(HeaderUserEmail, id.Email)
	if id.Name != "" {
		c.Set(HeaderUserName, id.Name)
	}
	if len(id.Roles) > 0 {
		c.Set(HeaderUserRoles, strings.Join(id.Roles, ","))
	}
	return c.SendStatus(fiber.StatusOK)
}
