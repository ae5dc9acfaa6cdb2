package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/clipdeck/api/internal/auth"
	"github.com/clipdeck/api/pkg/response"
)

const identityKey = "identity"

// AuthMiddleware authenticates bearer tokens and stores the caller identity
// in the request locals.
type AuthMiddleware struct {
	authenticator auth.Authenticator
}

// NewAuthMiddleware accepts OIDC tokens only
func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{authenticator: auth.Authenticator{Verifier: verifier}}
}

// NewAuthMiddlewareWithFallback accepts OIDC tokens first and HMAC tokens second
func NewAuthMiddlewareWithFallback(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{authenticator: auth.Authenticator{Verifier: verifier, Secret: jwtSecret}}
}

// NewLegacyAuthMiddleware accepts HMAC tokens only (for testing/dev)
func NewLegacyAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{authenticator: auth.Authenticator{Secret: jwtSecret}}
}

func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}
		token, ok := auth.BearerToken(header)
		if !ok {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		id, err := m.authenticator.Authenticate(token)
		switch {
		case errors.Is(err, auth.ErrNotConfigured):
			return response.Unauthorized(c, "Authentication not configured")
		case err != nil:
			return response.Unauthorized(c, "Invalid or expired token")
		}

		c.Locals(identityKey, id)
		return c.Next()
	}
}

// GenerateToken creates a legacy JWT token (useful for testing)
func (m *AuthMiddleware) GenerateToken(userID, email string) (string, error) {
	return auth.IssueLegacyToken(userID, email, m.authenticator.Secret, 24*time.Hour)
}

// Identity returns the caller stored by an auth middleware
func Identity(c *fiber.Ctx) (auth.Identity, bool) {
	id, ok := c.Locals(identityKey).(auth.Identity)
	return id, ok
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	id, _ := Identity(c)
	return id.UserID
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *fiber.Ctx) string {
	id, _ := Identity(c)
	return id.Email
}
