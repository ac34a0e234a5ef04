package middleware

import (
	"stacktax-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const userLocal = "user"

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := c.Locals(userLocal)
		if user == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		// Attach auth context for handlers (same key)
		c.Locals("auth", user)
		return c.Next()
	}
}

// RequireUnlocked ensures the session holds the decryption passphrase
// (set by POST /auth/unlock). Processing endpoints cannot decrypt without it.
func RequireUnlocked() fiber.Handler {
	return func(c *fiber.Ctx) error {
		passphrase, _ := GetSessionValue(c, "passphrase").(string)
		if passphrase == "" {
			return response.Error(c, "Session is locked: unlock with your passphrase first", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}
