package middleware

import (
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"funneltrack/internal/users"
)

// AdminBasicAuth protects the stats endpoints with HTTP Basic credentials
// checked against the admin users table. Password verification is
// constant-time via bcrypt, including for unknown emails.
func AdminBasicAuth(db *gorm.DB, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email, password, ok := parseBasicAuth(c.Get("Authorization"))
		if !ok {
			c.Set("WWW-Authenticate", `Basic realm="funneltrack"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		user, err := users.Authenticate(db, logger, email, password)
		if err != nil {
			logger.Warn("Stats authentication failed", slog.String("email", email))
			c.Set("WWW-Authenticate", `Basic realm="funneltrack"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid credentials",
			})
		}

		c.Locals("current_user", user)
		return c.Next()
	}
}

func parseBasicAuth(header string) (email, password string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return "", "", false
	}
	email, password, found := strings.Cut(string(decoded), ":")
	if !found || email == "" {
		return "", "", false
	}
	return email, password, true
}
