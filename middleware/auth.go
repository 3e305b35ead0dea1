// middleware/auth.go
package middleware

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"lore-machine/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UserDirectory maps a Farcaster identity onto the local user row, creating it on first sight.
type UserDirectory interface {
	EnsureUser(ctx context.Context, fid int64, username string) (*models.User, error)
}

// UserContextMiddleware resolves the identity the gateway forwarded
// (X-User-FID, X-Username, X-User-Roles) and rejects requests without one.
func UserContextMiddleware(users UserDirectory, log *zap.SugaredLogger) fiber.Handler {
	return userContext(users, log, true)
}

// OptionalUserContext attaches the identity when present and lets anonymous requests through.
func OptionalUserContext(users UserDirectory, log *zap.SugaredLogger) fiber.Handler {
	return userContext(users, log, false)
}

func userContext(users UserDirectory, log *zap.SugaredLogger, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fidStr := strings.TrimSpace(c.Get("X-User-FID"))
		if fidStr == "" {
			if !required {
				return c.Next()
			}
			log.Warnf("❌ [USER_CTX] X-User-FID required but missing on %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
				"code":  "unauthorized",
			})
		}

		fid, err := strconv.ParseInt(fidStr, 10, 64)
		if err != nil || fid <= 0 {
			log.Warnf("❌ [USER_CTX] malformed X-User-FID %q on %s", fidStr, c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
				"code":  "unauthorized",
			})
		}

		user, err := users.EnsureUser(c.UserContext(), fid, strings.TrimSpace(c.Get("X-Username")))
		if err != nil {
			log.Errorf("❌ [USER_CTX] ensure user fid=%d: %v", fid, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
				"code":  "internal",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals("user_id", user.ID)
		c.Locals("user_fid", user.FID)
		c.Locals("user_roles", roles)

		log.Debugf("👤 [USER_CTX] fid=%d user=%s roles=%v | %s", fid, user.ID, roles, c.Path())
		return c.Next()
	}
}

// RequireRole lets the request through only when the gateway granted role.
// It must run after UserContextMiddleware.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").([]string)
		if !slices.Contains(roles, role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient role",
				"code":  "forbidden",
			})
		}
		return c.Next()
	}
}
