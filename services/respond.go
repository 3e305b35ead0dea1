package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// writeError renders err as {"error", "code"}. Internal errors are logged and masked.
func writeError(c *fiber.Ctx, log *zap.SugaredLogger, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Kind == KindUpstream {
			log.Warnw("⚠️ upstream failure", "path", c.Path(), "code", appErr.Code, "error", appErr.Err)
		}
		return c.Status(appErr.Kind.HTTPStatus()).JSON(fiber.Map{
			"error": appErr.Message,
			"code":  appErr.Code,
		})
	}
	log.Errorw("❌ request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
		"code":  "internal",
	})
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid JSON",
		"code":  "invalid_body",
		"cause": err.Error(),
	})
}

// callerID is the internal user id UserContextMiddleware stored on the request.
func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func callerFID(c *fiber.Ctx) int64 {
	fid, _ := c.Locals("user_fid").(int64)
	return fid
}
