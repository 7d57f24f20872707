package transport

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler logs request failures and renders them as JSON. Unauthorized
// responses keep the {"message": ...} shape the streaming client expects.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error("request error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		)

		if code == fiber.StatusUnauthorized {
			return c.Status(code).JSON(fiber.Map{
				"message": "Unauthorized",
			})
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
