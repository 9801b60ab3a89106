package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

var corsMethods = strings.Join([]string{
	fiber.MethodGet,
	fiber.MethodPost,
	fiber.MethodOptions,
}, ", ")

// CORS allows any origin to call the public API. Preflight requests end here.
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set(fiber.HeaderAccessControlAllowMethods, corsMethods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, "Origin, Content-Type, Accept, "+RequestIDHeader)
		c.Set(fiber.HeaderAccessControlExposeHeaders, "Content-Length, Content-Type, Location, "+RequestIDHeader)
		c.Set(fiber.HeaderAccessControlMaxAge, "86400")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
