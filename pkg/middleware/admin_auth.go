package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const adminTokenHeader = "X-Admin-Token"

type adminAuthMiddleware struct {
	logger *logrus.Logger
	token  string
}

func NewAdminAuthMiddleware(logger *logrus.Logger, token string) Middleware {
	return &adminAuthMiddleware{
		logger: logger,
		token:  token,
	}
}

func (m *adminAuthMiddleware) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if m.token == "" {
			m.logger.Warn("admin token not configured, rejecting admin request")
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Admin surface disabled"})
		}

		provided := ctx.Get(adminTokenHeader)
		if provided == "" {
			m.logger.Debug("no admin token provided")
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authorization required"})
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(m.token)) != 1 {
			m.logger.Debug("invalid admin token")
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}

		return ctx.Next()
	}
}
