package middleware

import (
	"strings"

	"github.com/crowdfund/backend/internal/auth"
	"github.com/crowdfund/backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	CtxIdentity = "identity"
	CtxNetwork  = "network"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxIdentity, claims.Identity())
		c.Locals(CtxNetwork, claims.Network)

		return c.Next()
	}
}

// GetIdentity returns the wallet identity of an authenticated request.
func GetIdentity(c *fiber.Ctx) string {
	id, _ := c.Locals(CtxIdentity).(string)
	return id
}
