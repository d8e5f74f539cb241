package http

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/evertweb/programajava-sub002/internal/application/dto"
	"github.com/evertweb/programajava-sub002/pkg/jwt"
)

// LocalService key de c.Locals con el servicio autenticado.
const LocalService = "service"

// ServiceAuthMiddleware valida el Bearer token de servicio y, si allowed no está vacío,
// que el servicio emisor esté en la lista.
func ServiceAuthMiddleware(secret, issuer string, allowed ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		service, err := jwt.ParseService(secret, issuer, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		if len(allowed) > 0 && !slices.Contains(allowed, service) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "servicio no autorizado para este endpoint"})
		}
		c.Locals(LocalService, service)
		return c.Next()
	}
}

// GetService devuelve el servicio autenticado (después del middleware).
func GetService(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalService).(string)
	return s
}
