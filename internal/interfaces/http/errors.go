package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/evertweb/programajava-sub002/internal/application/billing"
	"github.com/evertweb/programajava-sub002/internal/application/dto"
	"github.com/evertweb/programajava-sub002/internal/domain"
)

// errorStatus traduce un error de dominio a estado HTTP y código de error.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, dto.CodeValidation
	case errors.Is(err, domain.ErrProductNotFound):
		return fiber.StatusNotFound, dto.CodeProductNotFound
	case errors.Is(err, domain.ErrVehicleNotFound):
		return fiber.StatusNotFound, dto.CodeVehicleNotFound
	case errors.Is(err, domain.ErrSupplierNotFound):
		return fiber.StatusNotFound, dto.CodeSupplierNotFound
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, dto.CodeNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return fiber.StatusConflict, dto.CodeInsufficientStock
	case errors.Is(err, domain.ErrIntegrity):
		return fiber.StatusConflict, dto.CodeIntegrity
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, dto.CodeConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, dto.CodeUnauthorized
	case errors.Is(err, domain.ErrServiceUnavailable):
		return fiber.StatusServiceUnavailable, dto.CodeServiceUnavailable
	case errors.Is(err, domain.ErrServiceTimeout), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, dto.CodeServiceTimeout
	default:
		return fiber.StatusInternalServerError, dto.CodeInternal
	}
}

// writeError responde con el cuerpo de error correspondiente. Una falla de la saga se
// responde con 422 y el diagnóstico completo.
func writeError(c *fiber.Ctx, err error) error {
	if sagaErr, ok := billing.AsSagaError(err); ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.SagaErrorResponse{
			Code:                 dto.CodeSagaFailed,
			Message:              sagaErr.Error(),
			State:                string(sagaErr.State),
			FailedAt:             string(sagaErr.FailedAt),
			CompletedSteps:       nonNil(sagaErr.CompletedSteps),
			CompensationFailures: sagaErr.CompensationFailures,
		})
	}
	status, code := errorStatus(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "error interno"
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: msg})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
