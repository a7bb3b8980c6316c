package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/domain"
)

// writeError traduce errores de dominio a status HTTP y cuerpo dto.ErrorResponse.
// validación → 400, no encontrado → 404, conflicto de negocio → 409, venta abortada → 503.
func writeError(c *fiber.Ctx, err error) error {
	status, body := classify(err)
	return c.Status(status).JSON(body)
}

func classify(err error) (int, dto.ErrorResponse) {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.Is(err, domain.ErrSaleAborted):
		return fiber.StatusServiceUnavailable, dto.ErrorResponse{Code: "ABORTED", Message: "operación abortada, reintente"}
	case errors.As(err, &stockErr):
		return fiber.StatusConflict, dto.ErrorResponse{
			Code:    "INSUFFICIENT_STOCK",
			Message: stockErr.Error(),
			Details: map[string]any{
				"product_id": stockErr.ProductID,
				"requested":  stockErr.Requested,
				"available":  stockErr.Available,
			},
		}
	// Antes que ErrInvalidMovement: un movimiento sobre un producto desconocido responde 404.
	case errors.Is(err, domain.ErrProductNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "PRODUCT_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrEmptySale):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "EMPTY_SALE", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidQuantity):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "INVALID_QUANTITY", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidMovement):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "INVALID_MOVEMENT", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()}
	case errors.Is(err, domain.ErrSaleNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "SALE_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrSaleAlreadyCancelled):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "SALE_ALREADY_CANCELLED", Message: err.Error()}
	case errors.Is(err, domain.ErrPromotionNotApplicable):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "PROMOTION_NOT_APPLICABLE", Message: err.Error()}
	case errors.Is(err, domain.ErrProductInactive):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "PRODUCT_INACTIVE", Message: err.Error()}
	case errors.Is(err, domain.ErrDuplicate):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()}
	case errors.Is(err, domain.ErrConcurrentModification):
		return fiber.StatusServiceUnavailable, dto.ErrorResponse{Code: "CONCURRENT_MODIFICATION", Message: "conflicto de concurrencia, reintente"}
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHORIZED", Message: err.Error()}
	default:
		return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"}
	}
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func requireActor(c *fiber.Ctx) (string, bool) {
	userID := GetUserID(c)
	return userID, userID != ""
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}
