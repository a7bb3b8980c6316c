package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/sales"
)

// SaleHandler maneja la publicación, consulta, anulación y recibo de ventas (protegido).
type SaleHandler struct {
	engine  *sales.Engine
	receipt *sales.ReceiptUseCase
}

// NewSaleHandler construye el handler.
func NewSaleHandler(engine *sales.Engine, receipt *sales.ReceiptUseCase) *SaleHandler {
	return &SaleHandler{engine: engine, receipt: receipt}
}

// Post godoc
// @Summary      Publicar venta
// @Description  Atómica: o se registran todas las líneas, movimientos y cabecera, o nada.
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.PostSaleRequest  true  "Ítems, medio de pago y descuentos"
// @Success      201   {object}  dto.SaleResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/sales [post]
func (h *SaleHandler) Post(c *fiber.Ctx) error {
	salespersonID, ok := requireActor(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.PostSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	input := sales.PostSaleInput{
		SalespersonID: salespersonID,
		CustomerID:    in.CustomerID,
		PaymentMethod: in.PaymentMethod,
		SaleDiscount:  valueOrZero(in.SaleDiscount),
		Notes:         in.Notes,
		Items:         make([]sales.PostSaleItem, 0, len(in.Items)),
	}
	for _, it := range in.Items {
		input.Items = append(input.Items, sales.PostSaleItem{
			ProductID:        it.ProductID,
			Quantity:         it.Quantity,
			ExplicitDiscount: valueOrZero(it.ExplicitDiscount),
			PromotionID:      it.PromotionID,
		})
	}
	sale, err := h.engine.PostSale(c.UserContext(), input)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToSaleResponse(sale))
}

// GetByID godoc
// @Summary      Obtener venta
// @Tags         sales
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {object}  dto.SaleResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/sales/{id} [get]
func (h *SaleHandler) GetByID(c *fiber.Ctx) error {
	sale, err := h.engine.GetSale(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToSaleResponse(sale))
}

// Cancel godoc
// @Summary      Anular venta
// @Description  Devuelve el stock de cada línea con un movimiento RETURN.
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "ID de la venta"
// @Param        body  body  dto.CancelSaleRequest  false "Motivo"
// @Success      200   {object}  dto.SaleResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/cancel [post]
func (h *SaleHandler) Cancel(c *fiber.Ctx) error {
	actorID, ok := requireActor(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.CancelSaleRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	sale, err := h.engine.CancelSale(c.UserContext(), c.Params("id"), actorID, in.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ToSaleResponse(sale))
}

// Receipt godoc
// @Summary      Descargar recibo PDF
// @Tags         sales
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/receipt [get]
func (h *SaleHandler) Receipt(c *fiber.Ctx) error {
	pdfBytes, filename, err := h.receipt.Receipt(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdfBytes)
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
