package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/promotion"
)

// PromotionHandler maneja promociones y su resolución (protegido).
type PromotionHandler struct {
	uc *promotion.UseCase
}

// NewPromotionHandler construye el handler.
func NewPromotionHandler(uc *promotion.UseCase) *PromotionHandler {
	return &PromotionHandler{uc: uc}
}

// Create godoc
// @Summary      Crear promoción
// @Tags         promotions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreatePromotionRequest  true  "Promoción"
// @Success      201   {object}  dto.PromotionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/promotions [post]
func (h *PromotionHandler) Create(c *fiber.Ctx) error {
	actorID, ok := requireActor(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.CreatePromotionRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Create(c.UserContext(), actorID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar promociones
// @Tags         promotions
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.PromotionListResponse
// @Router       /api/promotions [get]
func (h *PromotionHandler) List(c *fiber.Ctx) error {
	page := dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)}
	page.DefaultPage()
	out, err := h.uc.List(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// SetStatus godoc
// @Summary      Activar o desactivar promoción
// @Tags         promotions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                         true  "ID de la promoción"
// @Param        body  body  dto.SetPromotionStatusRequest  true  "ACTIVE | INACTIVE"
// @Success      200   {object}  dto.PromotionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/promotions/{id}/status [patch]
func (h *PromotionHandler) SetStatus(c *fiber.Ctx) error {
	actorID, ok := requireActor(c)
	if !ok {
		return unauthorized(c)
	}
	var in dto.SetPromotionStatusRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.SetStatus(c.UserContext(), actorID, c.Params("id"), in.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Resolve godoc
// @Summary      Resolver promoción aplicable
// @Tags         promotions
// @Security     Bearer
// @Produce      json
// @Param        product_id  query  string  true   "ID del producto"
// @Param        at          query  string  false  "Instante (RFC3339, default ahora)"
// @Success      200  {object}  dto.ResolveResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/promotions/resolve [get]
func (h *PromotionHandler) Resolve(c *fiber.Ctx) error {
	productID := c.Query("product_id")
	if productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "product_id requerido"})
	}
	at := time.Now().UTC()
	if s := c.Query("at"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "at debe ser RFC3339"})
		}
		at = t
	}
	out, err := h.uc.Quote(c.UserContext(), productID, at)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
