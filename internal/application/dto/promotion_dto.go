package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// CreatePromotionRequest body para POST /api/promotions.
type CreatePromotionRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	DiscountKind  string          `json:"discount_kind"` // PERCENTAGE | FIXED_AMOUNT
	DiscountValue decimal.Decimal `json:"discount_value"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	ProductIDs    []string        `json:"product_ids"`
}

// SetPromotionStatusRequest body para PATCH /api/promotions/:id/status.
type SetPromotionStatusRequest struct {
	Status string `json:"status"`
}

// PromotionResponse salida de una promoción.
type PromotionResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	DiscountKind  string          `json:"discount_kind"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	Status        string          `json:"status"`
	ProductIDs    []string        `json:"product_ids"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PromotionListResponse lista paginada de promociones.
type PromotionListResponse struct {
	Items []PromotionResponse `json:"items"`
	Page  PageResponse        `json:"page"`
}

// ResolveResponse resultado de resolver la promoción de un producto a una fecha.
// Promotion es nil si ninguna aplica.
type ResolveResponse struct {
	ProductID       string             `json:"product_id"`
	At              time.Time          `json:"at"`
	Promotion       *PromotionResponse `json:"promotion"`
	ListUnitPrice   decimal.Decimal    `json:"list_unit_price"`
	DiscountedPrice decimal.Decimal    `json:"discounted_price"`
	Discount        decimal.Decimal    `json:"discount"`
}

// ToPromotionResponse convierte la entidad a su DTO.
func ToPromotionResponse(p *entity.Promotion) PromotionResponse {
	ids := make([]string, len(p.ProductIDs))
	copy(ids, p.ProductIDs)
	return PromotionResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		DiscountKind:  string(p.DiscountKind),
		DiscountValue: p.DiscountValue,
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		Status:        p.Status,
		ProductIDs:    ids,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
