package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// PostSaleItemRequest línea del request de venta.
type PostSaleItemRequest struct {
	ProductID        string           `json:"product_id"`
	Quantity         int              `json:"quantity"`
	ExplicitDiscount *decimal.Decimal `json:"explicit_discount,omitempty"`
	PromotionID      string           `json:"promotion_id,omitempty"`
}

// PostSaleRequest body para POST /api/sales. El vendedor sale del token.
type PostSaleRequest struct {
	CustomerID    string                `json:"customer_id,omitempty"`
	Items         []PostSaleItemRequest `json:"items"`
	PaymentMethod string                `json:"payment_method,omitempty"`
	SaleDiscount  *decimal.Decimal      `json:"sale_discount,omitempty"`
	Notes         string                `json:"notes,omitempty"`
}

// CancelSaleRequest body para POST /api/sales/:id/cancel.
type CancelSaleRequest struct {
	Reason string `json:"reason"`
}

// SaleItemResponse línea de una venta.
type SaleItemResponse struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"product_id"`
	Quantity          int             `json:"quantity"`
	ListUnitPrice     decimal.Decimal `json:"list_unit_price"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	PromotionDiscount decimal.Decimal `json:"promotion_discount"`
	LineDiscount      decimal.Decimal `json:"line_discount"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	PromotionID       string          `json:"promotion_id,omitempty"`
}

// SaleResponse salida de una venta con sus ítems.
type SaleResponse struct {
	ID            string             `json:"id"`
	CustomerID    string             `json:"customer_id,omitempty"`
	SalespersonID string             `json:"salesperson_id"`
	Date          time.Time          `json:"date"`
	Total         decimal.Decimal    `json:"total"`
	SaleDiscount  decimal.Decimal    `json:"sale_discount"`
	Discount      decimal.Decimal    `json:"discount"`
	FinalTotal    decimal.Decimal    `json:"final_total"`
	PaymentMethod string             `json:"payment_method"`
	Status        string             `json:"status"`
	Notes         string             `json:"notes,omitempty"`
	CancelledAt   *time.Time         `json:"cancelled_at,omitempty"`
	CancelledBy   string             `json:"cancelled_by,omitempty"`
	CancelReason  string             `json:"cancel_reason,omitempty"`
	Items         []SaleItemResponse `json:"items"`
}

// ToSaleResponse convierte la entidad a su DTO.
func ToSaleResponse(s *entity.Sale) SaleResponse {
	items := make([]SaleItemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, SaleItemResponse{
			ID:                it.ID,
			ProductID:         it.ProductID,
			Quantity:          it.Quantity,
			ListUnitPrice:     it.ListUnitPrice,
			UnitPrice:         it.UnitPrice,
			PromotionDiscount: it.PromotionDiscount,
			LineDiscount:      it.LineDiscount,
			Subtotal:          it.Subtotal,
			PromotionID:       it.PromotionID,
		})
	}
	return SaleResponse{
		ID:            s.ID,
		CustomerID:    s.CustomerID,
		SalespersonID: s.SalespersonID,
		Date:          s.Date,
		Total:         s.Total,
		SaleDiscount:  s.SaleDiscount,
		Discount:      s.Discount,
		FinalTotal:    s.FinalTotal,
		PaymentMethod: s.PaymentMethod,
		Status:        s.Status,
		Notes:         s.Notes,
		CancelledAt:   s.CancelledAt,
		CancelledBy:   s.CancelledBy,
		CancelReason:  s.CancelReason,
		Items:         items,
	}
}
