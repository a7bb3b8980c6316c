package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// CreateProductRequest entrada para registrar un producto.
// InitialQuantity genera un movimiento INBOUND de saldo inicial.
type CreateProductRequest struct {
	SKU             string          `json:"sku" validate:"required,min=1,max=100"`
	Name            string          `json:"name" validate:"required,min=1,max=200"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	InitialQuantity int             `json:"initial_quantity"`
	MinQuantity     int             `json:"min_quantity"`
	MaxQuantity     int             `json:"max_quantity"`
}

// UpdateProductRequest entrada para actualizar un producto (nunca el saldo ni el costo promedio).
type UpdateProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	SalePrice   *decimal.Decimal `json:"sale_price"`
	MinQuantity *int             `json:"min_quantity"`
	MaxQuantity *int             `json:"max_quantity"`
	Status      *string          `json:"status"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID              string          `json:"id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	CurrentQuantity int             `json:"current_quantity"`
	MinQuantity     int             `json:"min_quantity"`
	MaxQuantity     int             `json:"max_quantity"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ProductListResponse lista paginada de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// LowStockItem producto por debajo de su mínimo.
type LowStockItem struct {
	ProductID       string `json:"product_id"`
	SKU             string `json:"sku"`
	Name            string `json:"name"`
	CurrentQuantity int    `json:"current_quantity"`
	MinQuantity     int    `json:"min_quantity"`
	Shortage        int    `json:"shortage"`
}

// ToProductResponse convierte la entidad a su DTO.
func ToProductResponse(p *entity.Product) ProductResponse {
	return ProductResponse{
		ID:              p.ID,
		SKU:             p.SKU,
		Name:            p.Name,
		CostPrice:       p.CostPrice,
		SalePrice:       p.SalePrice,
		CurrentQuantity: p.CurrentQuantity,
		MinQuantity:     p.MinQuantity,
		MaxQuantity:     p.MaxQuantity,
		Status:          p.Status,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
