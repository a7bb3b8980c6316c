package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de ciclo de vida del producto.
const (
	ProductStatusActive   = "ACTIVE"
	ProductStatusInactive = "INACTIVE"
)

// Product representa un producto del registro.
// CurrentQuantity es un valor derivado: siempre igual a la suma de los movimientos del libro
// y solo se modifica a través de él.
type Product struct {
	ID              string
	SKU             string // código único
	Name            string
	CostPrice       decimal.Decimal
	SalePrice       decimal.Decimal
	CurrentQuantity int
	MinQuantity     int // umbral de reposición (0 = sin umbral)
	MaxQuantity     int // tope sugerido (0 = sin tope)
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive indica si el producto se puede vender.
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// ValidProductStatus verifica que s sea un estado conocido.
func ValidProductStatus(s string) bool {
	return s == ProductStatusActive || s == ProductStatusInactive
}
