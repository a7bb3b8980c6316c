package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind define cómo se calcula el descuento de una promoción.
type DiscountKind string

// Tipos de descuento.
const (
	DiscountPercentage  DiscountKind = "PERCENTAGE"
	DiscountFixedAmount DiscountKind = "FIXED_AMOUNT"
)

// Estados de una promoción.
const (
	PromotionStatusScheduled = "SCHEDULED"
	PromotionStatusActive    = "ACTIVE"
	PromotionStatusInactive  = "INACTIVE"
)

// Promotion es una regla de descuento por producto con ventana de vigencia [StartDate, EndDate].
type Promotion struct {
	ID            string
	Name          string
	Description   string
	DiscountKind  DiscountKind
	DiscountValue decimal.Decimal // porcentaje (0-100] o monto fijo por unidad
	StartDate     time.Time
	EndDate       time.Time
	Status        string
	ProductIDs    []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Covers indica si la promoción incluye el producto.
func (p *Promotion) Covers(productID string) bool {
	for _, id := range p.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// InWindow indica si at cae dentro de la ventana (ambos extremos incluidos).
func (p *Promotion) InWindow(at time.Time) bool {
	return !at.Before(p.StartDate) && !at.After(p.EndDate)
}

// ApplicableTo: ACTIVE, dentro de la ventana y con el producto en su conjunto.
func (p *Promotion) ApplicableTo(productID string, at time.Time) bool {
	return p.Status == PromotionStatusActive && p.InWindow(at) && p.Covers(productID)
}
