package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una venta.
const (
	SaleStatusCompleted = "COMPLETED"
	SaleStatusCancelled = "CANCELLED"
)

// Medios de pago aceptados (la pasarela de pago es externa).
const (
	PaymentCash     = "CASH"
	PaymentCard     = "CARD"
	PaymentTransfer = "TRANSFER"
	PaymentMixed    = "MIXED"
)

// Sale es la cabecera de una venta; es dueña exclusiva de sus ítems.
// Total = Σ(cantidad × precio unitario aplicado), Discount = Σ descuentos de línea + descuento de venta,
// FinalTotal = Total − Discount.
type Sale struct {
	ID            string
	CustomerID    string // opcional
	SalespersonID string
	Date          time.Time
	Total         decimal.Decimal
	SaleDiscount  decimal.Decimal // descuento aplicado sobre el total ya promocionado
	Discount      decimal.Decimal
	FinalTotal    decimal.Decimal
	PaymentMethod string
	Status        string
	Notes         string
	CancelledAt   *time.Time
	CancelledBy   string
	CancelReason  string
	Items         []SaleItem
	CreatedAt     time.Time
}

// SaleItem es una línea de la venta. Inmutable una vez finalizada la venta.
type SaleItem struct {
	ID                string
	SaleID            string
	ProductID         string
	Quantity          int
	ListUnitPrice     decimal.Decimal // precio de lista antes de la promoción
	UnitPrice         decimal.Decimal // precio unitario tras la promoción
	PromotionDiscount decimal.Decimal // descuento de la promoción en la línea (redondeado una vez)
	LineDiscount      decimal.Decimal // descuento explícito de la línea
	Subtotal          decimal.Decimal // cantidad × precio unitario − descuento de línea
	PromotionID       string          // opcional
}

// ValidPaymentMethod verifica que m sea un medio de pago conocido.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentMixed:
		return true
	}
	return false
}
