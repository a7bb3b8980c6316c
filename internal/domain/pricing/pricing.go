// Package pricing contiene las reglas puras de precio de una venta: selección de promoción,
// aplicación del descuento por unidad, cotización por línea y totales.
//
// Redondeo: montos de moneda a 2 decimales, mitad hacia arriba, aplicado una sola vez por línea
// sobre cantidad × precio unitario. El precio unitario con promoción se guarda con
// UnitPriceScale decimales, de modo que subtotal = Round(cantidad × unit_price) − descuento de línea
// se puede recalcular desde la fila persistida.
package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// Hundred es la base de los descuentos porcentuales.
var Hundred = decimal.NewFromInt(100)

// UnitPriceScale es la escala del precio unitario con promoción (sale_items.unit_price NUMERIC(18,6)).
const UnitPriceScale int32 = 6

// Round redondea un monto de moneda a 2 decimales (mitad hacia arriba para montos positivos).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ApplyDiscount aplica la promoción a un precio unitario y devuelve el precio con descuento y el
// monto descontado, ambos sin redondear. Sin promoción devuelve el mismo precio y cero.
func ApplyDiscount(unitPrice decimal.Decimal, promo *entity.Promotion) (discounted, discount decimal.Decimal) {
	if promo == nil {
		return unitPrice, decimal.Zero
	}
	switch promo.DiscountKind {
	case entity.DiscountPercentage:
		factor := decimal.NewFromInt(1).Sub(promo.DiscountValue.Div(Hundred))
		discounted = unitPrice.Mul(factor)
	case entity.DiscountFixedAmount:
		discounted = unitPrice.Sub(promo.DiscountValue)
	default:
		return unitPrice, decimal.Zero
	}
	if discounted.IsNegative() {
		discounted = decimal.Zero
	}
	return discounted, unitPrice.Sub(discounted)
}

// SelectPromotion elige, entre los candidatos, la promoción aplicable al producto en at.
// Si varias aplican gana la creada más recientemente (empate: mayor ID).
func SelectPromotion(candidates []*entity.Promotion, productID string, at time.Time) *entity.Promotion {
	var best *entity.Promotion
	for _, p := range candidates {
		if p == nil || !p.ApplicableTo(productID, at) {
			continue
		}
		if best == nil ||
			p.CreatedAt.After(best.CreatedAt) ||
			(p.CreatedAt.Equal(best.CreatedAt) && p.ID > best.ID) {
			best = p
		}
	}
	return best
}

// LineQuote es el precio calculado de una línea de venta.
type LineQuote struct {
	ProductID         string
	Quantity          int
	ListUnitPrice     decimal.Decimal
	UnitPrice         decimal.Decimal // precio unitario tras la promoción, a UnitPriceScale decimales
	Gross             decimal.Decimal // Round(cantidad × UnitPrice)
	PromotionDiscount decimal.Decimal
	LineDiscount      decimal.Decimal
	Subtotal          decimal.Decimal // Gross − LineDiscount
	PromotionID       string
}

// QuoteLine cotiza una línea: aplica la promoción (si hay) y luego el descuento explícito de línea.
// El descuento explícito no puede ser negativo ni superar el bruto de la línea.
func QuoteLine(productID string, listUnitPrice decimal.Decimal, quantity int, promo *entity.Promotion, explicitDiscount decimal.Decimal) (LineQuote, error) {
	if quantity <= 0 {
		return LineQuote{}, fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}
	if listUnitPrice.IsNegative() {
		return LineQuote{}, fmt.Errorf("%w: precio negativo para %s", domain.ErrInvalidInput, productID)
	}
	q := decimal.NewFromInt(int64(quantity))
	discountedUnit, _ := ApplyDiscount(listUnitPrice, promo)
	unitPrice := discountedUnit.Round(UnitPriceScale)

	listGross := Round(listUnitPrice.Mul(q))
	gross := Round(unitPrice.Mul(q))
	lineDiscount := Round(explicitDiscount)
	if lineDiscount.IsNegative() || lineDiscount.GreaterThan(gross) {
		return LineQuote{}, fmt.Errorf("%w: descuento de línea %s fuera de rango para %s",
			domain.ErrInvalidInput, explicitDiscount.String(), productID)
	}

	lq := LineQuote{
		ProductID:         productID,
		Quantity:          quantity,
		ListUnitPrice:     listUnitPrice,
		UnitPrice:         unitPrice,
		Gross:             gross,
		PromotionDiscount: listGross.Sub(gross),
		LineDiscount:      lineDiscount,
		Subtotal:          gross.Sub(lineDiscount),
	}
	if promo != nil {
		lq.PromotionID = promo.ID
	}
	return lq, nil
}

// Totals agrega los montos de una venta.
type Totals struct {
	Total         decimal.Decimal // Σ bruto de líneas (ya con promoción, antes del descuento de línea)
	LineDiscounts decimal.Decimal
	SaleDiscount  decimal.Decimal
	Discount      decimal.Decimal // LineDiscounts + SaleDiscount
	FinalTotal    decimal.Decimal // Total − Discount
}

// ComputeTotals suma las líneas y aplica el descuento de venta sobre el total ya promocionado.
// El descuento de venta no puede ser negativo ni dejar el total final por debajo de cero.
func ComputeTotals(lines []LineQuote, saleDiscount decimal.Decimal) (Totals, error) {
	var t Totals
	for _, l := range lines {
		t.Total = t.Total.Add(l.Gross)
		t.LineDiscounts = t.LineDiscounts.Add(l.LineDiscount)
	}
	sd := Round(saleDiscount)
	if sd.IsNegative() || sd.GreaterThan(t.Total.Sub(t.LineDiscounts)) {
		return Totals{}, fmt.Errorf("%w: descuento de venta %s fuera de rango", domain.ErrInvalidInput, saleDiscount.String())
	}
	t.SaleDiscount = sd
	t.Discount = t.LineDiscounts.Add(sd)
	t.FinalTotal = t.Total.Sub(t.Discount)
	return t, nil
}
