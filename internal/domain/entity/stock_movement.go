package entity

import "time"

// MovementKind es el motivo categórico de un cambio de stock.
type MovementKind string

// Tipos de movimiento del libro de stock.
const (
	MovementInbound            MovementKind = "INBOUND"             // entrada de mercancía
	MovementOutbound           MovementKind = "OUTBOUND"            // salida no comercial
	MovementAdjustmentPositive MovementKind = "ADJUSTMENT_POSITIVE" // ajuste por conteo (+)
	MovementAdjustmentNegative MovementKind = "ADJUSTMENT_NEGATIVE" // ajuste por conteo (-)
	MovementLoss               MovementKind = "LOSS"                // merma, daño, robo
	MovementReturn             MovementKind = "RETURN"              // devolución / anulación de venta
	MovementSale               MovementKind = "SALE"                // venta
)

// MovementKinds lista todos los tipos conocidos.
var MovementKinds = []MovementKind{
	MovementInbound, MovementOutbound, MovementAdjustmentPositive, MovementAdjustmentNegative,
	MovementLoss, MovementReturn, MovementSale,
}

// StockMovement es una entrada inmutable del libro de stock. Nunca se actualiza ni se borra.
// QuantityAfter = QuantityBefore + Delta, y QuantityBefore coincide con el QuantityAfter
// del movimiento anterior del mismo producto.
type StockMovement struct {
	ID             string
	ProductID      string
	ActorID        string
	Kind           MovementKind
	Quantity       int // magnitud, siempre > 0
	Delta          int // cambio con signo según Kind
	QuantityBefore int
	QuantityAfter  int
	Reason         string
	ReferenceID    string // venta que originó el movimiento (SALE / RETURN por anulación)
	CreatedAt      time.Time
}
