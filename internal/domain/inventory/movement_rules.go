package inventory

import (
	"fmt"

	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// Direction devuelve +1 para los tipos que suman stock y -1 para los que restan.
// Retorna 0 si el tipo no es conocido.
func Direction(kind entity.MovementKind) int {
	switch kind {
	case entity.MovementInbound, entity.MovementReturn, entity.MovementAdjustmentPositive:
		return 1
	case entity.MovementOutbound, entity.MovementSale, entity.MovementLoss, entity.MovementAdjustmentNegative:
		return -1
	}
	return 0
}

// ApplyMovement es la regla única de signo y validación del libro.
// Dado el tipo, la magnitud y el saldo actual devuelve el delta con signo y el saldo resultante.
// Falla con ErrInvalidMovement si la cantidad no es positiva o el tipo es desconocido, y con
// *domain.InsufficientStockError si un tipo que resta dejaría el saldo negativo.
func ApplyMovement(productID string, kind entity.MovementKind, quantity, current int) (delta, after int, err error) {
	dir := Direction(kind)
	if dir == 0 {
		return 0, current, fmt.Errorf("%w: tipo %q desconocido", domain.ErrInvalidMovement, kind)
	}
	if quantity <= 0 {
		return 0, current, fmt.Errorf("%w: cantidad %d debe ser positiva", domain.ErrInvalidMovement, quantity)
	}
	delta = dir * quantity
	after = current + delta
	if after < 0 {
		return 0, current, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: current,
		}
	}
	return delta, after, nil
}

// LedgerSum pliega los movimientos de un producto y devuelve el saldo que deberían producir.
// También verifica el encadenamiento before/after; si se rompe retorna ErrLedgerMismatch.
func LedgerSum(movements []*entity.StockMovement) (int, error) {
	sum := 0
	for i, m := range movements {
		if m.QuantityBefore != sum {
			return sum, fmt.Errorf("%w: movimiento %d (%s) parte de %d, se esperaba %d",
				domain.ErrLedgerMismatch, i, m.ID, m.QuantityBefore, sum)
		}
		if m.QuantityAfter != m.QuantityBefore+m.Delta {
			return sum, fmt.Errorf("%w: movimiento %s no cuadra", domain.ErrLedgerMismatch, m.ID)
		}
		sum += m.Delta
	}
	return sum, nil
}
